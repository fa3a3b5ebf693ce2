package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/derwolz/TwitterScraper/pkg/errors"
	"github.com/derwolz/TwitterScraper/pkg/logger"
	"github.com/derwolz/TwitterScraper/pkg/socialapi"
	"github.com/derwolz/TwitterScraper/pkg/store"
	"github.com/derwolz/TwitterScraper/pkg/store/storetest"
)

// fakeFetcher serves canned profiles and followings
type fakeFetcher struct {
	mu         sync.Mutex
	profiles   map[string]*socialapi.Profile
	followings map[string][]socialapi.Profile
	pageSize   int

	// hooks run inside FetchAllFollowings before the result is returned
	onFollowings func(ctx context.Context, username string) error
	panicOn      string

	userCalls    []string
	maxPagesSeen []int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		profiles:   map[string]*socialapi.Profile{},
		followings: map[string][]socialapi.Profile{},
		pageSize:   200,
	}
}

func (f *fakeFetcher) addUser(username string, follows ...string) {
	f.profiles[strings.ToLower(username)] = &socialapi.Profile{UserName: username, Name: username, Description: "bio of " + username}
	targets := make([]socialapi.Profile, 0, len(follows))
	for _, name := range follows {
		targets = append(targets, socialapi.Profile{UserName: name, Name: name})
	}
	f.followings[strings.ToLower(username)] = targets
}

func (f *fakeFetcher) FetchUser(ctx context.Context, username string) (*socialapi.Profile, error) {
	f.mu.Lock()
	f.userCalls = append(f.userCalls, username)
	f.mu.Unlock()

	if username == f.panicOn {
		panic("boom")
	}
	p, ok := f.profiles[strings.ToLower(username)]
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 0, "user %s not found", username)
	}
	return p, nil
}

func (f *fakeFetcher) FetchAllFollowings(ctx context.Context, username string, maxPages int) ([]socialapi.Profile, error) {
	f.mu.Lock()
	f.maxPagesSeen = append(f.maxPagesSeen, maxPages)
	f.mu.Unlock()

	if f.onFollowings != nil {
		if err := f.onFollowings(ctx, username); err != nil {
			return nil, err
		}
	}
	return f.followings[strings.ToLower(username)], nil
}

func (f *fakeFetcher) PageSize() int { return f.pageSize }

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.userCalls)
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return out
}

func newTestCrawler(t *testing.T, f Fetcher, cfg Config) (*Crawler, *store.Store, *logger.TestLogger) {
	t.Helper()
	st := storetest.OpenMemory(t)
	log := logger.NewTestLogger()
	return New(f, st, cfg, log), st, log
}

func TestCollectStoresProfileAndFollowings(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("Alice", "Bob", "carol")
	c, st, _ := newTestCrawler(t, f, Config{})

	res := c.Collect(ctx, "Alice", Options{})

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, 2, res.NewUsers)
	assert.Equal(t, 0, res.ExistingUsers)
	assert.Equal(t, 2, res.EdgesStored)
	assert.Equal(t, 2, res.TotalFetched)
	assert.Equal(t, 1, res.PagesScraped)

	alice, err := st.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.Equal(t, "bio of Alice", alice.Bio)

	followings, err := st.GetFollowings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, followings)

	state, err := st.GetCrawlState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseComplete, state.Phase())
	assert.Equal(t, 2, state.EdgeCount)
	assert.Nil(t, state.ErrorMessage)
}

func TestCollectTwiceWithForceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("alice", "bob", "carol")
	c, st, _ := newTestCrawler(t, f, Config{})

	first := c.Collect(ctx, "alice", Options{})
	require.Equal(t, OutcomeSuccess, first.Outcome)
	usersBefore, err := st.ListUsers(ctx)
	require.NoError(t, err)

	second := c.Collect(ctx, "alice", Options{Force: true})
	require.Equal(t, OutcomeSuccess, second.Outcome)
	assert.Equal(t, 0, second.NewUsers)
	assert.Equal(t, 2, second.ExistingUsers)
	assert.Equal(t, 0, second.EdgesStored)

	usersAfter, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, usersAfter, len(usersBefore))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRelationships)
}

func TestCollectSkipsCompletedUsers(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("alice", "bob")
	c, _, _ := newTestCrawler(t, f, Config{})

	require.Equal(t, OutcomeSuccess, c.Collect(ctx, "alice", Options{}).Outcome)
	calls := f.calls()

	res := c.Collect(ctx, "ALICE", Options{})
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.True(t, res.OK())
	require.NotNil(t, res.State)
	assert.Equal(t, 1, res.State.EdgeCount)
	assert.Equal(t, calls, f.calls(), "skipped user must not hit the API")
}

func TestCollectRetriesFailedUsers(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	c, st, _ := newTestCrawler(t, f, Config{})

	res := c.Collect(ctx, "alice", Options{})
	require.Equal(t, OutcomeProfileFetchFailed, res.Outcome)

	f.addUser("alice", "bob")
	res = c.Collect(ctx, "alice", Options{})
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	state, err := st.GetCrawlState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseComplete, state.Phase())
	assert.Nil(t, state.ErrorMessage)
}

func TestCollectCountsPages(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("alice", numbered("user", 250)...)
	c, st, _ := newTestCrawler(t, f, Config{})

	res := c.Collect(ctx, "alice", Options{})
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, res.PagesScraped)
	assert.Equal(t, 250, res.NewUsers)

	state, err := st.GetCrawlState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, state.PagesScraped)
	assert.Equal(t, 250, state.EdgeCount)
}

func TestCollectWithoutFollowings(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("loner")
	c, st, log := newTestCrawler(t, f, Config{})

	res := c.Collect(ctx, "loner", Options{})
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 0, res.PagesScraped)

	state, err := st.GetCrawlState(ctx, "loner")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseComplete, state.Phase())
	assert.Equal(t, 0, state.EdgeCount)
	assert.True(t, log.HasMessage("no followings returned"))
}

func TestCollectBatchIsolatesProfileFailures(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("alice", "dave")
	f.addUser("carol", "dave", "erin")
	c, st, _ := newTestCrawler(t, f, Config{})

	report := c.CollectBatch(ctx, []string{"alice", "bob", "carol"}, Options{})

	require.Len(t, report.Results, 3)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, report.Cancelled)
	assert.Equal(t, OutcomeProfileFetchFailed, report.Results[1].Outcome)

	for _, name := range []string{"alice", "carol"} {
		state, err := st.GetCrawlState(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, store.PhaseComplete, state.Phase(), name)
	}

	bob, err := st.GetCrawlState(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseFailed, bob.Phase())
	assert.NotEmpty(t, bob.LastError())
	assert.Equal(t, 0, bob.EdgeCount)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "bob", failures[0].Username)

	// carol found dave already stored by alice's batch
	assert.Equal(t, 1, report.Results[2].ExistingUsers)
	assert.Equal(t, 2, report.NewUsers)
}

func TestCollectBatchReportsProgress(t *testing.T) {
	f := newFakeFetcher()
	f.addUser("alice", "dave")
	c, _, _ := newTestCrawler(t, f, Config{})

	var seen []Progress
	opts := Options{OnProgress: func(p Progress) { seen = append(seen, p) }}
	c.CollectBatch(context.Background(), []string{"alice", "", "bob"}, opts)

	require.Len(t, seen, 4)
	assert.Equal(t, Progress{Position: 1, Total: 3, Username: "alice"}, seen[0])
	require.NotNil(t, seen[1].Result)
	assert.Equal(t, OutcomeSuccess, seen[1].Result.Outcome)
	assert.Equal(t, 3, seen[2].Position)
	assert.Nil(t, seen[2].Result)
	require.NotNil(t, seen[3].Result)
	assert.Equal(t, OutcomeProfileFetchFailed, seen[3].Result.Outcome)
}

func TestCollectBatchRecoversPanics(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("alice", "bob")
	f.addUser("carol")
	f.panicOn = "bob"
	c, st, log := newTestCrawler(t, f, Config{})

	report := c.CollectBatch(ctx, []string{"alice", "bob", "carol"}, Options{})

	require.Len(t, report.Results, 3)
	assert.Equal(t, OutcomePartialFailure, report.Results[1].Outcome)
	assert.Contains(t, report.Results[1].Message, "boom")
	assert.Equal(t, OutcomeSuccess, report.Results[2].Outcome)
	assert.True(t, log.HasMessage("collection panicked"))

	state, err := st.GetCrawlState(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseFailed, state.Phase())
}

func TestCollectDuplicateTargetsCountAsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("alice", "bob", "Bob", "carol")
	c, st, _ := newTestCrawler(t, f, Config{})

	res := c.Collect(ctx, "alice", Options{})
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, res.NewUsers)
	assert.Equal(t, 1, res.ExistingUsers)
	assert.Equal(t, 2, res.EdgesStored)
	assert.Equal(t, 3, res.TotalFetched)

	followings, err := st.GetFollowings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, followings)
}

func TestCollectExistingProfilePolicy(t *testing.T) {
	tests := []struct {
		name     string
		refresh  bool
		wantName string
	}{
		{name: "keep stored profile", refresh: false, wantName: "Old Bob"},
		{name: "refresh stored profile", refresh: true, wantName: "bob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFakeFetcher()
			f.addUser("alice", "bob")
			c, st, _ := newTestCrawler(t, f, Config{RefreshExisting: tt.refresh})
			require.NoError(t, st.UpsertUser(ctx, &store.User{Username: "bob", Name: "Old Bob"}))

			res := c.Collect(ctx, "alice", Options{})
			require.Equal(t, OutcomeSuccess, res.Outcome)
			assert.Equal(t, 0, res.NewUsers)
			assert.Equal(t, 1, res.ExistingUsers)

			bob, err := st.GetUser(ctx, "bob")
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, bob.Name)
		})
	}
}

func TestCollectPageCap(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("alice", "bob")
	f.addUser("carol", "bob")
	c, st, _ := newTestCrawler(t, f, Config{MaxPagesPerUser: 5})

	c.Collect(ctx, "alice", Options{})
	c.Collect(ctx, "carol", Options{MaxPages: 2})

	assert.Equal(t, []int{5, 2}, f.maxPagesSeen)

	state, err := st.GetCrawlState(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 2, state.MaxPagesAttempted)
}

func TestCollectCancelledLeavesStateUnwritten(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFetcher()
	f.addUser("alice", "bob")
	f.onFollowings = func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	}
	c, st, _ := newTestCrawler(t, f, Config{})

	res := c.Collect(ctx, "alice", Options{})
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Nil(t, res.State)

	state, err := st.GetCrawlState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, state)
	assert.Equal(t, store.PhaseUnseen, state.Phase())
}

func TestCollectBatchStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFetcher()
	f.addUser("alice", "bob")
	f.addUser("carol")
	f.onFollowings = func(_ context.Context, username string) error {
		if username == "alice" {
			cancel()
		}
		return nil
	}
	c, _, _ := newTestCrawler(t, f, Config{})

	report := c.CollectBatch(ctx, []string{"alice", "carol"}, Options{})
	assert.True(t, report.Cancelled)
	require.Len(t, report.Results, 1)
	assert.Equal(t, []string{"alice"}, f.userCalls)
}

// failingTxStore breaks the followings transaction
type failingTxStore struct {
	*store.Store
}

func (s failingTxStore) InTx(ctx context.Context, fn func(w store.Writer) error) error {
	return errors.New("disk full")
}

func TestCollectStoreFailureIsPartial(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.addUser("alice", "bob")
	st := storetest.OpenMemory(t)
	c := New(f, failingTxStore{st}, Config{}, logger.NewTestLogger())

	res := c.Collect(ctx, "alice", Options{})
	assert.Equal(t, OutcomePartialFailure, res.Outcome)
	assert.Contains(t, res.Message, "disk full")

	state, err := st.GetCrawlState(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, store.PhaseFailed, state.Phase())
	assert.Contains(t, state.LastError(), "disk full")

	// the profile itself was stored before the failure
	exists, err := st.UserExists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCollectThroughAPIClient(t *testing.T) {
	ctx := context.Background()
	pages := map[string]socialapi.FollowingsResponse{
		"": {
			Status:      socialapi.StatusSuccess,
			Followings:  []socialapi.Profile{{UserName: "Bob"}, {UserName: "carol"}},
			HasNextPage: true,
			NextCursor:  strPtr("c1"),
		},
		"c1": {
			Status:     socialapi.StatusSuccess,
			Followings: []socialapi.Profile{{UserName: "dave"}},
		},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user/info":
			_ = json.NewEncoder(w).Encode(socialapi.UserInfoResponse{
				Status: socialapi.StatusSuccess,
				Data: &socialapi.Profile{
					UserName:       "alice",
					PinnedTweetIDs: []string{"42"},
				},
			})
		case "/user/followings":
			_ = json.NewEncoder(w).Encode(pages[r.URL.Query().Get("cursor")])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := socialapi.NewClient(socialapi.Options{BaseURL: srv.URL, PageSize: 2}, logger.NewTestLogger())
	c, st, _ := newTestCrawler(t, client, Config{PinnedPostURLTemplate: "https://x.test/p/{tweet_id}"})

	res := c.Collect(ctx, "alice", Options{})
	require.Equal(t, OutcomeSuccess, res.Outcome, res.Message)
	assert.Equal(t, 3, res.EdgesStored)
	assert.Equal(t, 2, res.PagesScraped)

	alice, err := st.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/p/42", alice.PinnedPostLink)

	followings, err := st.GetFollowings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "dave"}, followings)
}

func strPtr(s string) *string { return &s }

func TestToUser(t *testing.T) {
	p := &socialapi.Profile{
		UserName:       "FooBar",
		Name:           "Foo",
		Description:    "building things",
		IsBlueVerified: true,
		VerifiedType:   "blue",
		Followers:      10,
		PinnedTweetIDs: []string{"123"},
		ProfileBio: &socialapi.ProfileBio{Entities: socialapi.BioEntities{
			URL: &socialapi.URLEntity{URLs: []socialapi.LinkEntity{{URL: "https://t.co/x", ExpandedURL: "https://foo.dev"}}},
		}},
	}

	u := ToUser(p, "")
	assert.Equal(t, "foobar", u.Username)
	assert.Equal(t, "building things", u.Bio)
	assert.Equal(t, "https://foo.dev", u.URL)
	assert.Equal(t, "https://twitter.com/i/web/status/123", u.PinnedPostLink)
	assert.True(t, u.IsVerified)

	p.PinnedTweetIDs = nil
	assert.Empty(t, ToUser(p, "").PinnedPostLink)
}

func TestPagesFor(t *testing.T) {
	assert.Equal(t, 0, pagesFor(0, 200))
	assert.Equal(t, 1, pagesFor(1, 200))
	assert.Equal(t, 1, pagesFor(200, 200))
	assert.Equal(t, 2, pagesFor(201, 200))
	assert.Equal(t, 2, pagesFor(250, 200))
	assert.Equal(t, 1, pagesFor(5, 0))
}
