package socialapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	errs "github.com/derwolz/TwitterScraper/pkg/errors"
	"github.com/derwolz/TwitterScraper/pkg/logger"
	"github.com/derwolz/TwitterScraper/pkg/ratelimit"
	"github.com/derwolz/TwitterScraper/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func profiles(prefix string, n int) []Profile {
	out := make([]Profile, n)
	for i := range out {
		out[i] = Profile{UserName: fmt.Sprintf("%s%d", prefix, i), Name: "User"}
	}
	return out
}

type recordedRequest struct {
	path   string
	query  map[string]string
	header http.Header
}

// fakeAPI serves canned followings pages keyed by cursor
type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	pages    map[string]FollowingsResponse
	user     *UserInfoResponse
	status   int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{path: r.URL.Path, query: q, header: r.Header.Clone()})
		f.mu.Unlock()

		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case userInfoPath:
			if f.user == nil {
				_ = json.NewEncoder(w).Encode(UserInfoResponse{Status: "error", Msg: "unknown user"})
				return
			}
			_ = json.NewEncoder(w).Encode(f.user)
		case followingsPath:
			page, ok := f.pages[q["cursor"]]
			if !ok {
				t.Errorf("unexpected cursor %q", q["cursor"])
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(page)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (f *fakeAPI) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestClient(t *testing.T, api *fakeAPI, pageSize int) (*Client, *logger.TestLogger) {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger()
	client := NewClient(Options{
		BaseURL:  srv.URL,
		APIKey:   "secret-key",
		PageSize: pageSize,
	}, log)
	return client, log
}

func TestNewClientLogsSettings(t *testing.T) {
	tl := logger.NewTestLogger()
	NewClient(Options{
		BaseURL: "https://api.test",
		APIKey:  "secret-key",
		Retry:   &retry.Config{MaxRetries: 2},
	}, tl)

	info := tl.GetMessagesByLevel("INFO")
	require.Len(t, info, 1)
	assert.Equal(t, "Component started", info[0].Message)
	assert.Equal(t, "socialapi", info[0].Fields["component"])
	assert.Equal(t, 200, info[0].Fields["page_size"])
	assert.Equal(t, 2, info[0].Fields["max_retries"])
	assert.NotContains(t, tl.String(), "secret-key")
}

func TestFetchUser(t *testing.T) {
	api := &fakeAPI{user: &UserInfoResponse{
		Status: StatusSuccess,
		Data: &Profile{
			UserName:       "Alice",
			Description:    "building things",
			Followers:      10,
			PinnedTweetIDs: []string{"", "42"},
			ProfileBio: &ProfileBio{Entities: BioEntities{URL: &URLEntity{
				URLs: []LinkEntity{{URL: "https://t.co/x", ExpandedURL: "https://alice.dev"}},
			}}},
		},
	}}
	client, _ := newTestClient(t, api, 200)

	profile, err := client.FetchUser(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.UserName)
	assert.Equal(t, "https://alice.dev", profile.WebsiteURL())
	assert.Equal(t, "42", profile.FirstPinnedID())

	require.Equal(t, 1, api.requestCount())
	req := api.requests[0]
	assert.Equal(t, "/user/info", req.path)
	assert.Equal(t, "Alice", req.query["userName"])
	assert.Equal(t, "secret-key", req.header.Get("X-API-Key"))
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
}

func TestFetchUserFailures(t *testing.T) {
	t.Run("api status error", func(t *testing.T) {
		client, _ := newTestClient(t, &fakeAPI{}, 200)
		_, err := client.FetchUser(context.Background(), "ghost")

		var apiErr *errs.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, errs.ErrorTypeAPIStatus, apiErr.Type)
	})

	t.Run("missing data", func(t *testing.T) {
		client, _ := newTestClient(t, &fakeAPI{user: &UserInfoResponse{Status: StatusSuccess}}, 200)
		_, err := client.FetchUser(context.Background(), "ghost")

		var apiErr *errs.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, errs.ErrorTypeNotFound, apiErr.Type)
	})

	t.Run("http status", func(t *testing.T) {
		client, _ := newTestClient(t, &fakeAPI{status: http.StatusUnauthorized}, 200)
		_, err := client.FetchUser(context.Background(), "ghost")

		var apiErr *errs.Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
	})
}

func TestFetchAllFollowingsFollowsCursor(t *testing.T) {
	api := &fakeAPI{pages: map[string]FollowingsResponse{
		"":   {Status: StatusSuccess, Followings: profiles("a", 2), HasNextPage: true, NextCursor: strPtr("c1")},
		"c1": {Status: StatusSuccess, Followings: profiles("b", 2), HasNextPage: true, NextCursor: strPtr("c2")},
		"c2": {Status: StatusSuccess, Followings: profiles("c", 1), HasNextPage: false},
	}}
	client, _ := newTestClient(t, api, 2)

	all, err := client.FetchAllFollowings(context.Background(), "root", 0)
	require.NoError(t, err)

	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.UserName
	}
	assert.Equal(t, []string{"a0", "a1", "b0", "b1", "c0"}, names)
	assert.Equal(t, 3, api.requestCount())
	assert.Equal(t, "2", api.requests[0].query["pageSize"])
	assert.Equal(t, "c2", api.requests[2].query["cursor"])
}

func TestFetchAllFollowingsStopsAtPageCap(t *testing.T) {
	// every page is full and claims more data
	api := &fakeAPI{pages: map[string]FollowingsResponse{
		"":  {Status: StatusSuccess, Followings: profiles("x", 3), HasNextPage: true, NextCursor: strPtr("n")},
		"n": {Status: StatusSuccess, Followings: profiles("x", 3), HasNextPage: true, NextCursor: strPtr("n")},
	}}
	client, _ := newTestClient(t, api, 3)

	all, err := client.FetchAllFollowings(context.Background(), "root", 4)
	require.NoError(t, err)
	assert.Len(t, all, 12)
	assert.Equal(t, 4, api.requestCount())
}

func TestFetchAllFollowingsStopConditions(t *testing.T) {
	tests := []struct {
		name      string
		pages     map[string]FollowingsResponse
		wantCount int
		wantCalls int
	}{
		{
			name: "empty first page",
			pages: map[string]FollowingsResponse{
				"": {Status: StatusSuccess, HasNextPage: true, NextCursor: strPtr("n")},
			},
			wantCount: 0,
			wantCalls: 1,
		},
		{
			name: "has_next_page false",
			pages: map[string]FollowingsResponse{
				"": {Status: StatusSuccess, Followings: profiles("a", 2), HasNextPage: false, NextCursor: strPtr("n")},
			},
			wantCount: 2,
			wantCalls: 1,
		},
		{
			name: "missing cursor",
			pages: map[string]FollowingsResponse{
				"": {Status: StatusSuccess, Followings: profiles("a", 2), HasNextPage: true},
			},
			wantCount: 2,
			wantCalls: 1,
		},
		{
			name: "empty cursor",
			pages: map[string]FollowingsResponse{
				"": {Status: StatusSuccess, Followings: profiles("a", 2), HasNextPage: true, NextCursor: strPtr("")},
			},
			wantCount: 2,
			wantCalls: 1,
		},
		{
			name: "error status mid-walk truncates",
			pages: map[string]FollowingsResponse{
				"":  {Status: StatusSuccess, Followings: profiles("a", 2), HasNextPage: true, NextCursor: strPtr("n")},
				"n": {Status: "error", Msg: "backend unavailable"},
			},
			wantCount: 2,
			wantCalls: 2,
		},
		{
			name: "records without userName are dropped",
			pages: map[string]FollowingsResponse{
				"": {Status: StatusSuccess, Followings: []Profile{{UserName: "ok"}, {Name: "anonymous"}}},
			},
			wantCount: 1,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{pages: tt.pages}
			client, _ := newTestClient(t, api, 2)

			all, err := client.FetchAllFollowings(context.Background(), "root", 10)
			require.NoError(t, err)
			assert.Len(t, all, tt.wantCount)
			assert.Equal(t, tt.wantCalls, api.requestCount())
		})
	}
}

func TestFetchAllFollowingsSwallowsHTTPErrors(t *testing.T) {
	api := &fakeAPI{status: http.StatusInternalServerError}
	client, log := newTestClient(t, api, 200)

	all, err := client.FetchAllFollowings(context.Background(), "root", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.True(t, log.HasMessageContaining("treating as end of data"))
}

func TestFetchAllFollowingsSwallowsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, APIKey: "k"}, logger.NewTestLogger())
	all, err := client.FetchAllFollowings(context.Background(), "root", 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFetchAllFollowingsPropagatesCancellation(t *testing.T) {
	api := &fakeAPI{pages: map[string]FollowingsResponse{
		"":  {Status: StatusSuccess, Followings: profiles("a", 1), HasNextPage: true, NextCursor: strPtr("n")},
		"n": {Status: StatusSuccess, Followings: profiles("b", 1)},
	}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	client := NewClient(Options{
		BaseURL: srv.URL,
		Limiter: ratelimit.NewMinInterval(time.Hour),
	}, logger.NewTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	all, err := client.FetchAllFollowings(ctx, "root", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, all, 1)
}

func TestRequestsArePaced(t *testing.T) {
	api := &fakeAPI{pages: map[string]FollowingsResponse{
		"":  {Status: StatusSuccess, Followings: profiles("a", 1), HasNextPage: true, NextCursor: strPtr("n")},
		"n": {Status: StatusSuccess, Followings: profiles("b", 1)},
	}}
	srv := httptest.NewServer(api.handler(t))
	defer srv.Close()

	client := NewClient(Options{
		BaseURL: srv.URL,
		Limiter: ratelimit.NewMinInterval(60 * time.Millisecond),
	}, logger.NewTestLogger())

	start := time.Now()
	_, err := client.FetchAllFollowings(context.Background(), "root", 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRetryOnServerError(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(UserInfoResponse{Status: StatusSuccess, Data: &Profile{UserName: "bob"}})
	}))
	defer srv.Close()

	client := NewClient(Options{
		BaseURL: srv.URL,
		Retry:   &retry.Config{MaxRetries: 2, Backoff: retry.ConstantBackoff{Delay: time.Millisecond}},
	}, logger.NewTestLogger())

	profile, err := client.FetchUser(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", profile.UserName)
	assert.Equal(t, 2, calls)
}
