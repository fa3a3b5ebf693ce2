// Package crawler drives users through the followings collection lifecycle:
// check crawl state, fetch the profile, fetch every followings page, store
// the discovered users and edges, and record the final crawl state.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/derwolz/TwitterScraper/pkg/config"
	"github.com/derwolz/TwitterScraper/pkg/logger"
	"github.com/derwolz/TwitterScraper/pkg/socialapi"
	"github.com/derwolz/TwitterScraper/pkg/store"
)

// Config controls how the crawler stores what it fetches
type Config struct {
	// MaxPagesPerUser caps followings pages per user; 0 means no cap
	MaxPagesPerUser int
	// RefreshExisting overwrites already stored profiles found in a followings batch
	RefreshExisting       bool
	PinnedPostURLTemplate string
}

// ConfigFrom extracts the crawler settings from the application config
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxPagesPerUser:       cfg.Crawl.MaxPagesPerUser,
		RefreshExisting:       cfg.Crawl.RefreshExisting,
		PinnedPostURLTemplate: cfg.Crawl.PinnedPostURLTemplate,
	}
}

// Options adjust a single collection
type Options struct {
	// MaxPages overrides the configured page cap when > 0
	MaxPages int
	// Force collects users whose crawl state is already complete
	Force bool
	// OnProgress is called from the collecting goroutine before and after each user
	OnProgress func(Progress)
}

// Progress reports batch advancement. Result is nil when a user starts.
type Progress struct {
	Position int
	Total    int
	Username string
	Result   *Result
}

func (o Options) progress(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

// Crawler collects followings for users
type Crawler struct {
	fetcher Fetcher
	store   Store
	cfg     Config
	logger  logger.Logger
	now     func() time.Time
}

// New creates a crawler. A nil logger uses the global one.
func New(fetcher Fetcher, st Store, cfg Config, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Crawler{
		fetcher: fetcher,
		store:   st,
		cfg:     cfg,
		logger:  log.WithField("component", "crawler"),
		now:     time.Now,
	}
}

func (c *Crawler) maxPages(opts Options) int {
	if opts.MaxPages > 0 {
		return opts.MaxPages
	}
	return c.cfg.MaxPagesPerUser
}

// Collect runs one user through the collection lifecycle. Failures are
// reported in the result; only a broken store read before any work starts
// leaves the crawl state untouched.
func (c *Crawler) Collect(ctx context.Context, username string, opts Options) Result {
	start := c.now()
	username = strings.TrimSpace(username)
	res := c.collect(ctx, username, opts)
	res.Duration = c.now().Sub(start)

	stats := map[string]interface{}{
		"new_users":      res.NewUsers,
		"existing_users": res.ExistingUsers,
		"edges_stored":   res.EdgesStored,
		"total_fetched":  res.TotalFetched,
		"pages":          res.PagesScraped,
		"duration":       res.Duration,
	}
	var err error
	if !res.OK() {
		err = errors.New(res.Message)
	}
	logger.LogCollectionResult(c.logger, username, string(res.Outcome), stats, err)
	return res
}

func (c *Crawler) collect(ctx context.Context, username string, opts Options) Result {
	res := Result{Username: strings.ToLower(username)}
	if res.Username == "" {
		res.Outcome = OutcomePartialFailure
		res.Message = "empty username"
		return res
	}
	log := c.logger.WithField("username", res.Username)

	state, err := c.store.GetCrawlState(ctx, username)
	if err != nil {
		return c.interrupted(ctx, res, err)
	}
	if state.Phase() == store.PhaseComplete && !opts.Force {
		log.Debug("followings already collected, skipping")
		res.Outcome = OutcomeSkipped
		res.Message = "already collected"
		res.State = state
		res.TotalFetched = state.EdgeCount
		res.PagesScraped = state.PagesScraped
		return res
	}

	maxPages := c.maxPages(opts)

	profile, err := c.fetcher.FetchUser(ctx, username)
	if err != nil {
		if ctx.Err() != nil {
			return c.interrupted(ctx, res, err)
		}
		res.Outcome = OutcomeProfileFetchFailed
		res.Message = fmt.Sprintf("fetch profile: %v", err)
		res.State = c.saveFailure(ctx, log, res.Username, maxPages, res.Message)
		return res
	}

	if err := c.store.UpsertUser(ctx, ToUser(profile, c.cfg.PinnedPostURLTemplate)); err != nil {
		log.WithError(err).Warn("failed to store profile")
	}

	if err := c.collectFollowings(ctx, log, &res, maxPages); err != nil {
		if ctx.Err() != nil {
			return c.interrupted(ctx, res, err)
		}
		res.Outcome = OutcomePartialFailure
		res.Message = err.Error()
		res.State = c.saveFailure(ctx, log, res.Username, maxPages, res.Message)
		return res
	}

	res.Outcome = OutcomeSuccess
	return res
}

// collectFollowings fetches, stores and records the followings of res.Username
func (c *Crawler) collectFollowings(ctx context.Context, log logger.Logger, res *Result, maxPages int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while collecting followings: %v", p)
		}
	}()

	targets, err := c.fetcher.FetchAllFollowings(ctx, res.Username, maxPages)
	if err != nil {
		return fmt.Errorf("fetch followings: %w", err)
	}
	res.TotalFetched = len(targets)

	if len(targets) > 0 {
		if err := c.storeTargets(ctx, res, targets); err != nil {
			return err
		}
		res.PagesScraped = pagesFor(len(targets), c.fetcher.PageSize())
	} else {
		log.Info("no followings returned")
	}

	state := store.CrawlState{
		Username:          res.Username,
		Scraped:           true,
		EdgeCount:         res.TotalFetched,
		PagesScraped:      res.PagesScraped,
		MaxPagesAttempted: maxPages,
		IsComplete:        true,
	}
	if err := c.store.SaveCrawlState(ctx, state); err != nil {
		return fmt.Errorf("save crawl state: %w", err)
	}
	res.State = &state
	return nil
}

// storeTargets writes every discovered user and edge in one transaction
func (c *Crawler) storeTargets(ctx context.Context, res *Result, targets []socialapi.Profile) error {
	names := make([]string, len(targets))
	for i := range targets {
		names[i] = targets[i].UserName
	}
	exists, err := c.store.UsersExist(ctx, names)
	if err != nil {
		return fmt.Errorf("check existing users: %w", err)
	}

	var newUsers, existing, edges int
	err = c.store.InTx(ctx, func(w store.Writer) error {
		seen := make(map[string]bool, len(targets))
		for i := range targets {
			target := &targets[i]
			key := strings.ToLower(target.UserName)
			known := exists[target.UserName] || seen[key]
			seen[key] = true

			user := ToUser(target, c.cfg.PinnedPostURLTemplate)
			switch {
			case c.cfg.RefreshExisting:
				if err := w.UpsertUser(ctx, user); err != nil {
					return err
				}
			case !known:
				created, err := w.InsertUserIfAbsent(ctx, user)
				if err != nil {
					return err
				}
				known = !created
			}
			if known {
				existing++
			} else {
				newUsers++
			}

			inserted, err := w.AddFollowing(ctx, res.Username, key)
			if err != nil {
				return err
			}
			if inserted {
				edges++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store followings: %w", err)
	}

	res.NewUsers, res.ExistingUsers, res.EdgesStored = newUsers, existing, edges
	return nil
}

func (c *Crawler) saveFailure(ctx context.Context, log logger.Logger, username string, maxPages int, msg string) *store.CrawlState {
	state := store.CrawlState{
		Username:          username,
		Scraped:           true,
		MaxPagesAttempted: maxPages,
		IsComplete:        false,
		ErrorMessage:      &msg,
	}
	if err := c.store.SaveCrawlState(ctx, state); err != nil {
		log.WithError(err).Error("failed to record crawl failure")
		return nil
	}
	return &state
}

// interrupted reports a collection stopped by its context or by a store read
// that failed before anything was fetched
func (c *Crawler) interrupted(ctx context.Context, res Result, err error) Result {
	if ctx.Err() != nil {
		res.Outcome = OutcomeCancelled
	} else {
		res.Outcome = OutcomePartialFailure
	}
	res.Message = err.Error()
	return res
}

// CollectBatch collects each user in order. A failing or panicking user does
// not stop the batch; a cancelled context stops it before the next user.
func (c *Crawler) CollectBatch(ctx context.Context, usernames []string, opts Options) *BatchReport {
	report := &BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: c.now(),
	}
	log := c.logger.WithField("run_id", report.RunID)
	log.InfoWithFields("starting batch collection", map[string]interface{}{
		"users":     len(usernames),
		"max_pages": c.maxPages(opts),
		"force":     opts.Force,
	})

	for i, username := range usernames {
		if strings.TrimSpace(username) == "" {
			continue
		}
		if ctx.Err() != nil {
			log.WithField("remaining", len(usernames)-i).Warn("batch cancelled")
			report.Cancelled = true
			break
		}
		log.DebugWithFields("collecting user", map[string]interface{}{
			"username": username,
			"position": i + 1,
			"total":    len(usernames),
		})
		opts.progress(Progress{Position: i + 1, Total: len(usernames), Username: username})
		res := c.safeCollect(ctx, username, opts)
		report.add(res)
		opts.progress(Progress{Position: i + 1, Total: len(usernames), Username: username, Result: &res})
	}

	report.FinishedAt = c.now()
	logger.LogBatchSummary(log, report.RunID, len(report.Results),
		report.Succeeded, report.Skipped, report.Failed, report.Elapsed())
	return report
}

func (c *Crawler) safeCollect(ctx context.Context, username string, opts Options) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			name := strings.ToLower(strings.TrimSpace(username))
			log := c.logger.WithField("username", name)
			log.WithField("panic", fmt.Sprint(p)).Error("collection panicked")
			res = Result{
				Username: name,
				Outcome:  OutcomePartialFailure,
				Message:  fmt.Sprintf("panic: %v", p),
			}
			res.State = c.saveFailure(ctx, log, name, c.maxPages(opts), res.Message)
		}
	}()
	return c.Collect(ctx, username, opts)
}

func pagesFor(total, pageSize int) int {
	if total <= 0 {
		return 0
	}
	if pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
