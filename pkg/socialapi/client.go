package socialapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/derwolz/TwitterScraper/pkg/config"
	errs "github.com/derwolz/TwitterScraper/pkg/errors"
	"github.com/derwolz/TwitterScraper/pkg/logger"
	"github.com/derwolz/TwitterScraper/pkg/ratelimit"
	"github.com/derwolz/TwitterScraper/pkg/retry"
)

// Options configures a Client
type Options struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	PageSize     int
	Timeout      time.Duration
	UserAgent    string

	// Limiter paces every request; nil means no pacing
	Limiter ratelimit.Limiter
	// Retry is applied to transport, 5xx and 429 failures; nil means a single attempt
	Retry *retry.Config
}

// OptionsFromConfig builds client options from the application configuration
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		BaseURL:      cfg.API.BaseURL,
		APIKey:       cfg.API.APIKey,
		APIKeyHeader: cfg.API.APIKeyHeader,
		PageSize:     cfg.API.PageSize,
		Timeout:      cfg.API.Timeout,
		UserAgent:    cfg.API.UserAgent,
		Limiter:      ratelimit.NewMinInterval(cfg.RateLimit.RequestDelay),
	}
	if cfg.RateLimit.MaxRetries > 0 {
		opts.Retry = &retry.Config{
			MaxRetries: cfg.RateLimit.MaxRetries,
			Backoff:    retry.NewExponentialBackoff(cfg.RateLimit.RetryDelay),
		}
	}
	return opts
}

// Client talks to the social API. It is not safe for concurrent use; the
// limiter serializes requests anyway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	pageSize   int
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a new API client
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = "X-API-Key"
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}
	if opts.APIKey != "" {
		headers[opts.APIKeyHeader] = opts.APIKey
	}

	retryCfg := opts.Retry
	if retryCfg != nil && retryCfg.Logger == nil {
		cp := *retryCfg
		cp.Logger = log
		retryCfg = &cp
	}

	retries := 0
	if retryCfg != nil {
		retries = retryCfg.MaxRetries
	}
	logger.LogComponentStart(log, "socialapi", map[string]interface{}{
		"base_url":    opts.BaseURL,
		"page_size":   opts.PageSize,
		"max_retries": retries,
	})

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		headers:    headers,
		pageSize:   opts.PageSize,
		limiter:    opts.Limiter,
		retry:      retryCfg,
		logger:     log.WithField("component", "socialapi"),
	}
}

// PageSize returns the page size sent with every followings request
func (c *Client) PageSize() int {
	return c.pageSize
}

// getJSON performs one paced GET and decodes the JSON body into target
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	endpoint := c.baseURL + path + "?" + query.Encode()

	return retry.Do(ctx, func() error {
		waited, err := c.limiter.Wait(ctx)
		if err != nil {
			return err
		}
		logger.LogRateLimitWait(c.logger, path, waited)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
		}
		for key, value := range c.headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		c.limiter.Record()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
				"path":     path,
				"error":    err.Error(),
				"duration": time.Since(start),
			})
			return errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
		}
		defer resp.Body.Close()

		logger.LogRequest(c.logger, req.Method, path, resp.StatusCode, time.Since(start))

		if resp.StatusCode != http.StatusOK {
			return errs.FromStatus(resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
		}

		if err := json.Unmarshal(body, target); err != nil {
			preview := string(body)
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			c.logger.WarnWithFields("failed to parse JSON response", map[string]interface{}{
				"path":         path,
				"error":        err.Error(),
				"body_preview": preview,
			})
			return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
		}
		return nil
	}, c.retry)
}

// FetchUser fetches one user's profile. A response without usable data is
// returned as a typed error.
func (c *Client) FetchUser(ctx context.Context, username string) (*Profile, error) {
	var resp UserInfoResponse
	if err := c.getJSON(ctx, userInfoPath, userInfoQuery(username), &resp); err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", username, err)
	}

	if resp.Status != StatusSuccess {
		return nil, errs.New(errs.ErrorTypeAPIStatus, http.StatusOK, "user %s: status %q %s", username, resp.Status, resp.Msg)
	}
	if resp.Data == nil {
		return nil, errs.New(errs.ErrorTypeNotFound, http.StatusOK, "user %s: response carried no data", username)
	}
	if err := resp.Data.Validate(); err != nil {
		return nil, fmt.Errorf("user %s: %w", username, err)
	}

	return resp.Data, nil
}

// FetchFollowingsPage fetches one page of the accounts username follows.
// Records without a userName are dropped.
func (c *Client) FetchFollowingsPage(ctx context.Context, username, cursor string) (*FollowingsResponse, error) {
	var resp FollowingsResponse
	if err := c.getJSON(ctx, followingsPath, followingsQuery(username, c.pageSize, cursor), &resp); err != nil {
		return nil, fmt.Errorf("fetch followings of %s: %w", username, err)
	}

	if resp.Status != StatusSuccess {
		return nil, errs.New(errs.ErrorTypeAPIStatus, http.StatusOK, "followings of %s: status %q %s", username, resp.Status, resp.Msg)
	}

	valid := resp.Followings[:0]
	for _, p := range resp.Followings {
		if err := p.Validate(); err != nil {
			c.logger.DebugWithFields("dropping following record", map[string]interface{}{
				"username": username,
				"reason":   err.Error(),
			})
			continue
		}
		valid = append(valid, p)
	}
	resp.Followings = valid

	return &resp, nil
}

// FetchAllFollowings walks every followings page of username, up to maxPages
// pages when maxPages > 0. A page that fails is treated as the end of the
// data; only context cancellation is returned as an error, together with
// whatever was collected so far.
func (c *Client) FetchAllFollowings(ctx context.Context, username string, maxPages int) ([]Profile, error) {
	var all []Profile
	cursor := ""
	pages := 0

	for {
		if maxPages > 0 && pages >= maxPages {
			c.logger.DebugWithFields("page cap reached", map[string]interface{}{
				"username":  username,
				"max_pages": maxPages,
			})
			break
		}

		page, err := c.FetchFollowingsPage(ctx, username, cursor)
		pages++
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return all, err
			}
			c.logger.WithError(err).WarnWithFields("followings page failed, treating as end of data", map[string]interface{}{
				"username": username,
				"page":     pages,
			})
			break
		}

		if len(page.Followings) == 0 {
			break
		}
		all = append(all, page.Followings...)

		c.logger.DebugWithFields("fetched followings page", map[string]interface{}{
			"username": username,
			"page":     pages,
			"count":    len(page.Followings),
			"total":    len(all),
		})

		if !page.HasMore() {
			break
		}
		cursor = page.Cursor()
	}

	return all, nil
}
