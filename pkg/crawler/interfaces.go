package crawler

import (
	"context"

	"github.com/derwolz/TwitterScraper/pkg/socialapi"
	"github.com/derwolz/TwitterScraper/pkg/store"
)

// Fetcher defines the API operations the crawler needs
type Fetcher interface {
	FetchUser(ctx context.Context, username string) (*socialapi.Profile, error)
	FetchAllFollowings(ctx context.Context, username string, maxPages int) ([]socialapi.Profile, error)
	PageSize() int
}

// Store defines the persistence operations the crawler needs
type Store interface {
	GetCrawlState(ctx context.Context, username string) (*store.CrawlState, error)
	SaveCrawlState(ctx context.Context, state store.CrawlState) error
	UsersExist(ctx context.Context, usernames []string) (map[string]bool, error)
	UpsertUser(ctx context.Context, u *store.User) error
	InTx(ctx context.Context, fn func(w store.Writer) error) error
}
