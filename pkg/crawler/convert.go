package crawler

import (
	"strings"

	"github.com/derwolz/TwitterScraper/pkg/socialapi"
	"github.com/derwolz/TwitterScraper/pkg/store"
)

// DefaultPinnedPostURLTemplate builds a link to a pinned post from its ID
const DefaultPinnedPostURLTemplate = "https://twitter.com/i/web/status/{tweet_id}"

// ToUser maps an API profile onto a stored user
func ToUser(p *socialapi.Profile, pinnedTemplate string) *store.User {
	if pinnedTemplate == "" {
		pinnedTemplate = DefaultPinnedPostURLTemplate
	}

	var pinned string
	if id := p.FirstPinnedID(); id != "" {
		pinned = strings.ReplaceAll(pinnedTemplate, "{tweet_id}", id)
	}

	return &store.User{
		Username:         strings.ToLower(p.UserName),
		Name:             p.Name,
		URL:              p.WebsiteURL(),
		Bio:              p.Description,
		Location:         p.Location,
		IsVerified:       p.IsBlueVerified,
		VerificationType: p.VerifiedType,
		Followers:        p.Followers,
		Following:        p.Following,
		PinnedPostLink:   pinned,
		CreatedAt:        p.CreatedAt,
		IsAutomated:      p.IsAutomated,
		MediaCount:       p.MediaCount,
		StatusesCount:    p.StatusesCount,
	}
}
