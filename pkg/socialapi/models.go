package socialapi

import (
	errs "github.com/derwolz/TwitterScraper/pkg/errors"
)

// StatusSuccess is the status value the API returns for a usable response
const StatusSuccess = "success"

// Profile is the user record shared by the info and followings endpoints
type Profile struct {
	UserName       string      `json:"userName"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Location       string      `json:"location"`
	IsBlueVerified bool        `json:"isBlueVerified"`
	VerifiedType   string      `json:"verifiedType"`
	Followers      int         `json:"followers"`
	Following      int         `json:"following"`
	PinnedTweetIDs []string    `json:"pinnedTweetIds"`
	CreatedAt      string      `json:"createdAt"`
	IsAutomated    bool        `json:"isAutomated"`
	MediaCount     int         `json:"mediaCount"`
	StatusesCount  int         `json:"statusesCount"`
	ProfileBio     *ProfileBio `json:"profile_bio,omitempty"`
}

// ProfileBio carries the structured parts of a bio
type ProfileBio struct {
	Description string      `json:"description"`
	Entities    BioEntities `json:"entities"`
}

type BioEntities struct {
	URL *URLEntity `json:"url,omitempty"`
}

type URLEntity struct {
	URLs []LinkEntity `json:"urls"`
}

type LinkEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	DisplayURL  string `json:"display_url"`
}

// WebsiteURL returns the first link attached to the profile, preferring the
// expanded form. Empty when the profile has none.
func (p *Profile) WebsiteURL() string {
	if p.ProfileBio == nil || p.ProfileBio.Entities.URL == nil {
		return ""
	}
	urls := p.ProfileBio.Entities.URL.URLs
	if len(urls) == 0 {
		return ""
	}
	if urls[0].ExpandedURL != "" {
		return urls[0].ExpandedURL
	}
	return urls[0].URL
}

// FirstPinnedID returns the first pinned content ID, or "" if none
func (p *Profile) FirstPinnedID() string {
	for _, id := range p.PinnedTweetIDs {
		if id != "" {
			return id
		}
	}
	return ""
}

// Validate checks the fields every stored profile needs
func (p *Profile) Validate() error {
	if p.UserName == "" {
		return errs.New(errs.ErrorTypeParsing, 0, "profile without userName")
	}
	return nil
}

// UserInfoResponse is the body of GET /user/info
type UserInfoResponse struct {
	Status string   `json:"status"`
	Msg    string   `json:"msg,omitempty"`
	Data   *Profile `json:"data"`
}

// FollowingsResponse is the body of GET /user/followings
type FollowingsResponse struct {
	Status      string    `json:"status"`
	Msg         string    `json:"msg,omitempty"`
	Followings  []Profile `json:"followings"`
	HasNextPage bool      `json:"has_next_page"`
	NextCursor  *string   `json:"next_cursor"`
}

// Cursor returns the continuation token, or "" when the API sent none
func (r *FollowingsResponse) Cursor() string {
	if r.NextCursor == nil {
		return ""
	}
	return *r.NextCursor
}

// HasMore reports whether another page can be requested
func (r *FollowingsResponse) HasMore() bool {
	return r.HasNextPage && r.Cursor() != ""
}
