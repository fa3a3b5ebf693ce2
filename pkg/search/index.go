// Package search keeps a full-text index of collected user bios.
package search

import (
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	_ "github.com/blevesearch/bleve/v2/search/highlight/highlighter/ansi"

	"github.com/derwolz/TwitterScraper/pkg/store"
)

const defaultLimit = 10

// Index wraps a Bleve search index
type Index struct {
	index bleve.Index
}

// UserDocument is what gets indexed for one user
type UserDocument struct {
	Username  string
	Name      string
	Bio       string
	Location  string
	Followers float64
}

// Hit is one search result
type Hit struct {
	Username  string
	Name      string
	Followers int
	Score     float64
	Fragments map[string][]string
}

// Open opens or creates a Bleve index at path
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// OpenMemory creates an index that lives only in memory
func OpenMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	userMapping := bleve.NewDocumentMapping()
	userMapping.AddFieldMappingsAt("Username", bleve.NewTextFieldMapping())
	userMapping.AddFieldMappingsAt("Name", bleve.NewTextFieldMapping())
	userMapping.AddFieldMappingsAt("Bio", bleve.NewTextFieldMapping())
	userMapping.AddFieldMappingsAt("Location", bleve.NewTextFieldMapping())
	userMapping.AddFieldMappingsAt("Followers", bleve.NewNumericFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", userMapping)
	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexUsers adds or replaces users in one batch and returns how many were indexed
func (i *Index) IndexUsers(users []store.User) (int, error) {
	batch := i.index.NewBatch()
	for _, u := range users {
		doc := &UserDocument{
			Username:  u.Username,
			Name:      u.Name,
			Bio:       u.Bio,
			Location:  u.Location,
			Followers: float64(u.Followers),
		}
		if err := batch.Index(u.Username, doc); err != nil {
			return 0, fmt.Errorf("batch index %s: %w", u.Username, err)
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return len(users), nil
}

// Delete removes a user from the index
func (i *Index) Delete(username string) error {
	return i.index.Delete(username)
}

// Search runs a query string query (quotes, +/-, field:term, fuzzy ~) with
// highlighted bio fragments
func (i *Index) Search(queryStr string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	query := bleve.NewQueryStringQuery(queryStr)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("ansi")
	req.Highlight.AddField("Bio")
	req.Fields = []string{"Username", "Name", "Followers"}

	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		hit := Hit{
			Username:  h.ID,
			Score:     h.Score,
			Fragments: h.Fragments,
		}
		if name, ok := h.Fields["Name"].(string); ok {
			hit.Name = name
		}
		if followers, ok := h.Fields["Followers"].(float64); ok {
			hit.Followers = int(followers)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
