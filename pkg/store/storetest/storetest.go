// Package storetest opens throwaway stores for tests in other packages.
package storetest

import (
	"testing"

	"github.com/derwolz/TwitterScraper/pkg/store"
)

// OpenMemory opens an in-memory store that is closed when the test ends
func OpenMemory(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("storetest.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
