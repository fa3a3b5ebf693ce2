package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derwolz/TwitterScraper/pkg/search"
	"github.com/derwolz/TwitterScraper/pkg/store"
	"github.com/derwolz/TwitterScraper/pkg/ui"
)

var (
	indexPath   string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Full-text search over collected bios",
}

var searchIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index every stored profile",
	Long: `Build or refresh the search index from the users table. Profiles already in
the index are replaced.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		idx, err := search.Open(searchIndexPath(a))
		if err != nil {
			fail("Failed to open search index", err)
		}
		defer idx.Close()

		n, total, err := indexUsers(cmd.Context(), a.store, idx)
		if err != nil {
			fail("Indexing failed", err)
		}
		ui.PrintSuccess(fmt.Sprintf("Indexed %d profiles (%d documents in index)", n, total))
	},
}

var searchQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search indexed profiles",
	Long: `Search indexed profiles with the query string syntax: plain words match
any field, Bio:rust restricts to a field, +word requires a term and
Followers:>1000 filters numerically.`,
	Example: `  twscraper search query "machine learning"
  twscraper search query "+Location:berlin rust"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		idx, err := search.Open(searchIndexPath(a))
		if err != nil {
			fail("Failed to open search index", err)
		}
		defer idx.Close()

		if err := runSearch(idx, strings.Join(args, " "), searchLimit, ui.Output()); err != nil {
			fail("Search failed", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchIndexCmd)
	searchCmd.AddCommand(searchQueryCmd)

	searchCmd.PersistentFlags().StringVar(&indexPath, "index", "", "index directory (default from config)")
	searchQueryCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum results")
}

func searchIndexPath(a *app) string {
	if indexPath != "" {
		return indexPath
	}
	return a.cfg.Search.IndexPath
}

// indexUsers indexes every stored user and returns how many were indexed
// and the resulting document count
func indexUsers(ctx context.Context, st *store.Store, idx *search.Index) (int, uint64, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return 0, 0, err
	}
	n, err := idx.IndexUsers(users)
	if err != nil {
		return n, 0, err
	}
	total, err := idx.Count()
	return n, total, err
}

func runSearch(idx *search.Index, query string, limit int, w io.Writer) error {
	hits, err := idx.Search(query, limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matches.")
		return nil
	}
	ui.RenderSearchHits(w, hits)
	return nil
}
