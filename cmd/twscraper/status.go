package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/derwolz/TwitterScraper/pkg/store"
	"github.com/derwolz/TwitterScraper/pkg/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status [username]",
	Short: "Show the crawl state of a user, or the processing breakdown",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		if len(args) == 1 {
			err = showUserStatus(cmd.Context(), a.store, args[0], ui.Output())
		} else {
			err = showProcessingStatus(cmd.Context(), a.store, ui.Output())
		}
		if err != nil {
			fail("Failed to read crawl state", err)
		}
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <username...>",
	Short: "Forget the crawl state of users so they are collected again",
	Long: `Delete the crawl state of the given users. Their profiles and stored
relationships are kept; the next collect run fetches them again.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		for _, name := range args {
			removed, err := a.store.ResetCrawlState(cmd.Context(), name)
			switch {
			case err != nil:
				fail("Failed to reset "+name, err)
			case removed:
				ui.PrintSuccess("Reset " + name)
			default:
				ui.PrintWarning("No crawl state recorded", name)
			}
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		if err := showStats(cmd.Context(), a.store, ui.Output()); err != nil {
			fail("Failed to read statistics", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statsCmd)
}

func showUserStatus(ctx context.Context, st *store.Store, username string, w io.Writer) error {
	state, err := st.GetCrawlState(ctx, username)
	if err != nil {
		return err
	}
	ui.RenderCrawlState(w, username, state)
	return nil
}

func showProcessingStatus(ctx context.Context, st *store.Store, w io.Writer) error {
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	ui.RenderStats(w, stats)

	failed, err := st.FailedUsers(ctx)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		ui.RenderFailedUsers(w, failed)
	}
	return nil
}

func showStats(ctx context.Context, st *store.Store, w io.Writer) error {
	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	ui.RenderStats(w, stats)

	if stats.AnalyzedUsers == 0 {
		fmt.Fprintln(w, ui.Dim("No bios analyzed yet; run 'twscraper analyze'."))
		return nil
	}
	aiStats, err := st.AIStats(ctx, 10)
	if err != nil {
		return err
	}
	ui.RenderAIStats(w, aiStats)
	return nil
}
