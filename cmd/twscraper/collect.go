package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/derwolz/TwitterScraper/pkg/crawler"
	"github.com/derwolz/TwitterScraper/pkg/export"
	"github.com/derwolz/TwitterScraper/pkg/ui"
	"github.com/derwolz/TwitterScraper/pkg/ui/tui"
)

var (
	collectFile     string
	collectMaxPages int
	collectForce    bool
	collectRefresh  bool
	collectBaseURL  string
	collectAPIKey   string
	collectTUI      bool
)

// collectCmd represents the collect command
var collectCmd = &cobra.Command{
	Use:   "collect [usernames...]",
	Short: "Collect the followings of one or more users",
	Long: `Fetch the profile and every followings page of each user, storing the
discovered profiles and relationships.

Users come from the arguments, or from --file (one username per line), or
from the users file in the configuration. Users whose followings were already
collected are skipped unless --force is given; failed users are retried.

Press Ctrl+C to stop after the request in flight. The interrupted user keeps
its previous crawl state and is picked up by the next run.`,
	Example: `  # Collect two users
  twscraper collect alice bob

  # Collect everyone listed in next_gen.txt, at most 5 pages each
  twscraper collect --file next_gen.txt --max-pages 5

  # Follow the run in a live progress panel
  twscraper collect --tui alice bob carol`,
	Run: runCollectCmd,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVarP(&collectFile, "file", "f", "", "file with one username per line")
	collectCmd.Flags().IntVar(&collectMaxPages, "max-pages", 0, "followings pages per user (overrides config, 0 keeps it)")
	collectCmd.Flags().BoolVar(&collectForce, "force", false, "collect users that are already complete")
	collectCmd.Flags().BoolVar(&collectRefresh, "refresh-existing", false, "overwrite stored profiles found in followings")
	collectCmd.Flags().StringVar(&collectBaseURL, "base-url", "", "API base URL")
	collectCmd.Flags().StringVar(&collectAPIKey, "api-key", "", "API key (prefer 'twscraper auth login')")
	collectCmd.Flags().BoolVar(&collectTUI, "tui", false, "show a live progress panel instead of log lines")
}

func runCollectCmd(cmd *cobra.Command, args []string) {
	flags := globalFlags()
	if cmd.Flags().Changed("refresh-existing") {
		flags["refresh-existing"] = collectRefresh
	}
	if collectBaseURL != "" {
		flags["base-url"] = collectBaseURL
	}
	if collectAPIKey != "" {
		flags["api-key"] = collectAPIKey
	}

	a, err := newApp(flags)
	if err != nil {
		fail("Failed to load configuration", err)
	}
	defer a.close()

	names, err := collectTargets(args, collectFile, a.cfg.Crawl.UsersFile)
	if err != nil {
		fail("Failed to read usernames", err)
	}
	if len(names) == 0 {
		fail("No usernames to collect", fmt.Errorf("pass usernames or --file"))
	}

	if collectTUI {
		a.quietLogs()
	}
	client, err := a.newClient()
	if err != nil {
		fail("API is not configured", err)
	}

	opts := crawler.Options{MaxPages: collectMaxPages, Force: collectForce}
	var report *crawler.BatchReport
	if collectTUI {
		report, err = runCollectTUI(cmd.Context(), a, client, names, opts, ui.Output(),
			tea.WithOutput(os.Stderr))
	} else {
		ui.PrintBanner()
		ui.PrintInfo("Users", fmt.Sprintf("%d", len(names)))
		ui.PrintInfo("Database", a.cfg.Database.Path)
		report, err = runCollect(cmd.Context(), a, client, names, opts, ui.Output())
	}
	if err != nil {
		fail("Failed to read database statistics", err)
	}

	switch {
	case report.Cancelled:
		ui.PrintWarning("Collection interrupted", "rerun the same command to resume")
		a.close()
		osExit(130)
	case report.Failed > 0:
		ui.PrintWarning(fmt.Sprintf("%d users failed", report.Failed), "rerun to retry them")
	default:
		ui.PrintSuccess("Collection complete")
	}
}

// collectTargets resolves the usernames to collect: arguments first, then
// the --file list, then the configured users file
func collectTargets(args []string, file, defaultFile string) ([]string, error) {
	var names []string
	for _, arg := range args {
		if n := strings.TrimSpace(arg); n != "" {
			names = append(names, n)
		}
	}
	if len(names) > 0 {
		return names, nil
	}

	if file == "" {
		file = defaultFile
	}
	if file == "" {
		return nil, nil
	}
	return export.LoadUsernames(file)
}

// runCollect collects a batch and prints its report and the database totals
func runCollect(ctx context.Context, a *app, fetcher crawler.Fetcher, names []string, opts crawler.Options, w io.Writer) (*crawler.BatchReport, error) {
	c := crawler.New(fetcher, a.store, crawler.ConfigFrom(a.cfg), a.log)
	report := c.CollectBatch(ctx, names, opts)
	return report, renderCollect(ctx, a, report, w)
}

// runCollectTUI runs the batch in a goroutine behind the live progress panel.
// Quitting the panel cancels the batch; the report is printed once it returns.
func runCollectTUI(ctx context.Context, a *app, fetcher crawler.Fetcher, names []string, opts crawler.Options, w io.Writer, progOpts ...tea.ProgramOption) (*crawler.BatchReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := tui.New(len(names), cancel, progOpts...)
	opts.OnProgress = view.Observe

	c := crawler.New(fetcher, a.store, crawler.ConfigFrom(a.cfg), a.log)
	done := make(chan *crawler.BatchReport, 1)
	go func() {
		report := c.CollectBatch(ctx, names, opts)
		view.Finish(report)
		done <- report
	}()

	if err := view.Run(); err != nil {
		a.log.WithError(err).Warn("progress panel stopped, waiting for the batch")
	}
	report := <-done
	return report, renderCollect(ctx, a, report, w)
}

func renderCollect(ctx context.Context, a *app, report *crawler.BatchReport, w io.Writer) error {
	ui.RenderBatchReport(w, report)

	stats, err := a.store.Stats(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	ui.RenderStats(w, stats)
	return nil
}
