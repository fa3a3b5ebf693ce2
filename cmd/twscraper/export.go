package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/derwolz/TwitterScraper/pkg/export"
	"github.com/derwolz/TwitterScraper/pkg/storage"
	"github.com/derwolz/TwitterScraper/pkg/store"
	"github.com/derwolz/TwitterScraper/pkg/ui"
)

var (
	exportUsersFile string
	exportOutput    string
	aiUsersOutput   string
	nextGenOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write following/followers lists and stats.csv",
	Long: `For every seed user write <output>/following/<user>.txt and
<output>/followers/<user>.txt, one username per line, and a stats.csv with
reported and collected counts.

Seed users come from --users-file, then the configured users file. When
neither exists, every fully collected user is exported.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		flags := globalFlags()
		if exportOutput != "" {
			flags["output"] = exportOutput
		}
		a, err := newApp(flags)
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		file := exportUsersFile
		if file == "" {
			file = a.cfg.Crawl.UsersFile
		}
		if err := runExport(cmd.Context(), a, file, ui.Output()); err != nil {
			fail("Export failed", err)
		}
	},
}

var exportAIUsersCmd = &cobra.Command{
	Use:   "ai-users",
	Short: "Write a report of AI-related users",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		path := aiUsersOutput
		if path == "" {
			path = a.cfg.Export.AIUsersFile
		}
		n, err := export.New(a.store, nil, a.log).WriteAIUsers(cmd.Context(), path)
		if err != nil {
			fail("Export failed", err)
		}
		ui.PrintSuccess(fmt.Sprintf("Exported %d AI users to %s", n, path))
	},
}

var nextGenCmd = &cobra.Command{
	Use:   "next-gen",
	Short: "Write users whose followings were never collected",
	Long: `Write every stored user whose followings were never fetched to the next
generation file, one per line. Feed it back with 'twscraper collect --file'.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		path := nextGenOutput
		if path == "" {
			path = a.cfg.Export.NextGenFile
		}
		if err := runNextGen(cmd.Context(), a, path, ui.Output()); err != nil {
			fail("Failed to write next generation list", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(nextGenCmd)
	exportCmd.AddCommand(exportAIUsersCmd)

	exportCmd.Flags().StringVar(&exportUsersFile, "users-file", "", "seed users file (default from config)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output directory (default from config)")
	exportAIUsersCmd.Flags().StringVarP(&aiUsersOutput, "output", "o", "", "report path (default from config)")
	nextGenCmd.Flags().StringVarP(&nextGenOutput, "output", "o", "", "output file (default from config)")
}

// exportSeeds reads the seed users, falling back to the processed users when
// the file does not exist
func exportSeeds(ctx context.Context, st *store.Store, file string) ([]string, error) {
	if file != "" {
		names, err := export.LoadUsernames(file)
		if err == nil {
			return names, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return st.ProcessedUsers(ctx)
}

func runExport(ctx context.Context, a *app, usersFile string, w io.Writer) error {
	names, err := exportSeeds(ctx, a.store, usersFile)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New("no users to export")
	}

	files, err := storage.NewManager(a.cfg.Export.OutputDir)
	if err != nil {
		return err
	}
	totals, err := export.New(a.store, files, a.log).ExportAll(ctx, names)
	if err != nil {
		return err
	}

	t := ui.NewTable(w)
	t.SetTitle("Export " + files.OutputDir())
	t.AppendRows([]table.Row{
		{"Users", totals.Users},
		{"Following entries", totals.Following},
		{"Follower entries", totals.Followers},
		{"Files written", files.WrittenCount()},
	})
	t.Render()
	for _, name := range totals.Failed {
		ui.PrintWarning("Not exported", name)
	}
	return nil
}

func runNextGen(ctx context.Context, a *app, path string, w io.Writer) error {
	users, err := export.New(a.store, nil, a.log).WriteNextGen(ctx, path)
	if err != nil {
		return err
	}
	processed, err := a.store.ProcessedUsers(ctx)
	if err != nil {
		return err
	}
	failed, err := a.store.FailedUsers(ctx)
	if err != nil {
		return err
	}

	t := ui.NewTable(w)
	t.SetTitle("Next generation")
	t.AppendRows([]table.Row{
		{"Processed", len(processed)},
		{"Failed", len(failed)},
		{"Unprocessed", len(users)},
		{"Written to", path},
	})
	t.Render()
	return nil
}
