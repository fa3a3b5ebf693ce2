package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/derwolz/TwitterScraper/pkg/aidetect"
	"github.com/derwolz/TwitterScraper/pkg/store"
	"github.com/derwolz/TwitterScraper/pkg/ui"
)

var (
	analyzeAll      bool
	analyzeTest     bool
	analyzeUser     string
	analyzeKeywords []string
	showLimit       int
)

// sampleBios exercise the detector without a database
var sampleBios = []string{
	"AI Researcher at OpenAI working on GPT models and safety alignment",
	"Machine Learning Engineer at Google, specializing in computer vision",
	"Data scientist building recommendation systems with deep learning",
	"Founder of AI startup focused on natural language processing solutions",
	"Software engineer passionate about tensorflow and pytorch development",
	"PhD student researching reinforcement learning and robotics at MIT",
	"Product manager at tech company, love hiking and photography",
	"Marketing specialist based in Miami, coffee enthusiast",
	"Freelance consultant helping businesses with predictive analytics",
	"Building the future with artificial intelligence and automation",
	"Regular person who enjoys travel, food, and good conversations",
	"CEO at SaaS company, building tools for developers worldwide",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify stored bios as AI-related",
	Long: `Run the keyword classifier over stored bios and save the results.

By default only users without a stored analysis are classified. Use --all to
classify every stored user again, --user for a single user, or --test to run
the classifier over built-in sample bios without touching the database.`,
	Example: `  twscraper analyze
  twscraper analyze --all --keyword "vector database"
  twscraper analyze --user alice
  twscraper analyze --test`,
	Args: cobra.NoArgs,
	Run:  runAnalyze,
}

var analyzeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored classification results",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		defer a.close()

		if err := showAnalysis(cmd.Context(), a.store, showLimit, ui.Output()); err != nil {
			fail("Failed to read analysis", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeShowCmd)

	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "reclassify every stored user")
	analyzeCmd.Flags().Bool("unanalyzed", true, "classify users without a stored analysis (default)")
	analyzeCmd.Flags().BoolVar(&analyzeTest, "test", false, "classify built-in sample bios only")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "classify a single user")
	analyzeCmd.Flags().StringSliceVar(&analyzeKeywords, "keyword", nil, "extra keyword (repeatable)")
	analyzeCmd.MarkFlagsMutuallyExclusive("all", "test", "user")

	analyzeShowCmd.Flags().IntVar(&showLimit, "limit", 25, "AI-related users to list (0 for all)")
}

func newDetector() *aidetect.Detector {
	d := aidetect.NewDetector()
	if n := d.AddKeywords(analyzeKeywords...); n > 0 {
		ui.PrintInfo("Extra keywords", fmt.Sprintf("%d", n))
	}
	return d
}

func runAnalyze(cmd *cobra.Command, args []string) {
	if analyzeTest {
		classifySamples(newDetector(), sampleBios, ui.Output())
		return
	}

	a, err := newApp(globalFlags())
	if err != nil {
		fail("Failed to load configuration", err)
	}
	defer a.close()

	analyzer := aidetect.NewAnalyzer(newDetector(), a.store, a.log)
	ctx := cmd.Context()

	if analyzeUser != "" {
		res, err := analyzer.AnalyzeUser(ctx, analyzeUser)
		if err != nil {
			fail("Failed to analyze "+analyzeUser, err)
		}
		printUserResult(ui.Output(), res)
		return
	}

	var summary *aidetect.Summary
	if analyzeAll {
		summary, err = analyzer.AnalyzeAll(ctx)
	} else {
		summary, err = analyzer.AnalyzeUnanalyzed(ctx)
	}
	if summary != nil {
		ui.RenderAnalysisSummary(ui.Output(), summary)
	}
	if err != nil {
		fail("Analysis stopped", err)
	}
	if summary.Total == 0 {
		ui.PrintInfo("Nothing to analyze", "every stored bio already has a result (use --all to redo)")
		return
	}
	ui.PrintSuccess(fmt.Sprintf("Analyzed %d users", summary.Total))
}

func printUserResult(w io.Writer, res *aidetect.UserResult) {
	verdict := ui.Dim("not AI-related")
	if res.IsAIRelated {
		verdict = ui.Green("AI-related")
	}
	fmt.Fprintf(w, "@%s: %s\n", res.Username, verdict)
	if len(res.Keywords) > 0 {
		fmt.Fprintf(w, "  keywords: %s\n", strings.Join(res.Keywords, ", "))
	}
	fmt.Fprintf(w, "  bio: %s\n", res.Bio)
}

// classifySamples prints the verdict and matches for each bio
func classifySamples(d *aidetect.Detector, bios []string, w io.Writer) int {
	t := ui.NewTable(w)
	t.SetTitle("Keyword detection")
	t.AppendHeader(table.Row{"#", "AI", "Keywords", "Bio"})

	var matched int
	for i, bio := range bios {
		c := d.Classify(bio)
		mark := ui.Dim("no")
		if c.IsAIRelated {
			matched++
			mark = ui.Green("yes")
		}
		kws := c.Keywords
		if len(kws) > 5 {
			kws = kws[:5]
		}
		t.AppendRow(table.Row{i + 1, mark, strings.Join(kws, ", "), bio})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d", matched, len(bios)), "", ""})
	t.Render()
	return matched
}

func showAnalysis(ctx context.Context, st *store.Store, limit int, w io.Writer) error {
	stats, err := st.AIStats(ctx, 10)
	if err != nil {
		return err
	}
	if stats.AnalyzedUsers == 0 {
		fmt.Fprintln(w, "No analysis data found; run 'twscraper analyze'.")
		return nil
	}
	ui.RenderAIStats(w, stats)

	users, err := st.AIUsers(ctx)
	if err != nil {
		return err
	}
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	if len(users) > 0 {
		ui.RenderAIUsers(w, users)
	}
	return nil
}
