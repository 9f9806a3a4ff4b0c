package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/runs"
)

// newCrawlCmd creates the 'crawl' subcommand. Metadata flags override the
// crawl section of the config file.
func newCrawlCmd(v *viper.Viper) *cobra.Command {
	var (
		root   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a portal for question papers and store the questions",
		Long: `Walks same-host pages breadth first from --root up to --max-depth and
--max-pages, fetching every linked document. Each document's text is
extracted, segmented into questions and inserted with the metadata given
by the flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger()

			engine, err := appInstance.CrawlEngine(cmd.Context())
			if err != nil {
				return err
			}
			params := appInstance.CrawlParams(root)

			recorder := appInstance.Recorder()
			run := recorder.Begin(runs.KindCrawl, params)
			result, crawlErr := engine.Crawl(cmd.Context(), params)
			report := recorder.Finish(cmd.Context(), run, result, crawlErr)

			summary := fmt.Sprintf("visited %d pages, %d documents processed, %d records inserted",
				result.PagesVisited, result.DocumentsProcessed, result.RecordsInserted)
			if err := writeReport(cmd.OutOrStdout(), asJSON, report, summary, crawlTable(result)); err != nil {
				return err
			}
			if crawlErr != nil {
				return fmt.Errorf("crawl: %w", crawlErr)
			}
			logger.Info("crawl finished", zap.String("root", root), zap.Int("records", result.RecordsInserted))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&root, "root", "", "root URL to start crawling from")
	flags.String("exam", "", "exam name stamped on every record (default from config)")
	flags.String("level", "", "exam level, e.g. Prelims or Mains")
	flags.String("paper", "", "paper name, e.g. GS-I")
	flags.String("theme", "", "theme or subject hint")
	flags.Int("year-fallback", 0, "year used when none can be inferred")
	flags.Int("max-depth", 0, "maximum link depth from the root")
	flags.Int("max-pages", 0, "maximum number of pages to visit")
	flags.BoolVar(&asJSON, "json", false, "print the run report as JSON")
	_ = cmd.MarkFlagRequired("root")

	bindFlags(v, flags, map[string]string{
		"crawl.exam":          "exam",
		"crawl.level":         "level",
		"crawl.paper":         "paper",
		"crawl.theme":         "theme",
		"crawl.year_fallback": "year-fallback",
		"crawl.max_depth":     "max-depth",
		"crawl.max_pages":     "max-pages",
	})
	return cmd
}
