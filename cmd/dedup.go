package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/pyq-crawler/internal/dedup"
	"github.com/JakeFAU/pyq-crawler/internal/runs"
)

func newDedupCmd(v *viper.Viper) *cobra.Command {
	var (
		dryRun bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Remove near-duplicate questions from the corpus",
		Long: `Groups records by exam, year, language and question prefix, keeps one
representative per group (verified first, then official source) and deletes
the rest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			job, err := appInstance.DedupJob()
			if err != nil {
				return err
			}
			opts := dedup.Options{DryRun: dryRun, PrefixLen: appInstance.Config().Cleanup.DedupPrefix}

			recorder := appInstance.Recorder()
			run := recorder.Begin(runs.KindDedup, opts)
			stats, runErr := job.Run(cmd.Context(), opts)
			report := recorder.Finish(cmd.Context(), run, stats, runErr)
			if err := writeReport(cmd.OutOrStdout(), asJSON, report, stats.Summary(), dedupTable(stats)); err != nil {
				return err
			}
			return runErr
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", true, "report duplicates without deleting")
	flags.Int("prefix", dedup.DefaultPrefixLen, "question prefix length used for grouping")
	flags.BoolVar(&asJSON, "json", false, "print the run report as JSON")
	bindFlags(v, flags, map[string]string{"cleanup.dedup_prefix": "prefix"})
	return cmd
}
