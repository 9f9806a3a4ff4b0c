package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/pyq-crawler/internal/runs"
)

func newCleanupCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Normalize stored records and flag or delete invalid ones",
		Long: `Pages through the corpus, canonicalizing exam, level, paper, year, language
and tags. Invalid records are flagged for review in safe mode and deleted in
aggressive mode. Dry runs (the default) write nothing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			job, err := appInstance.CleanupJob()
			if err != nil {
				return err
			}
			opts := appInstance.CleanupOptions()

			recorder := appInstance.Recorder()
			run := recorder.Begin(runs.KindCleanup, opts)
			stats, runErr := job.Run(cmd.Context(), opts)
			report := recorder.Finish(cmd.Context(), run, stats, runErr)
			if err := writeReport(cmd.OutOrStdout(), asJSON, report, stats.Summary(), cleanupTable(stats)); err != nil {
				return err
			}
			return runErr
		},
	}

	flags := cmd.Flags()
	flags.Bool("dry-run", true, "compute changes without writing them")
	flags.Bool("aggressive", false, "delete invalid records instead of flagging them")
	flags.Int("batch-size", 100, "records per page")
	flags.BoolVar(&asJSON, "json", false, "print the run report as JSON")
	bindFlags(v, flags, map[string]string{
		"cleanup.dry_run":    "dry-run",
		"cleanup.aggressive": "aggressive",
		"cleanup.batch_size": "batch-size",
	})
	return cmd
}
