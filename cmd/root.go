// Package cmd defines the pyqcrawler CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/pyq-crawler/internal/app"
	"github.com/JakeFAU/pyq-crawler/internal/config"
	"github.com/JakeFAU/pyq-crawler/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newRootCmd wires the persistent flags and subcommands onto one viper
// instance so flag, env and file values share a precedence order.
func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "pyqcrawler",
		Short:         "Collects previous-year exam questions from the web.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `pyqcrawler crawls exam portals for question papers, extracts their text
(native PDF first, OCR services as fallback), segments it into questions and
stores enriched records in MongoDB. The dedup and cleanup commands maintain
the stored corpus; serve exposes them over an admin API.`,

		// Config is loaded after flags are parsed so bound flags win.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromViper(v, cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, "pyqcrawler")
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, ok := cmd.Context().Value(appKey).(*app.App)
			if !ok || appInstance == nil {
				return nil
			}
			err := appInstance.Close(context.WithoutCancel(cmd.Context()))
			_ = appInstance.Logger().Sync()
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().Bool("dev-logging", true, "human-readable development logging")
	bindFlags(v, cmd.PersistentFlags(), map[string]string{"logging.development": "dev-logging"})

	cmd.AddCommand(
		newCrawlCmd(v),
		newDedupCmd(v),
		newCleanupCmd(v),
		newServeCmd(v),
	)
	return cmd
}

// bindFlags binds each config key to its flag. Unknown flag names panic
// since they are programming errors.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command and reports any failure on stderr.
func Execute() error {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		root.PrintErrln("Error:", err)
		return err
	}
	return nil
}
