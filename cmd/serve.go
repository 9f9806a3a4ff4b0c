package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and the admin job API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Serve(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 8080, "HTTP listen port")
	bindFlags(v, cmd.Flags(), map[string]string{"server.port": "port"})
	return cmd
}
