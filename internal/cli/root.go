package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trivia-service",
		Short: "Rapid trivia rounds with fuzzy answer matching",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is normal outside local development.
			_ = godotenv.Load()
			if !cmd.Flags().Changed("config") {
				if env := os.Getenv("CONFIG_PATH"); env != "" {
					configPath = env
				}
			}
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&port, "port", "", "port to listen on (overrides config and PORT)")
	cmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to YAML config")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewClassifyCmd(&configPath))
	return cmd
}
