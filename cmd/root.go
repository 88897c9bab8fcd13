package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootFlags struct {
	envFile  string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:           "autonomax",
	Short:         "AutonomaX backend",
	Long:          "AutonomaX backend: accounts, admin-triggered ops tasks behind cooldown locks, and the workers that run them.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Values from --env-file win over the ambient environment.
		if rootFlags.envFile != "" {
			if err := godotenv.Overload(rootFlags.envFile); err != nil {
				return fmt.Errorf("load %s: %w", rootFlags.envFile, err)
			}
		}
		if rootFlags.logLevel != "" {
			return os.Setenv("LOG_LEVEL", rootFlags.logLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.envFile, "env-file", "", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "override LOG_LEVEL")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "autonomax:", err)
		os.Exit(1)
	}
}
