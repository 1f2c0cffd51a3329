package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tailor",
		Short:         "Context tailoring service for task-scoped retrieval",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadDotenv(envFile)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (defaults to $CONFIG_PATH or config/tailor.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "Environment file")

	root.AddCommand(newServeCmd(), newRunCmd(), newIngestCmd())
	return root
}
