package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "coding-eval",
	Short: "Evaluate medical-coding prompts against audited cases",
	Long:  "Ingests audited gold-standard codes and clinical notes, runs coding prompts against complete cases, scores the results and helps iterate on the prompt.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
