package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voicedesk/voicedesk/internal/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "voicedesk",
		Short: "voicedesk - prompt operations for AI phone receptionists",
		Long: `voicedesk compiles, versions and improves the prompts of AI voice agents.

It stores every prompt revision, ingests call transcripts from the voice
vendor, scores batches of calls with an LLM and proposes rewrites that are
A/B tested before they replace the live prompt.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := os.Setenv("VOICEDESK_CONFIG", configPath); err != nil {
					return err
				}
			}

			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			})))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/voicedesk/config.yaml)")

	rootCmd.AddCommand(
		serveCmd(),
		analyzeCmd(),
		versionsCmd(),
		restoreCmd(),
		callsCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("voicedesk %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}
