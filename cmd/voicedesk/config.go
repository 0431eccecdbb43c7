package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd prints the effective configuration with secrets masked
func configCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			redacted := cfg.Redacted()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(redacted)
			}

			out, err := yaml.Marshal(redacted)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			fmt.Println()
			fmt.Printf("# LLM:    %s\n", boolStatus(cfg.IsLLMConfigured()))
			fmt.Printf("# Vendor: %s\n", boolStatus(cfg.IsVendorConfigured()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}
