package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func callsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Manage call records",
	}
	cmd.AddCommand(callsSyncCmd())
	return cmd
}

// callsSyncCmd backfills call records from the vendor's call list
func callsSyncCmd() *cobra.Command {
	var agentID string
	var limit int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import recent calls from the voice vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				n, err := a.calls.SyncFromVendor(ctx, agentID, limit)
				if err != nil {
					return err
				}
				fmt.Printf("Synced %d call(s) for agent %s\n", n, agentID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent ID")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of calls to fetch")
	cmd.MarkFlagRequired("agent")
	return cmd
}
