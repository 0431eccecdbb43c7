package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// versionsCmd lists an agent's prompt history, newest first
func versionsCmd() *cobra.Command {
	var agentID string
	var limit int

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List an agent's prompt versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				agent, err := a.repos.agents.GetByID(ctx, agentID)
				if err != nil {
					return err
				}
				versions, err := a.prompts.List(ctx, agentID, limit)
				if err != nil {
					return err
				}

				fmt.Printf("%s (%s)\n\n", agent.BusinessName, agent.ID)
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "\tVERSION\tID\tMETHOD\tTOKENS\tCREATED\tSUMMARY")
				for _, v := range versions {
					marker := ""
					if v.ID == agent.CurrentPromptID {
						marker = "*"
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\t%s\n",
						marker, v.VersionNumber, v.ID, v.GenerationMethod, v.TokenCount,
						v.CreatedAt.Format("2006-01-02 15:04"), v.ChangeSummary)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent ID")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of versions to list")
	cmd.MarkFlagRequired("agent")
	return cmd
}

// restoreCmd makes an older version current again
func restoreCmd() *cobra.Command {
	var agentID, versionID string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore an earlier prompt version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				v, err := a.prompts.Restore(ctx, agentID, versionID)
				if err != nil {
					return err
				}
				fmt.Printf("Agent %s now serves version %d (%s)\n", agentID, v.VersionNumber, v.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent ID")
	cmd.Flags().StringVar(&versionID, "version", "", "prompt version ID to restore")
	cmd.MarkFlagRequired("agent")
	cmd.MarkFlagRequired("version")
	return cmd
}
