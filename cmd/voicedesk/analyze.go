package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/scheduler"
)

// analyzeCmd runs a batch analysis for one agent, or for every agent with
// auto analysis enabled
func analyzeCmd() *cobra.Command {
	var agentID string
	var all bool
	var callCount, daysSince int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Score an agent's recent calls and rank the issues found",
		RunE: func(cmd *cobra.Command, args []string) error {
			if callCount == 0 {
				callCount = cfg.Analysis.CallCount
			}
			if daysSince == 0 {
				daysSince = cfg.Analysis.DaysSince
			}

			if (agentID == "") == !all {
				return fmt.Errorf("specify exactly one of --agent or --all")
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if all {
					sched, err := scheduler.New(scheduler.Config{
						AnalysisCallCount: callCount,
						AnalysisDaysSince: daysSince,
					}, a.repos.agents, a.runBatchAnalysis, a.syncs, a.abTests)
					if err != nil {
						return err
					}
					n, err := sched.AnalyzeAutoAgents(ctx)
					fmt.Printf("Analyzed %d agent(s)\n", n)
					return err
				}

				analysis, err := a.runBatchAnalysis.Execute(ctx, &ports.RunBatchAnalysisInput{
					AgentID:   agentID,
					CallCount: callCount,
					DaysSince: daysSince,
				})
				if errors.Is(err, domain.ErrNoCompletedCalls) {
					fmt.Println(err)
					return nil
				}
				if err != nil {
					return err
				}
				printAnalysis(analysis)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent ID")
	cmd.Flags().BoolVar(&all, "all", false, "analyze every agent with auto analysis enabled")
	cmd.Flags().IntVar(&callCount, "calls", 0, "number of calls to analyze (default from config)")
	cmd.Flags().IntVar(&daysSince, "days", 0, "only analyze calls from the last N days (default from config)")
	return cmd
}

func printAnalysis(a *models.BatchAnalysis) {
	fmt.Printf("Analysis %s (%d calls, last %d days, model %s)\n\n", a.ID, a.CallCount, a.DaysSince, a.Model)
	if a.Summary != "" {
		fmt.Println(a.Summary)
		fmt.Println()
	}

	s := a.AverageScores
	fmt.Println("Average scores:")
	fmt.Printf("  quality %.1f  empathy %.1f  professionalism %.1f  efficiency %.1f  goal achievement %.1f\n\n",
		s.Quality, s.Empathy, s.Professionalism, s.Efficiency, s.GoalAchievement)

	if len(a.Issues) == 0 {
		fmt.Println("No issues found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSEVERITY\tFREQ\tSECTION\tISSUE")
	for i, issue := range a.Issues {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", i+1, issue.Severity, issue.Frequency, issue.TargetSection, issue.Issue)
	}
	w.Flush()

	for _, p := range a.Patterns {
		fmt.Printf("\nPattern (%d calls): %s\n", p.Frequency, p.Pattern)
		if p.Recommendation != "" {
			fmt.Printf("  Recommendation: %s\n", p.Recommendation)
		}
	}
}
