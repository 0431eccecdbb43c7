// Package scheduler runs the periodic jobs: nightly batch analysis for
// agents that opted in, the vendor sync outbox drain and the A/B test
// expiry sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/ports"
)

// Config holds the cron expressions (standard five-field syntax) of each job.
// An empty schedule disables the job.
type Config struct {
	AnalysisSchedule  string
	AnalysisCallCount int
	AnalysisDaysSince int
	SyncSchedule      string
	SweepSchedule     string
}

type Scheduler struct {
	cron     *cron.Cron
	agents   ports.AgentRepository
	analysis ports.RunBatchAnalysisUseCase
	syncs    ports.VendorSyncService
	abTests  ports.ABTestService
	config   Config
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(
	config Config,
	agents ports.AgentRepository,
	analysis ports.RunBatchAnalysisUseCase,
	syncs ports.VendorSyncService,
	abTests ports.ABTestService,
) (*Scheduler, error) {
	logger := slogLogger{}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(logger), cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		agents:   agents,
		analysis: analysis,
		syncs:    syncs,
		abTests:  abTests,
		config:   config,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context)
	}{
		{"nightly_analysis", config.AnalysisSchedule, s.runNightlyAnalysis},
		{"vendor_sync_drain", config.SyncSchedule, s.runSyncDrain},
		{"ab_test_sweep", config.SweepSchedule, s.runSweep},
	}
	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		run := job.run
		if _, err := s.cron.AddFunc(job.schedule, func() { run(s.ctx) }); err != nil {
			return nil, fmt.Errorf("invalid %s schedule %q: %w", job.name, job.schedule, err)
		}
		slog.Info("scheduled job", "job", job.name, "schedule", job.schedule)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// AnalyzeAutoAgents runs a batch analysis for every agent with auto analysis
// enabled. Agents without qualifying calls are skipped.
func (s *Scheduler) AnalyzeAutoAgents(ctx context.Context) (int, error) {
	agents, err := s.agents.ListAutoAnalyze(ctx)
	if err != nil {
		return 0, err
	}

	analyzed := 0
	var errs []error
	for _, agent := range agents {
		if ctx.Err() != nil {
			return analyzed, ctx.Err()
		}
		analysis, err := s.analysis.Execute(ctx, &ports.RunBatchAnalysisInput{
			AgentID:   agent.ID,
			CallCount: s.config.AnalysisCallCount,
			DaysSince: s.config.AnalysisDaysSince,
		})
		switch {
		case err == nil:
			analyzed++
			slog.Info("nightly analysis complete", "agent_id", agent.ID, "analysis_id", analysis.ID)
		case errors.Is(err, domain.ErrNoCompletedCalls):
			slog.Info("nightly analysis skipped, no qualifying calls", "agent_id", agent.ID)
		case errors.Is(err, domain.ErrCreditsExhausted):
			// every remaining agent would fail the same way
			return analyzed, err
		default:
			slog.Error("nightly analysis failed", "agent_id", agent.ID, "error", err)
			errs = append(errs, fmt.Errorf("agent %s: %w", agent.ID, err))
		}
	}
	return analyzed, errors.Join(errs...)
}

func (s *Scheduler) runNightlyAnalysis(ctx context.Context) {
	n, err := s.AnalyzeAutoAgents(ctx)
	if err != nil {
		slog.Error("nightly analysis run finished with errors", "analyzed", n, "error", err)
		return
	}
	slog.Info("nightly analysis run finished", "analyzed", n)
}

func (s *Scheduler) runSyncDrain(ctx context.Context) {
	n, err := s.syncs.DrainDue(ctx)
	if err != nil {
		slog.Error("vendor sync drain failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("vendor syncs delivered", "count", n)
	}
}

func (s *Scheduler) runSweep(ctx context.Context) {
	if _, err := s.abTests.SweepExpired(ctx); err != nil {
		slog.Error("a/b test sweep failed", "error", err)
	}
}

// slogLogger adapts cron's logger interface to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
