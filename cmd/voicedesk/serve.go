package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voicedesk/voicedesk/internal/adapters/http"
	"github.com/voicedesk/voicedesk/internal/adapters/tracing"
	"github.com/voicedesk/voicedesk/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

// serveCmd starts the HTTP API server and the scheduled jobs
func serveCmd() *cobra.Command {
	var traceStdout bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the voicedesk HTTP API server.

The server exposes the agent, prompt, analysis and A/B test endpoints,
receives call webhooks from the voice vendor and runs the scheduled jobs
(nightly analysis, vendor sync drain and A/B test sweep).

Required configuration:
  - PostgreSQL database (VOICEDESK_POSTGRES_URL)

Optional:
  - LLM provider key (VOICEDESK_LLM_API_KEY)
  - Retell API key and webhook URL (VOICEDESK_RETELL_API_KEY, VOICEDESK_WEBHOOK_URL)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), traceStdout)
		},
	}
	cmd.Flags().BoolVar(&traceStdout, "trace", false, "write OpenTelemetry spans to stdout")
	return cmd
}

func runServer(ctx context.Context, traceStdout bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var traceOut io.Writer = io.Discard
	if traceStdout {
		traceOut = os.Stdout
	}
	shutdownTracer, err := tracing.InitTracer("voicedesk", version, traceOut)
	if err != nil {
		slog.Warn("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				slog.Error("error shutting down tracer", "error", err)
			}
		}()
	}

	slog.Info("starting voicedesk",
		"version", version,
		"http", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"vendor", cfg.Vendor.BaseURL,
	)

	pool, err := initDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("database connection established")

	a, err := buildApp(pool)
	if err != nil {
		return err
	}

	schedConfig := scheduler.Config{
		SyncSchedule:  cfg.VendorSync.Schedule,
		SweepSchedule: cfg.ABTest.SweepSchedule,
	}
	if cfg.Analysis.Enabled {
		schedConfig.AnalysisSchedule = cfg.Analysis.Schedule
		schedConfig.AnalysisCallCount = cfg.Analysis.CallCount
		schedConfig.AnalysisDaysSince = cfg.Analysis.DaysSince
	}
	sched, err := scheduler.New(schedConfig, a.repos.agents, a.runBatchAnalysis, a.syncs, a.abTests)
	if err != nil {
		return err
	}
	sched.Start()

	server := http.NewServer(cfg, version, http.Dependencies{
		Agents:             a.agents,
		Prompts:            a.prompts,
		KnowledgeBase:      a.knowledgeBase,
		Calls:              a.calls,
		Analyses:           a.analyses,
		Optimizations:      a.optimizations,
		ABTests:            a.abTests,
		RunBatchAnalysis:   a.runBatchAnalysis,
		GenerateRewrite:    a.generateRewrite,
		ReviewOptimization: a.reviewOptimization,
		DB:                 pool,
		Vendor:             a.vendor,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err = <-serverErr:
		if errors.Is(err, nethttp.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if stopErr := server.Stop(shutdownCtx); stopErr != nil {
		slog.Error("error shutting down HTTP server", "error", stopErr)
	}
	sched.Stop(shutdownCtx)
	slog.Info("voicedesk stopped")

	return err
}
