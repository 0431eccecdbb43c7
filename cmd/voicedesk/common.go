package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voicedesk/voicedesk/internal/adapters/id"
	"github.com/voicedesk/voicedesk/internal/adapters/postgres"
	"github.com/voicedesk/voicedesk/internal/adapters/retell"
	"github.com/voicedesk/voicedesk/internal/adapters/webpage"
	"github.com/voicedesk/voicedesk/internal/application/services"
	"github.com/voicedesk/voicedesk/internal/application/usecases"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/llm"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfg *config.Config

// initDB opens the connection pool with query tracing enabled
func initDB(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Database.PostgresURL == "" {
		return nil, fmt.Errorf("PostgreSQL connection required. Set VOICEDESK_POSTGRES_URL")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// TIMESTAMP columns are written and read as UTC
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"
	poolConfig.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}

// app holds the wired repositories, services and use cases
type app struct {
	repos struct {
		agents        *postgres.AgentRepository
		versions      *postgres.PromptVersionRepository
		calls         *postgres.CallRepository
		analyses      *postgres.AnalysisRepository
		optimizations *postgres.OptimizationRepository
		abTests       *postgres.ABTestRepository
		syncs         *postgres.VendorSyncRepository
	}

	vendor        *retell.Client
	llm           *llm.Service
	agents        *services.AgentService
	prompts       *services.PromptVersionService
	knowledgeBase *services.KnowledgeBaseService
	calls         *services.CallService
	syncs         *services.VendorSyncService
	analyses      *services.AnalysisService
	optimizations *services.OptimizationService
	abTests       *services.ABTestService

	runBatchAnalysis   *usecases.RunBatchAnalysis
	generateRewrite    *usecases.GenerateRewrite
	reviewOptimization *usecases.ReviewOptimization
}

func buildApp(pool *pgxpool.Pool) (*app, error) {
	a := &app{}

	a.repos.agents = postgres.NewAgentRepository(pool)
	a.repos.versions = postgres.NewPromptVersionRepository(pool)
	a.repos.calls = postgres.NewCallRepository(pool)
	a.repos.analyses = postgres.NewAnalysisRepository(pool)
	a.repos.optimizations = postgres.NewOptimizationRepository(pool)
	a.repos.abTests = postgres.NewABTestRepository(pool)
	a.repos.syncs = postgres.NewVendorSyncRepository(pool)

	idGen := id.New()
	txManager := postgres.NewTransactionManager(pool)

	llmService, err := llm.New(llm.Options{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Timeout:           cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		return nil, err
	}
	a.llm = llmService
	if !cfg.IsLLMConfigured() {
		slog.Warn("no LLM API key configured, analysis and rewrites will fail")
	}

	a.vendor = retell.NewClient(cfg.Vendor.BaseURL, cfg.Vendor.APIKey, cfg.Vendor.WebhookURL, cfg.Vendor.Timeout.Std())
	if !cfg.IsVendorConfigured() {
		slog.Warn("no voice vendor API key configured, prompt deliveries will stay pending")
	}

	syncConfig := services.DefaultVendorSyncConfig()
	if cfg.VendorSync.MaxAttempts > 0 {
		syncConfig.MaxAttempts = cfg.VendorSync.MaxAttempts
	}
	if cfg.VendorSync.BatchSize > 0 {
		syncConfig.BatchSize = cfg.VendorSync.BatchSize
	}
	a.syncs = services.NewVendorSyncService(a.repos.agents, a.repos.versions, a.repos.syncs, a.vendor, txManager, idGen, syncConfig)
	a.prompts = services.NewPromptVersionService(a.repos.agents, a.repos.versions, a.syncs, txManager, idGen)
	a.agents = services.NewAgentService(a.repos.agents, a.prompts, a.prompts, a.syncs, prompt.NewCompiler(), txManager, idGen)
	a.knowledgeBase = services.NewKnowledgeBaseService(a.prompts,
		webpage.NewFetcher(cfg.KnowledgeBase.FetchTimeout.Std(), cfg.KnowledgeBase.AllowPrivateHosts))
	a.calls = services.NewCallService(a.repos.agents, a.repos.calls, a.repos.abTests, a.vendor, idGen)
	a.analyses = services.NewAnalysisService(a.repos.analyses)
	a.optimizations = services.NewOptimizationService(a.repos.optimizations)
	a.abTests = services.NewABTestService(a.repos.abTests)

	analysisConfig := usecases.DefaultBatchAnalysisConfig()
	analysisConfig.Model = cfg.AnalysisModel()
	analysisConfig.MaxTokens = cfg.LLM.MaxTokens
	analysisConfig.MinExchanges = cfg.Analysis.MinExchanges
	analysisConfig.ExtractPatterns = cfg.Analysis.ExtractPatterns
	a.runBatchAnalysis = usecases.NewRunBatchAnalysis(a.repos.agents, a.repos.calls, a.repos.analyses, a.llm, txManager, idGen, analysisConfig)

	a.generateRewrite = usecases.NewGenerateRewrite(a.prompts, a.repos.analyses, a.repos.optimizations, a.llm, txManager, idGen, usecases.RewriteConfig{
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})

	a.reviewOptimization = usecases.NewReviewOptimization(a.repos.agents, a.repos.optimizations, a.repos.abTests, a.prompts, a.syncs, txManager, idGen, usecases.ABTestConfig{
		ControlPercent: cfg.ABTest.ControlPercent,
		TestPercent:    cfg.ABTest.TestPercent,
		Duration:       cfg.ABTest.Duration.Std(),
	})

	return a, nil
}

// withApp connects to the database, wires the application and runs fn
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	pool, err := initDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	a, err := buildApp(pool)
	if err != nil {
		return err
	}
	return fn(ctx, a)
}
