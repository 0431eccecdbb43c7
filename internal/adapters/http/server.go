package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicedesk/voicedesk/internal/adapters/http/handlers"
	"github.com/voicedesk/voicedesk/internal/adapters/http/middleware"
	"github.com/voicedesk/voicedesk/internal/config"
	"github.com/voicedesk/voicedesk/internal/ports"
)

// Dependencies are the services the API routes call into
type Dependencies struct {
	Agents             ports.AgentService
	Prompts            ports.PromptService
	KnowledgeBase      ports.KnowledgeBaseService
	Calls              ports.CallService
	Analyses           ports.AnalysisService
	Optimizations      ports.OptimizationService
	ABTests            ports.ABTestService
	RunBatchAnalysis   ports.RunBatchAnalysisUseCase
	GenerateRewrite    ports.GenerateRewriteUseCase
	ReviewOptimization ports.ReviewOptimizationUseCase

	DB     handlers.Pinger
	Vendor handlers.BreakerReporter
}

type Server struct {
	config     *config.Config
	version    string
	deps       Dependencies
	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(cfg *config.Config, version string, deps Dependencies) *Server {
	s := &Server{
		config:  cfg,
		version: version,
		deps:    deps,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(s.config.Server.CORSOrigins))
	r.Use(middleware.Metrics)

	healthHandler := handlers.NewHealthHandler(s.version)
	detailedHealthHandler := handlers.NewHealthHandlerWithDeps(s.version, s.deps.DB, s.deps.Vendor, s.config.IsLLMConfigured())
	r.Get("/health", healthHandler.Handle)
	r.Get("/health/detailed", detailedHealthHandler.HandleDetailed)
	r.Handle("/metrics", promhttp.Handler())

	callsHandler := handlers.NewCallsHandler(s.deps.Agents, s.deps.Calls, s.config.Vendor.WebhookSecret)
	r.Post("/api/webhooks/retell", callsHandler.Webhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth)

		agentsHandler := handlers.NewAgentsHandler(s.deps.Agents)
		r.Post("/agents", agentsHandler.Create)
		r.Get("/agents", agentsHandler.List)
		r.Get("/agents/{id}", agentsHandler.Get)

		promptsHandler := handlers.NewPromptsHandler(s.deps.Agents, s.deps.Prompts, s.deps.KnowledgeBase)
		r.Get("/agents/{id}/prompt", promptsHandler.GetCurrent)
		r.Post("/agents/{id}/prompt", promptsHandler.Save)
		r.Get("/agents/{id}/prompt/versions", promptsHandler.ListVersions)
		r.Get("/agents/{id}/prompt/versions/{versionId}", promptsHandler.GetVersion)
		r.Post("/agents/{id}/prompt/restore", promptsHandler.Restore)
		r.Post("/agents/{id}/kb/add", promptsHandler.AddKnowledgeItem)
		r.Post("/agents/{id}/kb/add-url", promptsHandler.AddKnowledgeURL)

		r.Get("/agents/{id}/calls", callsHandler.List)
		r.Post("/agents/{id}/calls/sync", callsHandler.Sync)

		analysisHandler := handlers.NewAnalysisHandler(s.deps.Agents, s.deps.Analyses, s.deps.RunBatchAnalysis, s.deps.GenerateRewrite)
		r.Post("/agents/{id}/ai-manager/analyze", analysisHandler.Analyze)
		r.Get("/agents/{id}/ai-manager/analyses", analysisHandler.List)
		r.Post("/agents/{id}/ai-manager/generate-fix", analysisHandler.GenerateFix)
		r.Get("/ai-manager/analyses/{id}", analysisHandler.Get)

		optimizationsHandler := handlers.NewOptimizationsHandler(s.deps.Agents, s.deps.Optimizations, s.deps.ABTests, s.deps.ReviewOptimization)
		r.Get("/agents/{id}/optimizations", optimizationsHandler.List)
		r.Get("/optimize/{id}", optimizationsHandler.Get)
		r.Post("/optimize/{id}/accept", optimizationsHandler.Accept)
		r.Post("/optimize/{id}/reject", optimizationsHandler.Reject)
		r.Get("/ab-tests/{id}", optimizationsHandler.GetABTest)
		r.Post("/ab-tests/{id}/complete", optimizationsHandler.CompleteABTest)
	})

	s.router = r
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
		// analysis and rewrite requests wait on the LLM
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.config.LLM.Timeout.Std() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}
