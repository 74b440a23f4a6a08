// Package main is the entry point for the optivexiq-api server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/OptivexIQ/optivexiq-sub002/internal/config"
	"github.com/OptivexIQ/optivexiq-sub002/internal/database"
	"github.com/OptivexIQ/optivexiq-sub002/internal/http/handlers"
	"github.com/OptivexIQ/optivexiq-sub002/internal/http/mw"
	"github.com/OptivexIQ/optivexiq-sub002/internal/llm"
	"github.com/OptivexIQ/optivexiq-sub002/internal/logging"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
	"github.com/OptivexIQ/optivexiq-sub002/internal/scrape"
	"github.com/OptivexIQ/optivexiq-sub002/internal/service"
	"github.com/OptivexIQ/optivexiq-sub002/internal/version"
	"github.com/OptivexIQ/optivexiq-sub002/internal/worker"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting optivexiq-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.New(db)

	// Jobs whose worker died mid-lease during a previous run go back to
	// the queue before the claim loop starts.
	requeued, err := repos.Jobs.RequeueExpiredLeases(context.Background(), time.Now().UTC())
	if err != nil {
		logger.Warn("failed to requeue expired leases", "error", err)
	} else if requeued > 0 {
		logger.Info("requeued jobs with expired leases", "count", requeued)
	}

	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	llmClient := llm.NewClient(llm.Config{
		BaseURL:           cfg.LLMBaseURL,
		APIKey:            cfg.LLMAPIKey,
		Model:             cfg.LLMModel,
		CostPerMInputUSD:  cfg.LLMCostPerMInputUSD,
		CostPerMOutputUSD: cfg.LLMCostPerMOutputUSD,
	}, logger)

	pipeline := worker.NewPipeline(repos, scrape.NewFetcher(logger), llmClient, services, logger)

	ctx, cancel := context.WithCancel(context.Background())

	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		jobWorker = worker.New(repos, pipeline, worker.Config{
			PollInterval: cfg.WorkerPollRate,
			Concurrency:  cfg.WorkerConcurrency,
		}, logger)
		jobWorker.Start(ctx)
		services.Job.SetDispatcher(jobWorker)
	} else {
		logger.Warn("worker disabled; jobs will only run via another instance")
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.Timeout(cfg.RequestTimeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Submission bodies are small; anything past 1MB is abuse.
	router.Use(middleware.RequestSize(1 * 1024 * 1024))
	router.Use(httprate.LimitByIP(100, time.Minute))
	router.Use(middleware.Throttle(100))

	humaConfig := huma.DefaultConfig("OptivexIQ API", "1.0.0")
	humaConfig.Info.Description = "Conversion-gap report API: submit a homepage, poll for a scored report with competitor analysis, revenue modeling, and rewrites."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "JWT bearer authentication.",
		},
	}
	api := humachi.New(router, humaConfig)

	// Config for hidden routes (probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("OptivexIQ API", "1.0.0")
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	protectedConfig := huma.DefaultConfig("OptivexIQ API", "1.0.0")
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	// Health check (public, shown in docs)
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)

	// Kubernetes probes (hidden from docs)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	huma.Get(hiddenAPI, "/readyz", handlers.NewReadyzHandler(db).Readyz)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(cfg.JWTSecret))

		protectedAPI := humachi.New(r, protectedConfig)

		reportHandler := handlers.NewReportHandler(services.Job)
		huma.Register(protectedAPI, huma.Operation{
			OperationID:   "create-report",
			Method:        http.MethodPost,
			Path:          "/api/v1/reports",
			DefaultStatus: http.StatusAccepted,
		}, reportHandler.CreateReport)
		huma.Get(protectedAPI, "/api/v1/reports", reportHandler.ListReports)
		huma.Get(protectedAPI, "/api/v1/reports/{id}", reportHandler.GetReport)

		huma.Get(protectedAPI, "/api/v1/usage", handlers.NewUsageHandler(services.Usage).GetUsage)
	})

	// Internal dispatch, guarded by the scheduler's shared secret
	router.Group(func(r chi.Router) {
		r.Use(mw.CronAuth(cfg.CronSecret))

		internalAPI := humachi.New(r, protectedConfig)
		var dispatcher service.Dispatcher
		if jobWorker != nil {
			dispatcher = jobWorker
		}
		huma.Post(internalAPI, "/api/v1/internal/dispatch", handlers.NewDispatchHandler(repos.Jobs, dispatcher, logger).Dispatch)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		cancel()
		if jobWorker != nil {
			jobWorker.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL, "worker_enabled", cfg.WorkerEnabled)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
