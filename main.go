package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"launchpad-ai-pipeline/internal/config"
	"launchpad-ai-pipeline/internal/handlers"
	"launchpad-ai-pipeline/internal/pkg/logger"
	"launchpad-ai-pipeline/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting research-to-startup pipeline",
		"environment", cfg.Environment,
		"port", cfg.HTTP.Port,
		"gemini_mode", string(cfg.GeminiMode()),
		"tavily_mode", string(cfg.TavilyMode()),
		"fetch_sources", cfg.Pipeline.FetchSources)

	callLog := services.NewCallLog(cfg.Pipeline.CallLogLimit)
	mockGenerator := services.NewMockGenerator(log)
	geminiService := services.NewGeminiService(cfg.Gemini, mockGenerator, callLog, log)
	tavilyService := services.NewTavilyService(cfg.Tavily, log)
	parserService := services.NewParserService(cfg.Pipeline, log)
	sourceService := services.NewSourceService(log)
	matcherService := services.NewMatcherService(cfg.Pipeline, log)
	deckService := services.NewDeckService(cfg.Output, log)

	var stateStore services.StateStore
	if cfg.Redis.URL != "" {
		redisService, err := services.NewRedisService(cfg.Redis, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, using in-memory state store")
			stateStore = services.NewMemoryStateStore(cfg.Redis.StateTTL, log)
		} else {
			stateStore = redisService
		}
	} else {
		stateStore = services.NewMemoryStateStore(cfg.Redis.StateTTL, log)
	}

	orchestrator := services.NewOrchestrator(
		stateStore,
		geminiService,
		tavilyService,
		sourceService,
		matcherService,
		parserService,
		deckService,
		*cfg,
		log)

	pipelineHandler := handlers.NewPipelineHandler(orchestrator, parserService, sourceService, callLog, log)
	healthHandler := handlers.NewHealthHandler(orchestrator, geminiService.Mode(), geminiService.DemoReason(), log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	api := router.Group("/api/v1")
	{
		runs := api.Group("/runs")
		{
			runs.POST("", pipelineHandler.CreateRun)
			runs.POST("/upload", pipelineHandler.CreateRunFromUpload)
			runs.GET("/active", pipelineHandler.GetActiveRuns)
			runs.GET("/:id", pipelineHandler.GetRun)
			runs.GET("/:id/updates", pipelineHandler.GetRunUpdates)
			runs.DELETE("/:id", pipelineHandler.CancelRun)
		}
		api.GET("/logs", pipelineHandler.GetCallLog)
		api.GET("/stats", pipelineHandler.GetStats)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	if err := orchestrator.Close(); err != nil {
		log.WithError(err).Error("Orchestrator shutdown failed")
	}
	if err := geminiService.Close(); err != nil {
		log.WithError(err).Error("Gemini service shutdown failed")
	}
	if err := tavilyService.Close(); err != nil {
		log.WithError(err).Error("Tavily service shutdown failed")
	}
	if err := stateStore.Close(); err != nil {
		log.WithError(err).Error("State store shutdown failed")
	}

	log.Info("Shutdown complete")
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP())
	}
}
