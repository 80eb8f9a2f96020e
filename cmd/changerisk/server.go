package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/changerisk/internal/ai"
	"github.com/xxxsen/changerisk/internal/config"
	"github.com/xxxsen/changerisk/internal/handler"
	"github.com/xxxsen/changerisk/internal/middleware"
	"github.com/xxxsen/changerisk/internal/prompt"
	"github.com/xxxsen/changerisk/internal/service"
)

func runServer(cfg *config.Config) error {
	ctx := context.Background()
	logger := logutil.GetLogger(ctx)
	logger.Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("data_source", cfg.DataSource.Type),
		zap.String("embedder", cfg.AI.Embedder.Provider+":"+cfg.AI.Embedder.Model),
		zap.Int("generators", len(cfg.AI.Generators)),
	)

	records, templates, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	template, err := templates.Get(cfg.PromptKey)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	generator, err := buildGenerator(cfg)
	if err != nil {
		return err
	}
	manager := ai.NewManager(generator, embedder, ai.ManagerConfig{
		Timeout:      cfg.AI.Timeout,
		EmbedTimeout: cfg.AI.EmbedTimeout,
	})
	// The index must be complete before the first request is accepted.
	idx, err := buildIndex(ctx, cfg, manager, records)
	if err != nil {
		return err
	}
	var countTokens prompt.TokenCounter
	if cfg.AI.MaxPromptTokens > 0 {
		countTokens = prompt.NewTiktokenCounter(cfg.AI.TokenModel)
	}
	analysisService, err := service.NewAnalysisService(
		idx,
		ai.NewRetryGenerator(manager, retryConfig(cfg.AI.Retry)),
		template,
		service.AnalysisOptions{
			TopK:            cfg.TopK,
			MaxInputChars:   cfg.MaxInputChars,
			MaxPromptTokens: cfg.AI.MaxPromptTokens,
			CountTokens:     countTokens,
		},
	)
	if err != nil {
		return fmt.Errorf("init analysis service: %w", err)
	}

	deps := handler.RouterDeps{
		Analysis: handler.NewAnalysisHandler(analysisService),
		Health:   handler.NewHealthHandler(idx),
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logger.Info("http server listening", zap.String("addr", addr))

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-sigCtx.Done()
	logger.Info("server stopping...")
	return nil
}
