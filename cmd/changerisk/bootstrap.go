package main

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/changerisk/internal/ai"
	"github.com/xxxsen/changerisk/internal/catalog"
	"github.com/xxxsen/changerisk/internal/config"
	"github.com/xxxsen/changerisk/internal/datasource"
	"github.com/xxxsen/changerisk/internal/embedcache"
	"github.com/xxxsen/changerisk/internal/model"
	"github.com/xxxsen/changerisk/internal/retriever"
)

func loadCatalog(ctx context.Context, cfg *config.Config) ([]model.ChangeRecord, catalog.Templates, error) {
	src, err := datasource.New(cfg.DataSource)
	if err != nil {
		return nil, nil, fmt.Errorf("init data source: %w", err)
	}
	records, err := catalog.LoadRecords(ctx, src, cfg.RecordsFile)
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		if cfg.RequireRecords {
			return nil, nil, fmt.Errorf("records file %s has no change records", cfg.RecordsFile)
		}
		logutil.GetLogger(ctx).Warn("no change records loaded, analyses will have no history to compare with",
			zap.String("records_file", cfg.RecordsFile))
	}
	templates, err := catalog.LoadTemplates(ctx, src, cfg.PromptsFile)
	if err != nil {
		return nil, nil, err
	}
	return records, templates, nil
}

func providerArgs(pc config.ProviderConfig) interface{} {
	if pc.Data == nil {
		return map[string]interface{}{}
	}
	return pc.Data
}

func buildEmbedder(cfg *config.Config) (ai.IEmbedder, error) {
	pc := cfg.AI.Embedder
	provider, err := ai.NewEmbedProvider(pc.Provider, providerArgs(pc))
	if err != nil {
		return nil, fmt.Errorf("init embed provider: %w", err)
	}
	return embedcache.WrapLruCacheToEmbedder(
		ai.NewEmbedder(provider, pc.Model),
		cfg.AI.EmbedCache.Size,
		time.Duration(cfg.AI.EmbedCache.TTL)*time.Second,
	), nil
}

func buildGenerator(cfg *config.Config) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, len(cfg.AI.Generators))
	for _, pc := range cfg.AI.Generators {
		provider, err := ai.NewProvider(pc.Provider, providerArgs(pc))
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      pc.Provider + ":" + pc.Model,
			Generator: ai.NewGenerator(provider, pc.Model),
		})
	}
	return ai.NewGroupGenerator(entries), nil
}

func buildIndex(ctx context.Context, cfg *config.Config, embedder ai.IEmbedder, records []model.ChangeRecord) (*retriever.Index, error) {
	idx, err := retriever.Build(ctx, embedder, records, cfg.AI.EmbedWorkers)
	if err != nil {
		return nil, fmt.Errorf("build embedding index: %w", err)
	}
	return idx, nil
}

func retryConfig(rc config.RetryConfig) ai.RetryConfig {
	return ai.RetryConfig{
		MaxAttempts: rc.MaxAttempts,
		BaseDelay:   time.Duration(rc.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(rc.MaxDelayMs) * time.Millisecond,
	}
}
