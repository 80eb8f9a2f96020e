package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type ManagerConfig struct {
	// Timeout bounds one generation call, EmbedTimeout one embedding call.
	// Both are in seconds; zero disables the bound.
	Timeout      int
	EmbedTimeout int
}

// Manager applies per-call timeouts in front of the configured generator and
// embedder. It satisfies both IGenerator and IEmbedder.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	ctx, cancel := withTimeout(ctx, m.cfg.EmbedTimeout)
	defer cancel()
	res, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, annotateTimeout(err, m.cfg.EmbedTimeout)
	}
	return res, nil
}

func (m *Manager) Generate(ctx context.Context, prompt string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured: %w", ErrUnavailable)
	}
	ctx, cancel := withTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	res, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", annotateTimeout(err, m.cfg.Timeout)
	}
	return res, nil
}

func (m *Manager) ModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func withTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

func annotateTimeout(err error, seconds int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("ai call timed out after %ds: %w", seconds, err)
	}
	return err
}
