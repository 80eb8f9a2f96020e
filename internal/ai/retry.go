package ai

import (
	"context"
	"errors"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type retryGenerator struct {
	next IGenerator
	cfg  RetryConfig
}

// NewRetryGenerator retries failed generations with exponential backoff.
// Unconfigured providers and a cancelled caller context end the loop early.
func NewRetryGenerator(next IGenerator, cfg RetryConfig) IGenerator {
	if next == nil || cfg.MaxAttempts <= 1 {
		return next
	}
	return &retryGenerator{next: next, cfg: cfg}
}

func (r *retryGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	delay := r.cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		res, err := r.next.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		if attempt >= r.cfg.MaxAttempts || !retryable(ctx, err) {
			return "", err
		}
		logutil.GetLogger(ctx).Warn("generation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if !sleepContext(ctx, delay) {
			return "", err
		}
		delay *= 2
		if r.cfg.MaxDelay > 0 && delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
