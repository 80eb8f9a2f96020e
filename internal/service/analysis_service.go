package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/changerisk/internal/ai"
	"github.com/xxxsen/changerisk/internal/model"
	appErr "github.com/xxxsen/changerisk/internal/pkg/errors"
	"github.com/xxxsen/changerisk/internal/prompt"
	"github.com/xxxsen/changerisk/internal/retriever"
)

var (
	ErrPromptTooLarge = fmt.Errorf("prompt exceeds token budget: %w", appErr.ErrInvalid)
)

type AnalysisOptions struct {
	TopK            int
	MaxInputChars   int
	MaxPromptTokens int
	CountTokens     prompt.TokenCounter
}

type AnalysisService struct {
	index     *retriever.Index
	generator ai.IGenerator
	template  string
	opts      AnalysisOptions
}

type AnalysisResult struct {
	Analysis string
	Similar  []model.SimilarChange
	Summary  AnalysisSummary
}

type AnalysisSummary struct {
	PotentialForError  string
	SimilarPastChanges []string
}

func NewAnalysisService(index *retriever.Index, generator ai.IGenerator, template string, opts AnalysisOptions) (*AnalysisService, error) {
	if index == nil || generator == nil {
		return nil, fmt.Errorf("index and generator are required")
	}
	if err := prompt.Validate(template); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.CountTokens == nil {
		opts.CountTokens = prompt.EstimateTokens
	}
	return &AnalysisService{
		index:     index,
		generator: generator,
		template:  template,
		opts:      opts,
	}, nil
}

// ValidateChange checks the two request fields. The values are kept as sent;
// whitespace only matters for the blank check.
func (s *AnalysisService) ValidateChange(subject, description string) (model.ChangeRecord, error) {
	if strings.TrimSpace(subject) == "" {
		return model.ChangeRecord{}, &appErr.ValidationError{Field: "Change Subject", Reason: "must not be empty"}
	}
	if strings.TrimSpace(description) == "" {
		return model.ChangeRecord{}, &appErr.ValidationError{Field: "Change description", Reason: "must not be empty"}
	}
	if max := s.opts.MaxInputChars; max > 0 && len(subject)+len(description) > max {
		return model.ChangeRecord{}, &appErr.ValidationError{Reason: fmt.Sprintf("change text exceeds %d characters", max)}
	}
	return model.ChangeRecord{Subject: subject, Description: description}, nil
}

func (s *AnalysisService) Similar(ctx context.Context, change model.ChangeRecord, k int) ([]model.SimilarChange, error) {
	if k <= 0 {
		k = s.opts.TopK
	}
	return s.index.TopK(ctx, change, k)
}

func (s *AnalysisService) Analyze(ctx context.Context, change model.ChangeRecord) (*AnalysisResult, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("subject", change.Subject))
	similar, err := s.index.TopK(ctx, change, s.opts.TopK)
	if err != nil {
		logger.Error("retrieve similar changes failed", zap.Error(err))
		return nil, err
	}
	text, similar, err := s.buildPrompt(ctx, change, similar)
	if err != nil {
		logger.Error("build prompt failed", zap.Error(err))
		return nil, err
	}
	logger.Debug("prompt built", zap.Int("similar", len(similar)), zap.Int("prompt_chars", len(text)))
	analysis, err := s.generator.Generate(ctx, text)
	if err != nil {
		logger.Error("generate analysis failed", zap.Error(err))
		return nil, err
	}
	logger.Info("change analyzed", zap.Strings("similar_ids", similarIDs(similar)))
	return &AnalysisResult{
		Analysis: analysis,
		Similar:  similar,
		Summary:  ParseAnalysis(analysis),
	}, nil
}

// buildPrompt renders the template, dropping the lowest-ranked records while
// the prompt is over the token budget.
func (s *AnalysisService) buildPrompt(ctx context.Context, change model.ChangeRecord, similar []model.SimilarChange) (string, []model.SimilarChange, error) {
	for {
		text, err := prompt.Build(s.template, change, similar)
		if err != nil {
			return "", nil, err
		}
		if s.opts.MaxPromptTokens <= 0 {
			return text, similar, nil
		}
		tokens := s.opts.CountTokens(text)
		if tokens <= s.opts.MaxPromptTokens {
			return text, similar, nil
		}
		if len(similar) == 0 {
			return "", nil, fmt.Errorf("%d tokens over budget of %d: %w", tokens, s.opts.MaxPromptTokens, ErrPromptTooLarge)
		}
		logutil.GetLogger(ctx).Warn("prompt over token budget, dropping similar change",
			zap.Int("tokens", tokens),
			zap.Int("budget", s.opts.MaxPromptTokens),
			zap.String("dropped_id", similar[len(similar)-1].Record.ID),
		)
		similar = similar[:len(similar)-1]
	}
}

var (
	potentialForErrorRe  = regexp.MustCompile(`(?i)Potential for error:[\s*_]*(Yes|No)`)
	similarPastChangesRe = regexp.MustCompile(`(?i)Similar past changes:[ \t*_]*(.+)`)
)

// ParseAnalysis extracts the "Potential for error" and "Similar past changes"
// lines the analysis prompt asks the model to emit. Missing lines leave the
// fields empty.
func ParseAnalysis(text string) AnalysisSummary {
	var summary AnalysisSummary
	if m := potentialForErrorRe.FindStringSubmatch(text); m != nil {
		summary.PotentialForError = "No"
		if strings.EqualFold(m[1], "yes") {
			summary.PotentialForError = "Yes"
		}
	}
	if m := similarPastChangesRe.FindStringSubmatch(text); m != nil {
		for _, part := range strings.Split(m[1], ",") {
			part = strings.Trim(strings.TrimSpace(part), "*`.")
			if part == "" || strings.EqualFold(part, "none") {
				continue
			}
			summary.SimilarPastChanges = append(summary.SimilarPastChanges, part)
		}
	}
	return summary
}

func similarIDs(similar []model.SimilarChange) []string {
	out := make([]string, 0, len(similar))
	for _, item := range similar {
		out = append(out, item.Record.ID)
	}
	return out
}
