package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaURL = "http://localhost:11434"

type ollamaConfig struct {
	BaseURL string `json:"base_url"`
	// HTTPTimeout is in seconds.
	HTTPTimeout int `json:"http_timeout"`
}

// ollamaProvider serves both generation and embeddings from a local Ollama
// server, e.g. all-minilm for embeddings.
type ollamaProvider struct {
	baseURL    string
	httpClient *http.Client

	mu   sync.Mutex
	llms map[string]*ollama.LLM
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

func (p *ollamaProvider) llm(model string) (*ollama.LLM, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if llm, ok := p.llms[model]; ok {
		return llm, nil
	}
	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(p.baseURL),
		ollama.WithHTTPClient(p.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	p.llms[model] = llm
	return llm, nil
}

func (p *ollamaProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	llm, err := p.llm(model)
	if err != nil {
		return "", err
	}
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	resp, err := llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama response has no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// Embed ignores taskType; Ollama embedding models take plain text.
func (p *ollamaProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	llm, err := p.llm(model)
	if err != nil {
		return nil, err
	}
	vectors, err := llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("ollama embed: empty response")
	}
	return vectors[0], nil
}

func newOllamaProvider(args interface{}) (*ollamaProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	timeout := 120 * time.Second
	if cfg.HTTPTimeout > 0 {
		timeout = time.Duration(cfg.HTTPTimeout) * time.Second
	}
	return &ollamaProvider{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		llms:       make(map[string]*ollama.LLM),
	}, nil
}

func init() {
	Register("ollama", func(args interface{}) (IAIProvider, error) { return newOllamaProvider(args) })
	RegisterEmbed("ollama", func(args interface{}) (IEmbedProvider, error) { return newOllamaProvider(args) })
}
