package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port           int              `json:"port"`
	LogConfig      logger.LogConfig `json:"log_config"`
	CORSOrigins    []string         `json:"cors_origins"`
	DataSource     DataSourceConfig `json:"data_source"`
	RecordsFile    string           `json:"records_file"`
	PromptsFile    string           `json:"prompts_file"`
	PromptKey      string           `json:"prompt_key"`
	TopK           int              `json:"top_k"`
	MaxInputChars  int              `json:"max_input_chars"`
	RequireRecords bool             `json:"require_records"`
	AI             AIConfig         `json:"ai"`
}

type DataSourceConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	// Timeout and EmbedTimeout are in seconds.
	Timeout         int              `json:"timeout"`
	EmbedTimeout    int              `json:"embed_timeout"`
	MaxPromptTokens int              `json:"max_prompt_tokens"`
	TokenModel      string           `json:"token_model"`
	EmbedWorkers    int              `json:"embed_workers"`
	Retry           RetryConfig      `json:"retry"`
	EmbedCache      EmbedCacheConfig `json:"embed_cache"`
	Embedder        ProviderConfig   `json:"embedder"`
	Generators      []ProviderConfig `json:"generators"`
}

type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type RetryConfig struct {
	MaxAttempts int `json:"max_attempts"`
	BaseDelayMs int `json:"base_delay_ms"`
	MaxDelayMs  int `json:"max_delay_ms"`
}

type EmbedCacheConfig struct {
	Size int `json:"size"`
	// TTL is in seconds.
	TTL int `json:"ttl"`
}

// Load reads a JSON config file. ${VAR} references are expanded from the
// environment, which is first populated from a .env file when one exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults(baseDir string) error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.DataSource.Type == "" {
		cfg.DataSource.Type = "local"
	}
	if cfg.DataSource.Type == "local" && cfg.DataSource.Data == nil {
		cfg.DataSource.Data = map[string]interface{}{"dir": baseDir}
	}
	if cfg.RecordsFile == "" {
		cfg.RecordsFile = "change_records.yaml"
	}
	if cfg.PromptsFile == "" {
		cfg.PromptsFile = "prompt.yaml"
	}
	if cfg.PromptKey == "" {
		cfg.PromptKey = "analyze_change"
	}
	if cfg.TopK == 0 {
		cfg.TopK = 3
	}
	if cfg.TopK < 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if cfg.MaxInputChars == 0 {
		cfg.MaxInputChars = 8000
	}
	ai := &cfg.AI
	if ai.Timeout == 0 {
		ai.Timeout = 60
	}
	if ai.EmbedTimeout == 0 {
		ai.EmbedTimeout = 30
	}
	if ai.TokenModel == "" {
		ai.TokenModel = "gpt-4o-mini"
	}
	if ai.EmbedWorkers <= 0 {
		ai.EmbedWorkers = 4
	}
	if ai.Retry.MaxAttempts == 0 {
		ai.Retry.MaxAttempts = 3
	}
	if ai.Retry.BaseDelayMs == 0 {
		ai.Retry.BaseDelayMs = 500
	}
	if ai.Retry.MaxDelayMs == 0 {
		ai.Retry.MaxDelayMs = 8000
	}
	if ai.EmbedCache.Size == 0 {
		ai.EmbedCache.Size = 1024
	}
	if ai.EmbedCache.TTL == 0 {
		ai.EmbedCache.TTL = 3600
	}
	if strings.TrimSpace(ai.Embedder.Provider) == "" || strings.TrimSpace(ai.Embedder.Model) == "" {
		return fmt.Errorf("ai.embedder provider/model are required")
	}
	if len(ai.Generators) == 0 {
		return fmt.Errorf("ai.generators requires at least one entry")
	}
	for i, gen := range ai.Generators {
		if strings.TrimSpace(gen.Provider) == "" || strings.TrimSpace(gen.Model) == "" {
			return fmt.Errorf("ai.generators[%d] provider/model are required", i)
		}
	}
	return nil
}
