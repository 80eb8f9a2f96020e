package catalog

import (
	"context"
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/xxxsen/changerisk/internal/datasource"
)

type promptEntry struct {
	Prompt string `json:"prompt"`
}

type Templates map[string]string

func (t Templates) Get(key string) (string, error) {
	tpl, ok := t[key]
	if !ok {
		return "", fmt.Errorf("prompt template not found: %s", key)
	}
	return tpl, nil
}

func ParseTemplates(data []byte) (Templates, error) {
	var entries map[string]promptEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode prompt templates: %w", err)
	}
	out := make(Templates, len(entries))
	for key, entry := range entries {
		if strings.TrimSpace(entry.Prompt) == "" {
			return nil, fmt.Errorf("prompt template %s is empty", key)
		}
		out[key] = entry.Prompt
	}
	return out, nil
}

func LoadTemplates(ctx context.Context, src datasource.Source, name string) (Templates, error) {
	data, err := datasource.ReadAll(ctx, src, name)
	if err != nil {
		return nil, err
	}
	return ParseTemplates(data)
}
