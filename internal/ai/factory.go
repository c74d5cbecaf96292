package ai

import (
	"fmt"

	"codereviewsvc/internal/ai/anthropic"
	"codereviewsvc/internal/ai/ollama"
	"codereviewsvc/internal/ai/openai"
	"codereviewsvc/internal/ai/vllm"
)

// NewProvider constructs the configured provider. Called once at
// startup so the worker/AI detector never re-resolves config per call.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model, cfg.TimeoutMs), nil
	case "openai":
		return openai.New(cfg.APIKey, cfg.Model, cfg.TimeoutMs), nil
	case "ollama":
		return ollama.New(cfg.BaseURL, cfg.Model, cfg.TimeoutMs), nil
	case "vllm":
		return vllm.New(cfg.BaseURL, cfg.Model, cfg.TimeoutMs), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of anthropic, openai, ollama, vllm", cfg.Provider)
	}
}
