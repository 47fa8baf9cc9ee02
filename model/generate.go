package model

import (
	"context"
	"fmt"

	"helprag/config"
	"helprag/types"
)

// Generator returns a single completion for an ordered list of messages.
type Generator interface {
	Generate(ctx context.Context, messages []types.Message, temperature float64) (string, error)
}

func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(cfg.OpenAIKey, cfg.LLM.Model), nil
	case config.ProviderOllama:
		return NewOllamaGenerator(cfg.LLM.URL, cfg.LLM.Model), nil
	}
	return nil, types.Wrap(types.ErrConfiguration, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider))
}
