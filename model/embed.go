package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"helprag/config"
	"helprag/types"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Embedder turns texts into fixed-length vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedQuery embeds a single string.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("expected 1 embedding, got %d", len(vecs)))
	}
	return vecs[0], nil
}

// NewEmbedder builds the embedder selected by cfg.Embedding.Provider.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	var e Embedder
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		e = NewOpenAIEmbedder(cfg.OpenAIKey, cfg.Embedding.Model)
	case config.ProviderOllama:
		e = NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model)
	case config.ProviderLocal:
		local, err := NewLocalEmbedder(cfg.Embedding.Model, cfg.Embedding.ModelDir)
		if err != nil {
			return nil, err
		}
		e = local
	default:
		return nil, types.Wrap(types.ErrConfiguration, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider))
	}
	slog.Info("embedder ready", "provider", cfg.Embedding.Provider, "model", cfg.Embedding.Model)
	return e, nil
}

// CachedEmbedder keeps recent embeddings in an LRU cache. It is meant for the
// query path where the same questions repeat.
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps next with a cache of size entries. A non-positive
// size returns next unchanged.
func NewCachedEmbedder(next Embedder, size int) (Embedder, error) {
	if size <= 0 {
		return next, nil
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, types.Wrap(types.ErrEmbedding, errors.New("embedder returned a different number of vectors"))
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		c.cache.Add(missing[j], vec)
	}
	return out, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
