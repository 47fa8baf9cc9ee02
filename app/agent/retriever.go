package agent

import (
	"context"
	"log/slog"
	"time"

	"helprag/model"
	"helprag/store"
	"helprag/types"
)

// Retriever embeds a query and fetches its nearest chunks with metadata.
type Retriever struct {
	embedder model.Embedder
	index    store.VectorIndex
	logger   *slog.Logger
}

func NewRetriever(embedder model.Embedder, index store.VectorIndex) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		logger:   slog.Default().With("component", "retriever"),
	}
}

// Retrieve returns matches in the order the index ranked them.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]types.Match, error) {
	if topK < 1 {
		return nil, types.ErrInvalidTopK
	}
	start := time.Now()

	vec, err := model.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return nil, err
	}
	matches, err := r.index.Query(ctx, vec, topK, true)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("retrieved matches", "top_k", topK, "count", len(matches), "took", time.Since(start))
	return matches, nil
}
