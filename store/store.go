package store

import (
	"context"
	"fmt"
	"math"

	"helprag/config"
	"helprag/types"
)

// VectorIndex is a named nearest-neighbour index of chunk embeddings.
type VectorIndex interface {
	// EnsureExists creates the index if missing. An existing index with a
	// different dimension fails with types.ErrDimensionMismatch.
	EnsureExists(ctx context.Context, spec types.IndexSpec) error
	// Upsert overwrites records by id.
	Upsert(ctx context.Context, vectors []types.Vector) error
	// Query returns at most topK matches, most relevant first. An index that
	// was never created yields no matches.
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]types.Match, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected in cfg.
func Open(ctx context.Context, cfg *config.Config) (VectorIndex, error) {
	switch cfg.Index.Backend {
	case config.BackendPgvector:
		return NewPostgresStore(ctx, cfg.Postgres.ConnString(), cfg.Index.Name)
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.SQLite.Path, cfg.Index.Name)
	}
	return nil, types.Wrap(types.ErrConfiguration, fmt.Errorf("unknown index backend %q", cfg.Index.Backend))
}

func checkDimensions(vectors []types.Vector, dimension int) error {
	for _, v := range vectors {
		if len(v.Values) != dimension {
			return fmt.Errorf("%w: vector %q has %d values, index expects %d",
				types.ErrDimensionMismatch, v.ID, len(v.Values), dimension)
		}
	}
	return nil
}

// similarity scores a against b so that a higher value is always more relevant.
func similarity(metric types.Metric, a, b []float32) float64 {
	switch metric {
	case types.MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return 1 / (1 + math.Sqrt(sum))
	case types.MetricDotProduct:
		return dot(a, b)
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
