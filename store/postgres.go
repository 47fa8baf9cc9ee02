package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"helprag/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const registryDDL = `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS vector_indexes (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		metric TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);
`

// PostgresStore keeps one table per index in Postgres with the pgvector
// extension. Index names and dimensions are tracked in vector_indexes.
type PostgresStore struct {
	pool   *pgxpool.Pool
	name   string
	logger *slog.Logger

	mu   sync.Mutex
	spec *types.IndexSpec
}

func NewPostgresStore(ctx context.Context, connStr, indexName string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, types.Wrap(types.ErrIndex, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, types.Wrap(types.ErrIndex, err)
	}

	return &PostgresStore{
		pool:   pool,
		name:   indexName,
		logger: slog.Default().With("store", "pgvector", "index", indexName),
	}, nil
}

func (p *PostgresStore) table() string {
	return pgx.Identifier{"vectors_" + p.name}.Sanitize()
}

func (p *PostgresStore) EnsureExists(ctx context.Context, spec types.IndexSpec) error {
	if spec.Name != p.name {
		return types.Wrap(types.ErrIndex, fmt.Errorf("store is bound to index %q, got %q", p.name, spec.Name))
	}
	if _, err := p.pool.Exec(ctx, registryDDL); err != nil {
		return types.Wrap(types.ErrIndex, fmt.Errorf("create registry: %w", err))
	}

	existing, err := p.lookup(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Dimension != spec.Dimension {
			return fmt.Errorf("%w: index %q has dimension %d, embeddings have %d",
				types.ErrDimensionMismatch, spec.Name, existing.Dimension, spec.Dimension)
		}
		p.logger.Debug("index already exists", "dimension", existing.Dimension, "metric", existing.Metric)
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return types.Wrap(types.ErrIndex, err)
	}
	defer tx.Rollback(ctx)

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		metadata JSONB
	)`, p.table(), spec.Dimension)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return types.Wrap(types.ErrIndex, fmt.Errorf("create index table: %w", err))
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO vector_indexes (name, dimension, metric) VALUES ($1, $2, $3)`,
		spec.Name, spec.Dimension, string(spec.Metric)); err != nil {
		return types.Wrap(types.ErrIndex, fmt.Errorf("register index: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return types.Wrap(types.ErrIndex, err)
	}

	p.mu.Lock()
	p.spec = &spec
	p.mu.Unlock()
	p.logger.Info("created index", "dimension", spec.Dimension, "metric", spec.Metric)
	return nil
}

// lookup returns the registered spec, or nil when the index does not exist.
func (p *PostgresStore) lookup(ctx context.Context) (*types.IndexSpec, error) {
	p.mu.Lock()
	cached := p.spec
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	spec := types.IndexSpec{Name: p.name}
	var metric string
	err := p.pool.QueryRow(ctx,
		`SELECT dimension, metric FROM vector_indexes WHERE name = $1`, p.name,
	).Scan(&spec.Dimension, &metric)
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case errors.As(err, &pgErr) && pgErr.Code == "42P01":
		// registry table not created yet
		return nil, nil
	case err != nil:
		return nil, types.Wrap(types.ErrIndex, err)
	}
	spec.Metric = types.Metric(metric)

	p.mu.Lock()
	p.spec = &spec
	p.mu.Unlock()
	return &spec, nil
}

func (p *PostgresStore) Upsert(ctx context.Context, vectors []types.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	spec, err := p.lookup(ctx)
	if err != nil {
		return err
	}
	if spec == nil {
		return types.Wrap(types.ErrIndex, fmt.Errorf("index %q does not exist", p.name))
	}
	if err := checkDimensions(vectors, spec.Dimension); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, embedding, metadata)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, p.table())

	batch := &pgx.Batch{}
	for _, v := range vectors {
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return types.Wrap(types.ErrIndex, fmt.Errorf("encode metadata for %q: %w", v.ID, err))
		}
		batch.Queue(query, v.ID, pgvector.NewVector(v.Values), string(meta))
	}

	br := p.pool.SendBatch(ctx, batch)
	for _, v := range vectors {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return types.Wrap(types.ErrIndex, fmt.Errorf("upsert %q: %w", v.ID, err))
		}
	}
	if err := br.Close(); err != nil {
		return types.Wrap(types.ErrIndex, err)
	}
	p.logger.Debug("upserted vectors", "count", len(vectors))
	return nil
}

// distanceOperator returns the pgvector operator for metric and a function
// turning its distance into a higher-is-better score.
func distanceOperator(metric types.Metric) (string, func(float64) float64) {
	switch metric {
	case types.MetricEuclidean:
		return "<->", func(d float64) float64 { return 1 / (1 + d) }
	case types.MetricDotProduct:
		// <#> is the negative inner product
		return "<#>", func(d float64) float64 { return -d }
	default:
		return "<=>", func(d float64) float64 { return 1 - d }
	}
}

func (p *PostgresStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]types.Match, error) {
	if topK < 1 {
		return nil, types.ErrInvalidTopK
	}
	spec, err := p.lookup(ctx)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		p.logger.Warn("query on missing index")
		return nil, nil
	}
	if len(vector) != spec.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			types.ErrDimensionMismatch, len(vector), spec.Dimension)
	}

	op, toScore := distanceOperator(spec.Metric)
	query := fmt.Sprintf(`
		SELECT id, metadata, embedding %[1]s $1 AS distance
		FROM %[2]s
		ORDER BY embedding %[1]s $1
		LIMIT $2`, op, p.table())

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, types.Wrap(types.ErrIndex, err)
	}
	defer rows.Close()

	var matches []types.Match
	for rows.Next() {
		var (
			m        types.Match
			meta     map[string]any
			distance float64
		)
		if err := rows.Scan(&m.ID, &meta, &distance); err != nil {
			return nil, types.Wrap(types.ErrIndex, err)
		}
		m.Score = toScore(distance)
		if includeMetadata {
			m.Metadata = meta
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Wrap(types.ErrIndex, err)
	}
	return matches, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return types.Wrap(types.ErrIndex, p.pool.Ping(ctx))
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}
