package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"helprag/types"

	"github.com/pgvector/pgvector-go"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS vector_indexes (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		metric TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vectors (
		index_name TEXT NOT NULL,
		id TEXT NOT NULL,
		embedding TEXT NOT NULL,
		metadata TEXT,
		PRIMARY KEY (index_name, id)
	);
`

// SQLiteStore is a single-file index for local runs. Queries scan every
// vector of the index and rank them in memory.
type SQLiteStore struct {
	db     *sql.DB
	name   string
	logger *slog.Logger
}

func NewSQLiteStore(path, indexName string) (*SQLiteStore, error) {
	if path == "" {
		return nil, types.Wrap(types.ErrIndex, errors.New("sqlite path required"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, types.Wrap(types.ErrIndex, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, types.Wrap(types.ErrIndex, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, types.Wrap(types.ErrIndex, fmt.Errorf("create schema: %w", err))
	}
	return &SQLiteStore{
		db:     db,
		name:   indexName,
		logger: slog.Default().With("store", "sqlite", "index", indexName),
	}, nil
}

func (s *SQLiteStore) lookup(ctx context.Context) (*types.IndexSpec, error) {
	spec := types.IndexSpec{Name: s.name}
	var metric string
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension, metric FROM vector_indexes WHERE name = ?`, s.name,
	).Scan(&spec.Dimension, &metric)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.ErrIndex, err)
	}
	spec.Metric = types.Metric(metric)
	return &spec, nil
}

func (s *SQLiteStore) EnsureExists(ctx context.Context, spec types.IndexSpec) error {
	if spec.Name != s.name {
		return types.Wrap(types.ErrIndex, fmt.Errorf("store is bound to index %q, got %q", s.name, spec.Name))
	}
	existing, err := s.lookup(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Dimension != spec.Dimension {
			return fmt.Errorf("%w: index %q has dimension %d, embeddings have %d",
				types.ErrDimensionMismatch, spec.Name, existing.Dimension, spec.Dimension)
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO vector_indexes (name, dimension, metric) VALUES (?, ?, ?)`,
		spec.Name, spec.Dimension, string(spec.Metric)); err != nil {
		return types.Wrap(types.ErrIndex, fmt.Errorf("register index: %w", err))
	}
	s.logger.Info("created index", "dimension", spec.Dimension, "metric", spec.Metric)
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, vectors []types.Vector) error {
	if len(vectors) == 0 {
		return nil
	}
	spec, err := s.lookup(ctx)
	if err != nil {
		return err
	}
	if spec == nil {
		return types.Wrap(types.ErrIndex, fmt.Errorf("index %q does not exist", s.name))
	}
	if err := checkDimensions(vectors, spec.Dimension); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Wrap(types.ErrIndex, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (index_name, id, embedding, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (index_name, id) DO UPDATE SET
			embedding = excluded.embedding,
			metadata = excluded.metadata`)
	if err != nil {
		return types.Wrap(types.ErrIndex, err)
	}
	defer stmt.Close()

	for _, v := range vectors {
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return types.Wrap(types.ErrIndex, fmt.Errorf("encode metadata for %q: %w", v.ID, err))
		}
		if _, err := stmt.ExecContext(ctx, s.name, v.ID, pgvector.NewVector(v.Values).String(), string(meta)); err != nil {
			return types.Wrap(types.ErrIndex, fmt.Errorf("upsert %q: %w", v.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return types.Wrap(types.ErrIndex, err)
	}
	s.logger.Debug("upserted vectors", "count", len(vectors))
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]types.Match, error) {
	if topK < 1 {
		return nil, types.ErrInvalidTopK
	}
	spec, err := s.lookup(ctx)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		s.logger.Warn("query on missing index")
		return nil, nil
	}
	if len(vector) != spec.Dimension {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d",
			types.ErrDimensionMismatch, len(vector), spec.Dimension)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding, metadata FROM vectors WHERE index_name = ?`, s.name)
	if err != nil {
		return nil, types.Wrap(types.ErrIndex, err)
	}
	defer rows.Close()

	var matches []types.Match
	for rows.Next() {
		var (
			id        string
			embedding pgvector.Vector
			meta      sql.NullString
		)
		if err := rows.Scan(&id, &embedding, &meta); err != nil {
			return nil, types.Wrap(types.ErrIndex, err)
		}
		m := types.Match{ID: id, Score: similarity(spec.Metric, vector, embedding.Slice())}
		if includeMetadata && meta.Valid {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return nil, types.Wrap(types.ErrIndex, fmt.Errorf("decode metadata for %q: %w", id, err))
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.Wrap(types.ErrIndex, err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return types.Wrap(types.ErrIndex, s.db.PingContext(ctx))
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
