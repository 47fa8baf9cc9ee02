package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"helprag/config"
	"helprag/loader/internal"
	"helprag/model"
	"helprag/store"
	"helprag/types"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type Options struct {
	Index        types.IndexSpec
	BatchSize    int
	RPS          float64 // embedding batches per second, 0 means unlimited
	ChunkSize    int
	ChunkOverlap int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Index: types.IndexSpec{
			Name:      cfg.Index.Name,
			Dimension: cfg.Embedding.Dimension,
			Metric:    cfg.Index.Metric,
		},
		BatchSize:    cfg.Embedding.BatchSize,
		RPS:          cfg.Embedding.RPS,
		ChunkSize:    cfg.Loader.ChunkSize,
		ChunkOverlap: cfg.Loader.ChunkOverlap,
	}
}

// Report summarizes one ingestion run.
type Report struct {
	RunID     uuid.UUID
	SourceDir string
	Documents int
	Articles  int
	Chunks    int
	Vectors   int
	StartedAt time.Time
	Duration  time.Duration
}

type Service struct {
	logger   *slog.Logger
	embedder model.Embedder
	index    store.VectorIndex
	builder  *internal.Builder
	limiter  *rate.Limiter
	opts     Options
}

func New(embedder model.Embedder, index store.VectorIndex, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}
	return &Service{
		logger:   slog.Default().With("component", "ingestion"),
		embedder: embedder,
		index:    index,
		builder:  internal.NewBuilder(opts.ChunkSize, opts.ChunkOverlap),
		limiter:  limiter,
		opts:     opts,
	}
}

// RunIngestion rebuilds the index from every HTML document in sourceDir.
// Any failure aborts the run; batches already upserted stay in the index.
func (s *Service) RunIngestion(ctx context.Context, sourceDir string) (*Report, error) {
	report := &Report{
		RunID:     uuid.New(),
		SourceDir: sourceDir,
		StartedAt: time.Now(),
	}
	logger := s.logger.With("run_id", report.RunID.String())
	logger.Info("ingestion started", "source_dir", sourceDir)

	docs, err := internal.LoadDocuments(sourceDir)
	if err != nil {
		return nil, err
	}
	report.Documents = len(docs)

	articles, err := internal.ExtractArticles(docs)
	if err != nil {
		return nil, err
	}
	report.Articles = len(articles)

	chunks := s.builder.Build(articles)
	report.Chunks = len(chunks)
	logger.Info("built chunks", "documents", len(docs), "articles", len(articles), "chunks", len(chunks))

	embedded, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if err := s.index.EnsureExists(ctx, s.opts.Index); err != nil {
		return nil, err
	}

	vectors := make([]types.Vector, len(embedded))
	for i, ec := range embedded {
		vectors[i] = types.Vector{
			ID:       ec.ID,
			Values:   ec.Embedding,
			Metadata: internal.VectorMetadata(ec.Chunk),
		}
	}
	for start := 0; start < len(vectors); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(vectors))
		if err := s.index.Upsert(ctx, vectors[start:end]); err != nil {
			return nil, err
		}
		report.Vectors = end
	}

	report.Duration = time.Since(report.StartedAt)
	logger.Info("ingestion finished", "vectors", report.Vectors, "took", report.Duration)
	return report, nil
}

// embedChunks embeds chunk texts one batch per call and checks every vector
// against the configured dimension.
func (s *Service) embedChunks(ctx context.Context, chunks []types.Chunk) ([]types.EmbeddedChunk, error) {
	out := make([]types.EmbeddedChunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(chunks))
		batch := chunks[start:end]

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vecs)))
		}

		for i, c := range batch {
			if len(vecs[i]) != s.opts.Index.Dimension {
				return nil, fmt.Errorf("%w: chunk %q has %d values, index expects %d",
					types.ErrDimensionMismatch, c.ID, len(vecs[i]), s.opts.Index.Dimension)
			}
			out = append(out, types.EmbeddedChunk{Chunk: c, Embedding: vecs[i]})
		}
		s.logger.Debug("embedded batch", "from", start, "to", end)
	}
	return out, nil
}
