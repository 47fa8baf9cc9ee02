package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"helprag/config"
	"helprag/store"
	"helprag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dim = 4

type hashEmbedder struct {
	calls   int
	batches []int
	dim     int
	err     error
}

func (e *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.batches = append(e.batches, len(texts))
	if e.err != nil {
		return nil, e.err
	}
	d := e.dim
	if d == 0 {
		d = dim
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		h := fnv.New32a()
		h.Write([]byte(t))
		sum := h.Sum32()
		vec := make([]float32, d)
		for j := range vec {
			vec[j] = float32((sum>>(j*8))&0xff) + 1
		}
		out[i] = vec
	}
	return out, nil
}

type recordingIndex struct {
	store.VectorIndex
	ensured int
	upserts []int
}

func (r *recordingIndex) EnsureExists(ctx context.Context, spec types.IndexSpec) error {
	r.ensured++
	return r.VectorIndex.EnsureExists(ctx, spec)
}

func (r *recordingIndex) Upsert(ctx context.Context, vectors []types.Vector) error {
	r.upserts = append(r.upserts, len(vectors))
	return r.VectorIndex.Upsert(ctx, vectors)
}

func writeArticle(t *testing.T, dir, name, title, body string) {
	t.Helper()
	html := fmt.Sprintf("<html><body><main><h1>%s</h1><p>%s</p><h2>Related articles</h2><p>More</p></main></body></html>", title, body)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(html), 0o644))
}

func setup(t *testing.T, opts Options) (string, *recordingIndex, *indexProbe) {
	t.Helper()
	dir := t.TempDir()
	writeArticle(t, dir, "refund.html", "How to request a refund", strings.Repeat("Refunds take 14 days. ", 100))
	writeArticle(t, dir, "cancel.html", "Cancel your plan", "Open Billing and press Cancel.")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	sqlite, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"), opts.Index.Name)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return dir, &recordingIndex{VectorIndex: sqlite}, &indexProbe{sqlite}
}

// indexProbe lists stored ids through the public query path.
type indexProbe struct{ s *store.SQLiteStore }

func (p *indexProbe) ids(t *testing.T) []string {
	t.Helper()
	matches, err := p.s.Query(context.Background(), []float32{1, 1, 1, 1}, 100, false)
	require.NoError(t, err)
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids
}

func testOptions() Options {
	return Options{
		Index:     types.IndexSpec{Name: "helpcenter", Dimension: dim, Metric: types.MetricCosine},
		BatchSize: 2,
	}
}

func TestRunIngestion(t *testing.T) {
	ctx := context.Background()

	t.Run("Indexes every chunk", func(t *testing.T) {
		dir, idx, probe := setup(t, testOptions())
		emb := &hashEmbedder{}
		report, err := New(emb, idx, testOptions()).RunIngestion(ctx, dir)
		require.NoError(t, err)

		// 2200 chars of refund text gives two chunks, the cancel article one
		assert.Equal(t, 2, report.Documents)
		assert.Equal(t, 2, report.Articles)
		assert.Equal(t, 3, report.Chunks)
		assert.Equal(t, 3, report.Vectors)
		assert.Equal(t, dir, report.SourceDir)
		assert.NotEmpty(t, report.RunID.String())

		assert.Equal(t, []int{2, 1}, emb.batches)
		assert.Equal(t, 1, idx.ensured)
		assert.Equal(t, []int{2, 1}, idx.upserts)
		assert.ElementsMatch(t, []string{
			"cancel-your-plan-chunk-0",
			"how-to-request-a-refund-chunk-0",
			"how-to-request-a-refund-chunk-1",
		}, probe.ids(t))
	})

	t.Run("Metadata carries chunk text", func(t *testing.T) {
		dir, idx, _ := setup(t, testOptions())
		_, err := New(&hashEmbedder{}, idx, testOptions()).RunIngestion(ctx, dir)
		require.NoError(t, err)

		emb := &hashEmbedder{}
		vec, err := emb.Embed(ctx, []string{"Open Billing and press Cancel."})
		require.NoError(t, err)
		matches, err := idx.Query(ctx, vec[0], 1, true)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "cancel-your-plan-chunk-0", matches[0].ID)
		assert.Equal(t, "Open Billing and press Cancel.", matches[0].Metadata[types.MetaText])
		assert.Equal(t, "Cancel your plan", matches[0].Metadata[types.MetaTitle])
		assert.Equal(t, "cancel-your-plan", matches[0].Metadata[types.MetaArticleID])
		assert.Equal(t, float64(0), matches[0].Metadata[types.MetaChunkIndex])
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	})

	t.Run("Re-running overwrites the same ids", func(t *testing.T) {
		dir, idx, probe := setup(t, testOptions())
		svc := New(&hashEmbedder{}, idx, testOptions())
		_, err := svc.RunIngestion(ctx, dir)
		require.NoError(t, err)
		first := probe.ids(t)

		_, err = svc.RunIngestion(ctx, dir)
		require.NoError(t, err)
		assert.ElementsMatch(t, first, probe.ids(t))
	})

	t.Run("Embedding failure aborts before the index is touched", func(t *testing.T) {
		dir, idx, _ := setup(t, testOptions())
		emb := &hashEmbedder{err: types.Wrap(types.ErrEmbedding, assert.AnError)}
		_, err := New(emb, idx, testOptions()).RunIngestion(ctx, dir)
		assert.ErrorIs(t, err, types.ErrEmbedding)
		assert.Equal(t, 0, idx.ensured)
		assert.Empty(t, idx.upserts)
	})

	t.Run("Wrong embedding dimension is fatal", func(t *testing.T) {
		dir, idx, _ := setup(t, testOptions())
		_, err := New(&hashEmbedder{dim: dim + 1}, idx, testOptions()).RunIngestion(ctx, dir)
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)
		assert.Equal(t, 0, idx.ensured)
	})

	t.Run("Existing index with another dimension", func(t *testing.T) {
		dir, idx, _ := setup(t, testOptions())
		require.NoError(t, idx.VectorIndex.EnsureExists(ctx, types.IndexSpec{Name: "helpcenter", Dimension: 8, Metric: types.MetricCosine}))
		_, err := New(&hashEmbedder{}, idx, testOptions()).RunIngestion(ctx, dir)
		assert.ErrorIs(t, err, types.ErrDimensionMismatch)
		assert.Empty(t, idx.upserts)
	})

	t.Run("Missing source directory", func(t *testing.T) {
		_, idx, _ := setup(t, testOptions())
		_, err := New(&hashEmbedder{}, idx, testOptions()).RunIngestion(ctx, filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})

	t.Run("Empty corpus creates the index only", func(t *testing.T) {
		_, idx, probe := setup(t, testOptions())
		emb := &hashEmbedder{}
		report, err := New(emb, idx, testOptions()).RunIngestion(ctx, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, 0, report.Chunks)
		assert.Equal(t, 0, emb.calls)
		assert.Equal(t, 1, idx.ensured)
		assert.Empty(t, probe.ids(t))
	})

	t.Run("Cancelled context", func(t *testing.T) {
		dir, idx, _ := setup(t, testOptions())
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		opts := testOptions()
		opts.RPS = 1
		_, err := New(&hashEmbedder{}, idx, opts).RunIngestion(cctx, dir)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Dimension = 768
	cfg.Index.Metric = types.MetricDotProduct
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, types.IndexSpec{Name: "typeform-helpcenter", Dimension: 768, Metric: types.MetricDotProduct}, opts.Index)
	assert.Equal(t, 100, opts.BatchSize)
	assert.Equal(t, 1200, opts.ChunkSize)
	assert.Equal(t, 200, opts.ChunkOverlap)
}

func TestWatch(t *testing.T) {
	dir, idx, probe := setup(t, testOptions())
	svc := New(&hashEmbedder{}, idx, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan *Report, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, dir, 50*time.Millisecond, func(r *Report, err error) {
			if err != nil {
				return
			}
			select {
			case runs <- r:
			default:
			}
		})
	}()

	select {
	case r := <-runs:
		assert.Equal(t, 3, r.Vectors)
	case <-time.After(5 * time.Second):
		t.Fatal("initial ingestion did not run")
	}

	writeArticle(t, dir, "invite.html", "Invite teammates", "Use the Members page.")

	// a run may start between the create and write events of the new file
	deadline := time.After(5 * time.Second)
	for vectors := 0; vectors != 4; {
		select {
		case r := <-runs:
			vectors = r.Vectors
		case <-deadline:
			t.Fatal("change did not trigger ingestion")
		}
	}
	assert.Contains(t, probe.ids(t), "invite-teammates-chunk-0")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
