package agent

import (
	"context"
	"strings"
	"testing"

	"helprag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeIndex struct {
	matches []types.Match
	err     error
	topK    int
	meta    bool
}

func (f *fakeIndex) EnsureExists(context.Context, types.IndexSpec) error { return nil }
func (f *fakeIndex) Upsert(context.Context, []types.Vector) error        { return nil }
func (f *fakeIndex) Ping(context.Context) error                          { return nil }
func (f *fakeIndex) Close() error                                        { return nil }

func (f *fakeIndex) Query(_ context.Context, _ []float32, topK int, includeMetadata bool) ([]types.Match, error) {
	f.topK, f.meta = topK, includeMetadata
	if f.err != nil {
		return nil, f.err
	}
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

type fakeGenerator struct {
	calls       int
	messages    []types.Message
	temperature float64
	answer      string
	err         error
}

func (g *fakeGenerator) Generate(_ context.Context, messages []types.Message, temperature float64) (string, error) {
	g.calls++
	g.messages = messages
	g.temperature = temperature
	return g.answer, g.err
}

func sampleMatches() []types.Match {
	return []types.Match{
		{ID: "refunds-chunk-0", Score: 0.91, Metadata: map[string]any{
			types.MetaText: "Refunds are processed within 14 days.", types.MetaTitle: "Refunds",
			types.MetaArticleID: "refunds", types.MetaChunkIndex: float64(0),
		}},
		{ID: "billing-chunk-2", Score: 0.72, Metadata: map[string]any{
			types.MetaText: "Billing happens monthly.", types.MetaTitle: "Billing",
		}},
	}
}

func TestRetriever(t *testing.T) {
	ctx := context.Background()

	t.Run("Queries with metadata in index order", func(t *testing.T) {
		idx := &fakeIndex{matches: sampleMatches()}
		emb := &fakeEmbedder{}
		matches, err := NewRetriever(emb, idx).Retrieve(ctx, "how do refunds work?", 5)
		require.NoError(t, err)
		assert.Equal(t, sampleMatches(), matches)
		assert.Equal(t, 5, idx.topK)
		assert.True(t, idx.meta)
		assert.Equal(t, 1, emb.calls)
	})

	t.Run("Invalid top k", func(t *testing.T) {
		emb := &fakeEmbedder{}
		_, err := NewRetriever(emb, &fakeIndex{}).Retrieve(ctx, "q", 0)
		assert.ErrorIs(t, err, types.ErrInvalidTopK)
		assert.Equal(t, 0, emb.calls)
	})

	t.Run("Embedding failure", func(t *testing.T) {
		emb := &fakeEmbedder{err: types.Wrap(types.ErrEmbedding, assert.AnError)}
		_, err := NewRetriever(emb, &fakeIndex{}).Retrieve(ctx, "q", 3)
		assert.ErrorIs(t, err, types.ErrEmbedding)
	})

	t.Run("Index failure", func(t *testing.T) {
		idx := &fakeIndex{err: types.Wrap(types.ErrIndex, assert.AnError)}
		_, err := NewRetriever(&fakeEmbedder{}, idx).Retrieve(ctx, "q", 3)
		assert.ErrorIs(t, err, types.ErrIndex)
	})
}

func TestAgentAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("Grounded answer with sources", func(t *testing.T) {
		gen := &fakeGenerator{answer: "Refunds take 14 days."}
		a := NewAgent(NewRetriever(&fakeEmbedder{}, &fakeIndex{matches: sampleMatches()}), gen, DefaultTemperature)

		resp, err := a.Answer(ctx, "How long do refunds take?", 5)
		require.NoError(t, err)
		assert.Equal(t, "Refunds take 14 days.", resp.Answer)
		require.Len(t, resp.Sources, 2)
		assert.Equal(t, "refunds-chunk-0", resp.Sources[0].ID)
		assert.Equal(t, 0.91, resp.Sources[0].Score)
		assert.Equal(t, "Refunds are processed within 14 days.", resp.Sources[0].Text)
		require.NotNil(t, resp.Sources[0].ChunkIndex)
		assert.Equal(t, 0, *resp.Sources[0].ChunkIndex)
		assert.Nil(t, resp.Sources[1].ArticleID)

		assert.Equal(t, 1, gen.calls)
		assert.Equal(t, DefaultTemperature, gen.temperature)
		require.Len(t, gen.messages, 2)
		assert.Equal(t, types.RoleSystem, gen.messages[0].Role)
		assert.Equal(t, SystemPrompt, gen.messages[0].Content)
		assert.Equal(t, types.RoleUser, gen.messages[1].Role)
		assert.True(t, strings.HasPrefix(gen.messages[1].Content, "Context:\n[0] Title: Refunds\n"))
		assert.True(t, strings.HasSuffix(gen.messages[1].Content, "\n\nQuestion: How long do refunds take?"))
	})

	t.Run("No matches skips the generator", func(t *testing.T) {
		gen := &fakeGenerator{answer: "should not be used"}
		a := NewAgent(NewRetriever(&fakeEmbedder{}, &fakeIndex{}), gen, DefaultTemperature)

		resp, err := a.Answer(ctx, "Unrelated question", 5)
		assert.ErrorIs(t, err, types.ErrNoMatches)
		require.NotNil(t, resp)
		assert.Equal(t, NoContextAnswer, resp.Answer)
		assert.Empty(t, resp.Sources)
		assert.Equal(t, 0, gen.calls)
	})

	t.Run("Retrieves once per question", func(t *testing.T) {
		emb := &fakeEmbedder{}
		a := NewAgent(NewRetriever(emb, &fakeIndex{matches: sampleMatches()}), &fakeGenerator{answer: "ok"}, 0.5)
		_, err := a.Answer(ctx, "q", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, emb.calls)
	})

	t.Run("Generation failure", func(t *testing.T) {
		gen := &fakeGenerator{err: types.Wrap(types.ErrGeneration, assert.AnError)}
		a := NewAgent(NewRetriever(&fakeEmbedder{}, &fakeIndex{matches: sampleMatches()}), gen, DefaultTemperature)
		resp, err := a.Answer(ctx, "q", 5)
		assert.ErrorIs(t, err, types.ErrGeneration)
		assert.Nil(t, resp)
	})

	t.Run("Empty answer is returned verbatim", func(t *testing.T) {
		a := NewAgent(NewRetriever(&fakeEmbedder{}, &fakeIndex{matches: sampleMatches()}), &fakeGenerator{}, DefaultTemperature)
		resp, err := a.Answer(ctx, "q", 5)
		require.NoError(t, err)
		assert.Equal(t, "", resp.Answer)
	})
}

func TestBuildContext(t *testing.T) {
	got := BuildContext(sampleMatches())
	want := "[0] Title: Refunds\nChunk ID: refunds-chunk-0\nContent:\nRefunds are processed within 14 days." +
		"\n\n---\n\n" +
		"[1] Title: Billing\nChunk ID: billing-chunk-2\nContent:\nBilling happens monthly."
	assert.Equal(t, want, got)

	got = BuildContext([]types.Match{{ID: "bare"}})
	assert.Equal(t, "[0] Title: \nChunk ID: bare\nContent:\n", got)
}

func TestBuildMessages(t *testing.T) {
	msgs := BuildMessages("Where?", "ctx")
	assert.Equal(t, []types.Message{
		{Role: types.RoleSystem, Content: SystemPrompt},
		{Role: types.RoleUser, Content: "Context:\nctx\n\nQuestion: Where?"},
	}, msgs)
}
