package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"helprag/app/agent"
	"helprag/config"
	"helprag/store"
	"helprag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constEmbedder struct{ vec []float32 }

func (e constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vec
	}
	return out, nil
}

type echoGenerator struct{ calls int }

func (g *echoGenerator) Generate(_ context.Context, messages []types.Message, _ float64) (string, error) {
	g.calls++
	return "answer from " + messages[0].Role, nil
}

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore, *echoGenerator) {
	t.Helper()
	cfg := config.Default()
	cfg.Index.Backend = config.BackendSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "index.db")

	index, err := store.NewSQLiteStore(cfg.SQLite.Path, cfg.Index.Name)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	gen := &echoGenerator{}
	a := agent.NewAgent(agent.NewRetriever(constEmbedder{vec: []float32{1, 0}}, index), gen, cfg.LLM.Temperature)
	return New(cfg, a, index), index, gen
}

func postQuestion(t *testing.T, app *fiber.App, body string) (int, map[string]any, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/ask_question", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out, resp.Header.Get(fiber.HeaderXRequestID)
}

func TestServer(t *testing.T) {
	t.Run("Empty index answers 404", func(t *testing.T) {
		s, _, gen := newTestServer(t)
		code, body, requestID := postQuestion(t, s.App(), `{"query":"How do I cancel?"}`)
		assert.Equal(t, fiber.StatusNotFound, code)
		assert.Equal(t, types.ErrNoMatches.Error(), body["error"])
		assert.NotEmpty(t, requestID)
		assert.Equal(t, 0, gen.calls)
	})

	t.Run("Answers from indexed chunks", func(t *testing.T) {
		s, index, gen := newTestServer(t)
		ctx := context.Background()
		require.NoError(t, index.EnsureExists(ctx, types.IndexSpec{Name: "typeform-helpcenter", Dimension: 2, Metric: types.MetricCosine}))
		require.NoError(t, index.Upsert(ctx, []types.Vector{
			{ID: "cancel-chunk-0", Values: []float32{1, 0}, Metadata: map[string]any{
				types.MetaText: "Go to Billing and press Cancel.", types.MetaTitle: "Cancel", types.MetaChunkIndex: 0,
			}},
		}))

		code, body, _ := postQuestion(t, s.App(), `{"query":"How do I cancel?","top_k":1}`)
		assert.Equal(t, fiber.StatusOK, code)
		assert.Equal(t, "answer from system", body["answer"])
		sources := body["sources"].([]any)
		require.Len(t, sources, 1)
		assert.Equal(t, "cancel-chunk-0", sources[0].(map[string]any)["id"])
		assert.Equal(t, 1, gen.calls)
	})

	t.Run("Request id is echoed", func(t *testing.T) {
		s, _, _ := newTestServer(t)
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set(fiber.HeaderXRequestID, "req-123")
		resp, err := s.App().Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "req-123", resp.Header.Get(fiber.HeaderXRequestID))
	})
}
