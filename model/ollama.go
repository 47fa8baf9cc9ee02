package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"helprag/types"
)

// OllamaEmbedder creates embeddings through a local Ollama server.
// Ollama embeds one prompt per request, so batches are sent sequentially.
type OllamaEmbedder struct {
	apiURL string
	model  string
	client *http.Client
}

type OllamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type OllamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewOllamaEmbedder(apiURL, model string) *OllamaEmbedder {
	return &OllamaEmbedder{
		apiURL: apiURL,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, types.Wrap(types.ErrEmbedding, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	var ollamaResp OllamaEmbeddingResponse
	err := postJSON(ctx, e.client, e.apiURL, OllamaEmbeddingRequest{Model: e.model, Prompt: text}, func(body []byte) error {
		return json.Unmarshal(body, &ollamaResp)
	})
	if err != nil {
		return nil, err
	}
	if len(ollamaResp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return toFloat32(normalize64(ollamaResp.Embedding)), nil
}

// normalize64 scales vec to unit length in place.
func normalize64(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, x := range vec {
		vec[i] = x / norm
	}
	return vec
}

// OllamaGenerator calls Ollama's /api/generate endpoint. System messages are
// sent as the system prompt and the rest are joined into the prompt.
type OllamaGenerator struct {
	url    string
	model  string
	client *http.Client
}

type GenerateRequest struct {
	Model   string          `json:"model"`
	System  string          `json:"system,omitempty"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

type GenerateOptions struct {
	Temperature float64 `json:"temperature"`
}

type GenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func NewOllamaGenerator(url, model string) *OllamaGenerator {
	return &OllamaGenerator{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (g *OllamaGenerator) Generate(ctx context.Context, messages []types.Message, temperature float64) (string, error) {
	req := GenerateRequest{
		Model:   g.model,
		Options: GenerateOptions{Temperature: temperature},
	}
	var system, prompt []string
	for _, m := range messages {
		if m.Role == types.RoleSystem {
			system = append(system, m.Content)
		} else {
			prompt = append(prompt, m.Content)
		}
	}
	req.System = strings.Join(system, "\n\n")
	req.Prompt = strings.Join(prompt, "\n\n")

	var output string
	err := postJSON(ctx, g.client, g.url, req, func(body []byte) error {
		var genResp GenerateResponse
		if err := json.Unmarshal(body, &genResp); err == nil {
			output = genResp.Response
			return nil
		}

		// Streamed answer: one JSON object per line.
		var b strings.Builder
		decoder := json.NewDecoder(bytes.NewReader(body))
		for decoder.More() {
			var chunk GenerateResponse
			if err := decoder.Decode(&chunk); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			b.WriteString(chunk.Response)
			if chunk.Done {
				break
			}
		}
		output = b.String()
		return nil
	})
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, err)
	}
	return output, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, decode func([]byte) error) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	if err := decode(respBody); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
