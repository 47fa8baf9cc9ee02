package model

import (
	"context"
	"errors"
	"fmt"

	"helprag/types"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint, one request per batch.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, model string, opts ...option.RequestOption) *OpenAIEmbedder {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: e.model,
	})
	if err != nil {
		return nil, types.Wrap(types.ErrEmbedding, err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("embedding index %d out of range", d.Index))
		}
		out[d.Index] = toFloat32(d.Embedding)
	}
	for i, v := range out {
		if v == nil {
			return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("no embedding returned for input %d", i))
		}
	}
	return out, nil
}

// OpenAIGenerator produces single-shot chat completions.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, messages []types.Message, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openai.Float(temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case types.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case types.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", types.Wrap(types.ErrGeneration, errors.New("completion returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}
