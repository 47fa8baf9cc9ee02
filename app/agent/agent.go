package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"helprag/model"
	"helprag/types"

	"github.com/pkoukk/tiktoken-go"
)

const NoContextAnswer = "I couldn't find any relevant information in the current set of help center articles."

const SystemPrompt = "You are a helpful Typeform support assistant. " +
	"Use ONLY the provided context to answer the user's question. " +
	"If the answer is not in the context, say you don't know."

const DefaultTemperature = 0.1

// Agent answers questions from the chunks the retriever finds.
type Agent struct {
	retriever   *Retriever
	generator   model.Generator
	temperature float64
	logger      *slog.Logger
}

func NewAgent(retriever *Retriever, generator model.Generator, temperature float64) *Agent {
	return &Agent{
		retriever:   retriever,
		generator:   generator,
		temperature: temperature,
		logger:      slog.Default().With("component", "agent"),
	}
}

// Answer retrieves once and asks the generator to answer from those matches.
// With no matches it returns NoContextAnswer together with types.ErrNoMatches
// and the generator is not called.
func (a *Agent) Answer(ctx context.Context, query string, topK int) (*types.ChatResponse, error) {
	start := time.Now()
	defer func() {
		a.logger.Info("answered question", "top_k", topK, "took", time.Since(start))
	}()

	matches, err := a.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &types.ChatResponse{Answer: NoContextAnswer, Sources: []types.Source{}}, types.ErrNoMatches
	}

	messages := BuildMessages(query, BuildContext(matches))
	if a.logger.Enabled(ctx, slog.LevelDebug) {
		if count, err := CountTokens(messages); err == nil {
			a.logger.Debug("prompt size", "tokens", count, "matches", len(matches))
		}
	}

	answer, err := a.generator.Generate(ctx, messages, a.temperature)
	if err != nil {
		return nil, err
	}
	return &types.ChatResponse{
		Answer:  answer,
		Sources: types.NewSources(matches),
	}, nil
}

// BuildContext renders matches as numbered blocks separated by "---".
func BuildContext(matches []types.Match) string {
	parts := make([]string, len(matches))
	for i, m := range matches {
		title, _ := types.MetaString(m.Metadata, types.MetaTitle)
		text, _ := types.MetaString(m.Metadata, types.MetaText)
		parts[i] = fmt.Sprintf("[%d] Title: %s\nChunk ID: %s\nContent:\n%s", i, title, m.ID, text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func BuildMessages(query, context string) []types.Message {
	return []types.Message{
		{Role: types.RoleSystem, Content: SystemPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, query)},
	}
}

// CountTokens estimates the prompt size with the cl100k tokenizer.
func CountTokens(messages []types.Message) (int, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0, err
	}
	var count int
	for _, m := range messages {
		count += len(enc.Encode(m.Content, nil, nil))
	}
	return count, nil
}
