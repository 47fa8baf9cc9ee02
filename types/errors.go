package types

import (
	"errors"
	"fmt"
)

// Error kinds returned by the core. Callers match them with errors.Is and map
// them to transport-level responses.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrExtraction        = errors.New("extraction error")
	ErrEmbedding         = errors.New("embedding service error")
	ErrIndex             = errors.New("index service error")
	ErrGeneration        = errors.New("generation service error")
	ErrNoMatches         = errors.New("no relevant context found in the knowledge base")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidTopK       = errors.New("top_k must be a positive integer")
)

// Wrap tags err with kind so that both survive errors.Is.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
