package internal

import (
	"fmt"
	"maps"

	"helprag/types"
)

const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
)

// ChunkText splits text into windows of maxChars characters where consecutive
// windows share overlap characters. Boundaries may fall inside words.
// An overlap that would stop the window from advancing is clamped to maxChars/4.
func ChunkText(text string, maxChars, overlap int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	if maxChars <= 0 || n <= maxChars {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars / 4
	}

	var chunks []string
	start := 0
	for start < n {
		end := min(n, start+maxChars)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
		start = end - overlap
	}
	return chunks
}

// Builder turns articles into chunk records with deterministic ids.
type Builder struct {
	ChunkSize    int
	ChunkOverlap int
}

func NewBuilder(chunkSize, overlap int) *Builder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	return &Builder{
		ChunkSize:    chunkSize,
		ChunkOverlap: overlap,
	}
}

// Build emits chunks in article order, then chunk index order, so the same
// corpus always yields the same ids.
func (b *Builder) Build(articles []types.Article) []types.Chunk {
	var chunks []types.Chunk
	for _, art := range articles {
		for i, text := range ChunkText(art.Content, b.ChunkSize, b.ChunkOverlap) {
			md := make(map[string]any, len(art.Metadata)+3)
			for k, v := range art.Metadata {
				md[k] = v
			}
			md[types.MetaArticleID] = art.ID
			md[types.MetaTitle] = art.Title
			md[types.MetaChunkIndex] = i

			chunks = append(chunks, types.Chunk{
				ID:       ChunkID(art.ID, i),
				Text:     text,
				Metadata: md,
			})
		}
	}
	return chunks
}

func ChunkID(articleID string, index int) string {
	return Sanitize(fmt.Sprintf("%s-chunk-%d", articleID, index), ChunkIDMaxLen)
}

// VectorMetadata is the payload stored next to a chunk vector: the chunk text
// plus its metadata.
func VectorMetadata(c types.Chunk) map[string]any {
	md := maps.Clone(c.Metadata)
	if md == nil {
		md = make(map[string]any, 1)
	}
	md[types.MetaText] = c.Text
	return md
}
