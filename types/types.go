package types

import "time"

// Article is one help-center page after extraction.
type Article struct {
	ID       string
	Title    string
	Content  string // plain text with markdown heading markers
	Metadata map[string]string
}

// Chunk is a window of an article's content, the unit stored in the index.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// EmbeddedChunk is a chunk with its embedding attached.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32
}

// Vector is the record written to the vector index.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Match is one nearest-neighbour hit. Higher Score means more relevant.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricEuclidean  Metric = "euclidean"
	MetricDotProduct Metric = "dotproduct"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricEuclidean, MetricDotProduct:
		return true
	}
	return false
}

// IndexSpec describes the vector index created on first ingestion.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// Message is one entry of a chat prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// RawDocument is an HTML snapshot read from the source directory.
type RawDocument struct {
	ID         string // filename stem
	SourcePath string
	HTML       string
	ModTime    time.Time
}

// Metadata keys shared by the loader and the query path.
const (
	MetaText       = "text"
	MetaArticleID  = "article_id"
	MetaTitle      = "title"
	MetaURL        = "url"
	MetaChunkIndex = "chunk_index"
	MetaSource     = "source"
	MetaSourcePath = "source_path"
)
