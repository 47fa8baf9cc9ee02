package types

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const DefaultTopK = 5

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

// AskParams is the body of POST /ask_question.
type AskParams struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k" validate:"gte=1,lte=100"`
}

// NewAskParams returns params with the defaults applied before body parsing.
func NewAskParams() AskParams {
	return AskParams{TopK: DefaultTopK}
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *AskParams) Validate() map[string]string {
	if err := validate.Struct(params); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"body": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Source is the API projection of a Match.
type Source struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
	ArticleID  *string `json:"article_id,omitempty"`
	Title      *string `json:"title,omitempty"`
	URL        *string `json:"url,omitempty"`
	ChunkIndex *int    `json:"chunk_index,omitempty"`
}

func NewSource(m Match) Source {
	text, _ := MetaString(m.Metadata, MetaText)
	src := Source{
		ID:    m.ID,
		Score: m.Score,
		Text:  text,
	}
	if v, ok := MetaString(m.Metadata, MetaArticleID); ok {
		src.ArticleID = &v
	}
	if v, ok := MetaString(m.Metadata, MetaTitle); ok {
		src.Title = &v
	}
	if v, ok := MetaString(m.Metadata, MetaURL); ok {
		src.URL = &v
	}
	if v, ok := MetaInt(m.Metadata, MetaChunkIndex); ok {
		src.ChunkIndex = &v
	}
	return src
}

func NewSources(matches []Match) []Source {
	sources := make([]Source, len(matches))
	for i, m := range matches {
		sources[i] = NewSource(m)
	}
	return sources
}

func MetaString(md map[string]any, key string) (string, bool) {
	v, ok := md[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// MetaInt reads an integer that may have gone through a JSON round trip.
func MetaInt(md map[string]any, key string) (int, bool) {
	switch v := md[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}
