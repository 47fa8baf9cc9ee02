package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"helprag/types"
)

// IsHTMLFile reports whether path names an HTML snapshot.
func IsHTMLFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".html")
}

// LoadDocuments reads every *.html file directly under dir. os.ReadDir sorts
// by filename, which keeps article order stable across runs.
func LoadDocuments(dir string) ([]types.RawDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory %s: %w", dir, err)
	}

	var docs []types.RawDocument
	for _, entry := range entries {
		if entry.IsDir() || !IsHTMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, types.RawDocument{
			ID:         fileStem(path),
			SourcePath: path,
			HTML:       string(data),
			ModTime:    info.ModTime(),
		})
	}

	return docs, nil
}

// ExtractArticles runs ExtractArticle over docs, keeping their order.
func ExtractArticles(docs []types.RawDocument) ([]types.Article, error) {
	articles := make([]types.Article, 0, len(docs))
	for _, doc := range docs {
		art, err := ExtractArticle(doc.HTML, doc.SourcePath)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", doc.SourcePath, err)
		}
		articles = append(articles, art)
	}
	return articles, nil
}
