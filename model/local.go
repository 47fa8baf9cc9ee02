package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"helprag/types"

	"github.com/knights-analytics/hugot"
)

// LocalEmbedder runs a sentence-transformers ONNX model in process with the
// hugot pure Go backend. No network access is needed after the model download.
type LocalEmbedder struct {
	session *hugot.Session
	run     func(texts []string) ([][]float32, error)
}

// NewLocalEmbedder downloads modelName into modelDir on first use and loads it.
func NewLocalEmbedder(modelName, modelDir string) (*LocalEmbedder, error) {
	modelPath, err := prepareModel(modelName, modelDir)
	if err != nil {
		return nil, types.Wrap(types.ErrEmbedding, err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("failed to create hugot session: %w", err))
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr))
		}
		return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("failed to create embedding pipeline: %w", err))
	}

	run := func(texts []string) ([][]float32, error) {
		result, err := pipeline.RunPipeline(texts)
		if err != nil {
			return nil, err
		}
		return result.Embeddings, nil
	}
	return &LocalEmbedder{session: session, run: run}, nil
}

func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	embeddings, err := e.run(texts)
	if err != nil {
		return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("failed to generate embeddings: %w", err))
	}
	if len(embeddings) != len(texts) {
		return nil, types.Wrap(types.ErrEmbedding, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings)))
	}
	return embeddings, nil
}

func (e *LocalEmbedder) Close() error {
	return e.session.Destroy()
}

// prepareModel returns the local path of modelName, downloading it if needed.
func prepareModel(modelName, modelDir string) (string, error) {
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = "onnx/model.onnx"
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return downloadedPath, nil
}
