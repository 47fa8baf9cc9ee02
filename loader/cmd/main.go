package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"helprag/config"
	"helprag/model"
	"helprag/store"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "loader",
	Short:         "Build and query the help center vector index",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// deps holds what every subcommand needs. close releases them in reverse order.
type deps struct {
	cfg      *config.Config
	embedder model.Embedder
	index    store.VectorIndex
}

func loadDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.NewLogger()

	embedder, err := model.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	index, err := store.Open(ctx, cfg)
	if err != nil {
		closeEmbedder(embedder)
		return nil, err
	}
	return &deps{cfg: cfg, embedder: embedder, index: index}, nil
}

func (d *deps) close() {
	if err := d.index.Close(); err != nil {
		log.Printf("error closing vector index: %v", err)
	}
	closeEmbedder(d.embedder)
}

func closeEmbedder(e model.Embedder) {
	if c, ok := e.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("error closing embedder: %v", err)
		}
	}
}
