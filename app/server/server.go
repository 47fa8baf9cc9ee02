package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"helprag/app/agent"
	"helprag/app/api"
	"helprag/app/middleware"
	"helprag/config"
	"helprag/model"
	"helprag/store"

	"github.com/gofiber/fiber/v2"
)

type Server struct {
	cfg    *config.Config
	app    *fiber.App
	index  store.VectorIndex
	closer io.Closer // embedder resources, may be nil
	logger *slog.Logger
}

// NewServer wires the embedder, generator and vector index from cfg.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	base, err := model.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	embedder, err := model.NewCachedEmbedder(base, cfg.Embedding.CacheSize)
	if err != nil {
		return nil, err
	}

	generator, err := model.NewGenerator(cfg)
	if err != nil {
		return nil, err
	}

	index, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	a := agent.NewAgent(agent.NewRetriever(embedder, index), generator, cfg.LLM.Temperature)
	s := New(cfg, a, index)
	if c, ok := base.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// New builds the HTTP app around an already wired answerer and index.
func New(cfg *config.Config, answerer api.Answerer, index store.VectorIndex) *Server {
	s := &Server{
		cfg:    cfg,
		index:  index,
		logger: slog.Default(),
	}

	var (
		app            = fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler, DisableStartupMessage: true})
		checkHandler   = api.NewCheckHandler(index)
		requestHandler = api.NewRequestHandler(answerer)
	)
	app.Use(middleware.RequestLogger(s.logger))

	app.Get("/health", checkHandler.HandleHealth)
	app.Post("/ask_question", requestHandler.HandleAskQuestion)

	s.app = app
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run blocks serving HTTP until Stop is called or the listener fails.
func (s *Server) Run() error {
	s.logger.Info("server started", "addr", s.cfg.ServerAddr, "index", s.cfg.Index.Name, "backend", s.cfg.Index.Backend)
	if err := s.app.Listen(s.cfg.ServerAddr); err != nil {
		s.logger.Error("error to start server", "error", err.Error())
		return err
	}
	return nil
}

func (s *Server) Stop() {
	if err := s.app.Shutdown(); err != nil {
		s.logger.Error("error to shutdown server", "error", err.Error())
	}
	if err := s.index.Close(); err != nil {
		s.logger.Error("error to close vector index", "error", err.Error())
	}
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			s.logger.Error("error to close embedder", "error", err.Error())
		}
	}
	s.logger.Info("server stopped")
}
