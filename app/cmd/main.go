package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"helprag/app/server"
	"helprag/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error loading configuration: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatal("error to start server: ", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	select {
	case <-ctx.Done():
		log.Println("Received shutdown signal, shutting down server...")
	case err := <-errCh:
		if err != nil {
			log.Println("server exited:", err)
		}
	}
	s.Stop()
}
