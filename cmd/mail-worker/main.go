package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/arklim/storefront-iam/internal/infra/app"
	"github.com/arklim/storefront-iam/internal/infra/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	worker, err := app.NewMailWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init mail-worker: %v", err)
	}

	if err := worker.Run(ctx); err != nil {
		log.Printf("mail-worker stopped: %v", err)
		os.Exit(1)
	}
}
