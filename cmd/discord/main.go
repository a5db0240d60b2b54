// cmd/discord/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"discordllmbot/internal/ai"
	"discordllmbot/internal/config"
	"discordllmbot/internal/discord"
	"discordllmbot/internal/storage"
)

func main() {
	log.Println("[INFO] Starting discordllmbot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()

	store, err := storage.New(cfg.StoragePath, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	provider, err := ai.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if models, err := provider.ListModels(ctx); err != nil {
		log.Printf("[WARN] model listing failed: %v", err)
	} else if len(models) > 0 {
		log.Printf("[INFO] provider=%s models available: %d", cfg.AIProvider, len(models))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := discord.StartBot(ctx, cfg, store, provider); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...\n", s)
		cancel()
	case err := <-errCh:
		if err != nil {
			log.Println("[ERR] Discord bot error:", err)
		}
		cancel()
	case <-ctx.Done():
	}

	log.Println("[INFO] Discord bot exited cleanly")
}
