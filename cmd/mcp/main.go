package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/lanewise/kbengine/internal/adapters/mcp"
	"github.com/lanewise/kbengine/internal/bootstrap"
	"github.com/lanewise/kbengine/internal/config"
	"github.com/lanewise/kbengine/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// Stdout carries the MCP protocol; logs go to stderr only.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	go func() {
		err := app.Queue.SubscribeCorpusReindexed(ctx, func(_ context.Context, kbID string) error {
			app.Registry.Invalidate(kbID)
			return nil
		})
		if err != nil {
			log.Printf("reindex subscription error: %v", err)
		}
	}()

	srv := mcpadapter.NewServer(app.KBAdminUC, app.QueryUC)
	if err := srv.ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
