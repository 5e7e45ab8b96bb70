package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/lanewise/kbengine/internal/adapters/http"
	"github.com/lanewise/kbengine/internal/bootstrap"
	"github.com/lanewise/kbengine/internal/config"
	"github.com/lanewise/kbengine/internal/observability/logging"
	"github.com/lanewise/kbengine/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverMetrics := metrics.NewHTTPServerMetrics("api")

	app, err := bootstrap.New(ctx, cfg, bootstrap.WithQueryRecorder(serverMetrics.QueryRecorder("api")))
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// Every query node sees corpus changes through reindex events; the
	// cached knowledge handle is dropped and rebuilt on next use. The
	// subscription blocks until shutdown, so it runs alongside the server.
	go func() {
		err := app.Queue.SubscribeCorpusReindexed(ctx, func(_ context.Context, kbID string) error {
			app.Registry.Invalidate(kbID)
			return nil
		})
		if err != nil {
			log.Printf("reindex subscription error: %v", err)
		}
	}()

	router := httpadapter.NewRouter(cfg, app.KBAdminUC, app.IngestUC, app.QueryUC, app.Docs).Handler()

	mux := http.NewServeMux()
	mux.Handle("/metrics", serverMetrics.Handler())
	mux.Handle("/", serverMetrics.Middleware("api", router))

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
