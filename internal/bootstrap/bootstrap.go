package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/lanewise/kbengine/internal/config"
	"github.com/lanewise/kbengine/internal/core/domain"
	"github.com/lanewise/kbengine/internal/core/ports"
	"github.com/lanewise/kbengine/internal/core/usecase"
	"github.com/lanewise/kbengine/internal/infrastructure/chunking"
	"github.com/lanewise/kbengine/internal/infrastructure/extractor"
	"github.com/lanewise/kbengine/internal/infrastructure/index/lexical"
	"github.com/lanewise/kbengine/internal/infrastructure/llm/ollama"
	"github.com/lanewise/kbengine/internal/infrastructure/queue/nats"
	"github.com/lanewise/kbengine/internal/infrastructure/repository/postgres"
	"github.com/lanewise/kbengine/internal/infrastructure/resilience"
	"github.com/lanewise/kbengine/internal/infrastructure/storage/localfs"
	"github.com/lanewise/kbengine/internal/infrastructure/vector/qdrant"
	"github.com/lanewise/kbengine/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Tuning domain.RetrievalTuning

	Queue    ports.MessageQueue
	KBs      ports.KnowledgeBaseRepository
	Docs     ports.DocumentRepository
	Registry *usecase.HandleRegistry

	KBAdminUC ports.KnowledgeBaseManager
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.KnowledgeQueryService

	closeFn func()
}

// Option tweaks optional wiring; the api binary attaches query metrics,
// the worker does not.
type Option func(*settings)

type settings struct {
	queryRecorder usecase.QueryMetricsRecorder
}

func WithQueryRecorder(recorder *metrics.QueryRecorder) Option {
	return func(s *settings) {
		s.queryRecorder = recorder
	}
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var cfgOpts settings
	for _, opt := range opts {
		opt(&cfgOpts)
	}

	tuning, err := config.LoadTuning(cfg.TuningPath)
	if err != nil {
		return nil, fmt.Errorf("load retrieval tuning: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	kbs := postgres.NewKnowledgeBaseRepository(db)
	docs := postgres.NewDocumentRepository(db)
	chunks := postgres.NewChunkRepository(db)
	if err := ensureSchemas(ctx, kbs, docs, chunks); err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSReindexSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(
		cfg.OllamaURL,
		cfg.OllamaGenModel,
		cfg.OllamaEmbedModel,
		ollama.WithRateLimit(cfg.OllamaRateRPS, cfg.OllamaRateBurst),
		ollama.WithExecutor(resilience.NewExecutor(resilience.DefaultConfig())),
	)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	dense := qdrant.New(cfg.QdrantURL, qdrant.WithExecutor(resilience.NewExecutor(resilience.DefaultConfig())))
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(storage)

	registry := usecase.NewHandleRegistry(kbs, chunks, lexical.NewBuilder())

	answerOpts := []usecase.AnswerQueryOption{
		usecase.WithFetchLimit(cfg.QueryTopK),
		usecase.WithStrategyTimeout(cfg.QueryStrategyTimeout),
	}
	if cfg.PromptTemplatePath != "" {
		template, err := os.ReadFile(cfg.PromptTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read prompt template: %w", err)
		}
		answerOpts = append(answerOpts, usecase.WithPromptTemplate(string(template)))
	}
	if cfgOpts.queryRecorder != nil {
		answerOpts = append(answerOpts, usecase.WithQueryMetrics(cfgOpts.queryRecorder))
	}

	kbAdminUC := usecase.NewManageKnowledgeBaseUseCase(kbs, chunks, dense, registry, usecase.WithSourceCleanup(storage))
	ingestUC := usecase.NewIngestDocumentUseCase(kbs, docs, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(kbs, docs, chunks, extract, chunker, embedder, dense, queue)
	queryUC := usecase.NewAnswerQueryUseCase(registry, embedder, dense, generator, tuning, answerOpts...)

	return &App{
		Config: cfg,
		Tuning: tuning,

		Queue:    queue,
		KBs:      kbs,
		Docs:     docs,
		Registry: registry,

		KBAdminUC: kbAdminUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

type schemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

func ensureSchemas(ctx context.Context, ensurers ...schemaEnsurer) error {
	for _, e := range ensurers {
		if err := e.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
