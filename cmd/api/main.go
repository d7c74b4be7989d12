package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/newsintel/internal/api"
	"github.com/nikhilbhutani/newsintel/internal/api/handlers"
	"github.com/nikhilbhutani/newsintel/internal/cache"
	"github.com/nikhilbhutani/newsintel/internal/config"
	"github.com/nikhilbhutani/newsintel/internal/database"
	"github.com/nikhilbhutani/newsintel/internal/document"
	"github.com/nikhilbhutani/newsintel/internal/embedding"
	"github.com/nikhilbhutani/newsintel/internal/enrich"
	"github.com/nikhilbhutani/newsintel/internal/guardrails"
	"github.com/nikhilbhutani/newsintel/internal/ingestion"
	"github.com/nikhilbhutani/newsintel/internal/llm"
	"github.com/nikhilbhutani/newsintel/internal/queue"
	"github.com/nikhilbhutani/newsintel/internal/queue/workers"
	"github.com/nikhilbhutani/newsintel/internal/rag"
	"github.com/nikhilbhutani/newsintel/internal/source"
	"github.com/nikhilbhutani/newsintel/internal/vectorstore"
	"github.com/nikhilbhutani/newsintel/pkg/chunker"
)

const watchQuiet = 2 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store  document.Store = document.NewMemoryStore()
		checks []handlers.Check
	)
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			fatal("database unavailable", err)
		}
		defer db.Close()

		if err := database.RunMigrations(ctx, db); err != nil {
			fatal("migrations failed", err)
		}
		store = document.NewPostgresStore(db)
		checks = append(checks, handlers.Check{Name: "database", Ping: db.Ping})
	} else {
		slog.Warn("DATABASE_URL not set, articles are kept in memory")
	}

	gw := llm.NewGateway(cfg.LLM)
	embedder, err := embedding.New(cfg.Embedding, gw)
	if err != nil {
		fatal("embedding provider", err)
	}

	index, err := vectorstore.Open(cfg.Index.Path, embedder.Dimension())
	if err != nil {
		fatal("open vector index", err)
	}
	slog.Info("vector index loaded", "path", index.Path(), "vectors", index.Len(), "dimension", index.Dimension())
	checks = append(checks, handlers.Check{Name: "index", Ping: func(context.Context) error {
		_, err := os.Stat(filepath.Dir(index.Path()))
		return err
	}})

	completer := llm.NewCompleter(gw, cfg.LLM)
	enricher, err := enrich.New(cfg.Ingestion.Enricher, completer, cfg.RAG.GenerationTimeout)
	if err != nil {
		fatal("enricher", err)
	}

	pipeline, err := ingestion.NewPipeline(store, embedder, index, enricher, ingestion.Options{
		Chunk:       chunker.Options{Size: cfg.RAG.ChunkSize, Overlap: cfg.RAG.ChunkOverlap},
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Ingestion.Concurrency,
	})
	if err != nil {
		fatal("ingestion pipeline", err)
	}

	retriever := rag.NewRetriever(embedder, index, rag.WithOverfetch(cfg.RAG.Overfetch))
	engine := rag.NewEngine(retriever, store, completer, rag.EngineOptions{
		TopK:              cfg.RAG.TopK,
		Threshold:         cfg.RAG.SimilarityThreshold,
		PassageChars:      cfg.RAG.PassageChars,
		GenerationTimeout: cfg.RAG.GenerationTimeout,
	})

	sources, dir := source.FromConfig(cfg.Ingestion)

	svc := api.Services{
		Answerer: engine,
		Searcher: retriever,
		Ingester: pipeline,
		Store:    store,
		Index:    index,
		Embedder: embedder.Name(),
		Sources:  sources,
	}
	switch cfg.RAG.QueryGuard {
	case "heuristic":
		svc.Guard = guardrails.Default(handlers.MaxQueryChars, nil)
	case "llm":
		svc.Guard = guardrails.Default(handlers.MaxQueryChars, completer)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without answer cache and ingestion jobs", "error", err)
	} else {
		answers := cache.NewCache(rdb, cfg.Redis.CacheTTL)
		svc.Cache = answers
		checks = append(checks, handlers.Check{Name: "redis", Ping: answers.Ping})

		jobs := queue.NewClient(cfg.Redis)
		defer jobs.Close()
		svc.Jobs = jobs

		consumer := queue.NewServer(queue.RedisOpt(cfg.Redis), 1)
		registry := queue.NewHandlersRegistry()
		registry.Register(queue.TypeIngestRun, asynq.HandlerFunc(workers.NewIngestWorker(pipeline, sources).ProcessTask))
		if err := consumer.Start(registry.Mux()); err != nil {
			fatal("start ingestion consumer", err)
		}
		defer consumer.Shutdown()
	}
	svc.Checks = checks

	if dir != nil {
		go watchDir(ctx, pipeline, dir, cfg.Ingestion.WatchDir)
	}

	router := api.NewRouter(cfg, svc)
	sweepStop := make(chan struct{})
	defer close(sweepStop)
	go router.SweepVisitors(sweepStop)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "sources", sources.Names())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// watchDir ingests what is already in the directory and then every file
// created or changed afterwards.
func watchDir(ctx context.Context, pipeline *ingestion.Pipeline, dir *source.Dir, path string) {
	if _, err := pipeline.IngestSource(ctx, dir); err != nil {
		slog.Error("initial directory ingestion failed", "dir", path, "error", err)
	}

	err := source.Watch(ctx, path, watchQuiet, func(ctx context.Context, paths []string) {
		docs, err := dir.LoadFiles(ctx, paths)
		if err != nil {
			slog.Error("load changed files", "error", err)
			return
		}
		if len(docs) == 0 {
			return
		}
		if _, err := pipeline.Ingest(ctx, docs); err != nil {
			slog.Error("ingest changed files", "files", len(docs), "error", err)
			return
		}
		dir.Ack(docs)
	})
	if err != nil {
		slog.Error("directory watcher stopped", "dir", path, "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	fmt.Fprintln(os.Stderr, msg+":", err)
	os.Exit(1)
}
