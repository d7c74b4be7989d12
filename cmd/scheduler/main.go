package main

import (
	"log/slog"
	"os"

	"github.com/nikhilbhutani/newsintel/internal/config"
	"github.com/nikhilbhutani/newsintel/internal/queue"
	"github.com/nikhilbhutani/newsintel/internal/source"
)

// The scheduler only enqueues periodic ingestion runs. The API process
// consumes them because it owns the vector index file.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))
	slog.SetDefault(logger)

	registry, _ := source.FromConfig(cfg.Ingestion)
	sources := registry.Names()
	if len(sources) == 0 {
		slog.Error("nothing to schedule: set NEWSAPI_KEY, RSS_FEEDS or WATCH_DIR")
		os.Exit(1)
	}

	scheduler, err := queue.NewScheduler(queue.RedisOpt(cfg.Redis), cfg.Ingestion.Interval, sources)
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	slog.Info("starting scheduler", "interval", cfg.Ingestion.Interval, "sources", sources)
	if err := scheduler.Run(); err != nil {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}
