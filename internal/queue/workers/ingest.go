package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/newsintel/internal/ingestion"
	"github.com/nikhilbhutani/newsintel/internal/queue"
	"github.com/nikhilbhutani/newsintel/internal/source"
)

type Ingester interface {
	IngestSource(ctx context.Context, src source.Source) (*ingestion.Report, error)
}

type IngestWorker struct {
	pipeline Ingester
	sources  *source.Registry
}

func NewIngestWorker(pipeline Ingester, sources *source.Registry) *IngestWorker {
	return &IngestWorker{pipeline: pipeline, sources: sources}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseIngestPayload(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	src, err := w.sources.Get(payload.Source)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	slog.Info("running ingestion task", "source", src.Name())
	report, err := w.pipeline.IngestSource(ctx, src)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", src.Name(), err)
	}

	slog.Info("ingestion task finished",
		"source", src.Name(),
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"faults", len(report.Faults),
	)
	return nil
}
