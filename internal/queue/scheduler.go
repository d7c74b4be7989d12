package queue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// NewScheduler registers one periodic ingestion task per source.
func NewScheduler(opt asynq.RedisClientOpt, interval time.Duration, sources []string) (*asynq.Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", interval)
	}
	s := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		LogLevel: asynq.WarnLevel,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				slog.Error("scheduled ingestion not enqueued", "error", err)
				return
			}
			slog.Info("scheduled ingestion enqueued", "task_id", info.ID)
		},
	})

	spec := "@every " + interval.String()
	for _, name := range sources {
		task, err := NewIngestTask(name)
		if err != nil {
			return nil, err
		}
		id, err := s.Register(spec, task, ingestOptions()...)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		slog.Info("registered periodic ingestion", "source", name, "every", interval, "entry_id", id)
	}
	return s, nil
}
