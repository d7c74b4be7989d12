package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/newsintel/internal/config"
)

const (
	ingestMaxRetry = 2
	ingestTimeout  = 15 * time.Minute
)

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(RedisOpt(cfg))}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueIngest schedules an ingestion run for the named source and returns
// the task id.
func (c *Client) EnqueueIngest(ctx context.Context, sourceName string) (string, error) {
	task, err := NewIngestTask(sourceName)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task, ingestOptions()...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", TypeIngestRun, err)
	}
	return info.ID, nil
}

func ingestOptions() []asynq.Option {
	return []asynq.Option{asynq.MaxRetry(ingestMaxRetry), asynq.Timeout(ingestTimeout)}
}
