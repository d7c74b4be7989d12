package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TypeIngestRun = "ingest:run"

// IngestRunPayload names the registered source an ingestion run loads from.
type IngestRunPayload struct {
	Source string `json:"source"`
}

func NewIngestTask(sourceName string) (*asynq.Task, error) {
	if sourceName == "" {
		return nil, fmt.Errorf("ingest task: source name required")
	}
	data, err := json.Marshal(IngestRunPayload{Source: sourceName})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeIngestRun, data), nil
}

func ParseIngestPayload(t *asynq.Task) (IngestRunPayload, error) {
	var p IngestRunPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.Source == "" {
		return p, fmt.Errorf("payload has no source")
	}
	return p, nil
}
