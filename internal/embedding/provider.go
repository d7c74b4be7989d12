package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilbhutani/newsintel/internal/config"
	"github.com/nikhilbhutani/newsintel/internal/llm"
)

// ErrEmbeddingFailure wraps every encoding failure: provider unavailable,
// wrong vector count or wrong dimension.
var ErrEmbeddingFailure = errors.New("embedding failure")

// Provider maps texts to fixed-dimension vectors. Output order matches input
// order and a call either returns every vector or an error.
type Provider interface {
	Encode(ctx context.Context, texts []string, batchSize int) ([][]float32, error)
	Dimension() int
	Name() string
}

// New builds the provider named by cfg.Provider. gw may be nil for "hash".
func New(cfg config.EmbeddingConfig, gw llm.Gateway) (Provider, error) {
	switch cfg.Provider {
	case "hash", "":
		return NewHashingProvider(cfg.Dimension)
	case "openai", "ollama":
		if gw == nil {
			return nil, fmt.Errorf("embedding provider %q needs an LLM gateway", cfg.Provider)
		}
		return NewService(gw, cfg.Provider, cfg.Model, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func encodeBatches(ctx context.Context, texts []string, batchSize int, encode func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		vecs, err := encode(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch at %d: %v", ErrEmbeddingFailure, start, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: batch at %d returned %d vectors for %d texts", ErrEmbeddingFailure, start, len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func checkDimensions(vecs [][]float32, dim int) error {
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrEmbeddingFailure, i, len(v), dim)
		}
	}
	return nil
}
