package embedding

import (
	"context"

	"github.com/nikhilbhutani/newsintel/internal/llm"
)

// Service encodes through a remote provider behind the LLM gateway.
type Service struct {
	gateway  llm.Gateway
	provider string
	model    string
	dim      int
}

func NewService(gw llm.Gateway, provider, model string, dim int) *Service {
	return &Service{gateway: gw, provider: provider, model: model, dim: dim}
}

func (s *Service) Name() string   { return s.provider }
func (s *Service) Dimension() int { return s.dim }

func (s *Service) Encode(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs, err := encodeBatches(ctx, texts, batchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Provider: s.provider,
			Model:    s.model,
			Input:    batch,
		})
		if err != nil {
			return nil, err
		}
		return resp.Embeddings, nil
	})
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(vecs, s.dim); err != nil {
		return nil, err
	}
	return vecs, nil
}
