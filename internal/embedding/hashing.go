package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingProvider is a local feature-hashing embedder. Each lowercased token
// and each adjacent token pair is hashed into one of dim buckets with a sign
// taken from a second hash bit; the result is L2-normalised. Texts sharing
// vocabulary land close together, which is enough for offline use and tests.
type HashingProvider struct {
	dim int
}

func NewHashingProvider(dim int) (*HashingProvider, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("hashing embedder: dimension must be positive, got %d", dim)
	}
	return &HashingProvider{dim: dim}, nil
}

func (h *HashingProvider) Name() string   { return "hash" }
func (h *HashingProvider) Dimension() int { return h.dim }

func (h *HashingProvider) Encode(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return encodeBatches(ctx, texts, batchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := make([][]float32, len(batch))
		for i, t := range batch {
			out[i] = h.vector(t)
		}
		return out, nil
	})
}

func (h *HashingProvider) vector(text string) []float32 {
	acc := make([]float64, h.dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(acc, tok, 1)
		if i > 0 {
			h.add(acc, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, h.dim)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func (h *HashingProvider) add(acc []float64, feature string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	bucket := sum % uint64(h.dim)
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
