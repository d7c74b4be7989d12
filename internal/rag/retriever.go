package rag

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nikhilbhutani/newsintel/internal/embedding"
	"github.com/nikhilbhutani/newsintel/internal/vectorstore"
)

// DefaultOverfetch is how many more neighbours than top-k are pulled from the
// index before threshold filtering.
const DefaultOverfetch = 2

var (
	ErrRetrieval       = errors.New("retrieval fault")
	ErrInvalidArgument = errors.New("invalid argument")
)

type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeNoResults Outcome = "no_results"
	OutcomeAnswered  Outcome = "answered"
	OutcomeNotFound  Outcome = "not_found"
)

type Hit struct {
	ChunkID  string  `json:"chunk_id"`
	Position int     `json:"position"`
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
}

// Retrieval is either OutcomeFound with at least one hit, or OutcomeNoResults
// with none. Hits are sorted by descending score.
type Retrieval struct {
	Outcome Outcome `json:"status"`
	Hits    []Hit   `json:"results"`
}

func (r *Retrieval) ChunkIDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ChunkID
	}
	return ids
}

type Retriever struct {
	embedder  embedding.Provider
	index     vectorstore.Index
	overfetch int
}

type RetrieverOption func(*Retriever)

func WithOverfetch(n int) RetrieverOption {
	return func(r *Retriever) {
		if n >= 1 {
			r.overfetch = n
		}
	}
}

func NewRetriever(embedder embedding.Provider, index vectorstore.Index, opts ...RetrieverOption) *Retriever {
	r := &Retriever{embedder: embedder, index: index, overfetch: DefaultOverfetch}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns the top-k chunks whose similarity to query is at least
// threshold. Finding nothing is reported as OutcomeNoResults, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float64) (*Retrieval, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	if topK > math.MaxInt/r.overfetch {
		return nil, fmt.Errorf("%w: top_k %d is too large", ErrInvalidArgument, topK)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: threshold must not be negative, got %g", ErrInvalidArgument, threshold)
	}

	vecs, err := r.embedder.Encode(ctx, []string{query}, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %w", ErrRetrieval, err)
	}

	neighbors, err := r.index.Search(vecs[0], topK*r.overfetch)
	if err != nil {
		return nil, fmt.Errorf("%w: search index: %w", ErrRetrieval, err)
	}

	hits := make([]Hit, 0, min(topK, len(neighbors)))
	for _, n := range neighbors {
		score := vectorstore.Similarity(n.Distance)
		if score < threshold {
			continue
		}
		id, err := r.index.Resolve(n.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
		}
		hits = append(hits, Hit{ChunkID: id, Position: n.Position, Distance: n.Distance, Score: score})
		if len(hits) == topK {
			break
		}
	}

	if len(hits) == 0 {
		return &Retrieval{Outcome: OutcomeNoResults, Hits: []Hit{}}, nil
	}
	return &Retrieval{Outcome: OutcomeFound, Hits: hits}, nil
}
