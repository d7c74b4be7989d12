package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/newsintel/internal/models"
	"github.com/nikhilbhutani/newsintel/internal/prompt"
)

const (
	// SentinelPhrase is what the model is told to say when the context does
	// not contain the answer. Matching is case-insensitive.
	SentinelPhrase = "No relevant information found"

	// NotFoundMessage is returned both when retrieval finds nothing and when
	// the model reports the context insufficient.
	NotFoundMessage = "No relevant information found in the available news sources."

	// PlaceholderConfidence is attached to every grounded answer. It is a
	// fixed value, not a calibrated probability.
	PlaceholderConfidence = 0.8

	DefaultPassageChars = 500
)

var ErrGeneration = errors.New("generation fault")

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PassageResolver looks up chunk ids. Unknown ids are left out of the result;
// the order of the known ones is preserved.
type PassageResolver interface {
	ResolveChunks(ctx context.Context, chunkIDs []string) ([]models.Passage, error)
}

type Answer struct {
	Text       string           `json:"answer"`
	Outcome    Outcome          `json:"status"`
	Sources    []string         `json:"sources"`
	Confidence float64          `json:"confidence"`
	Passages   []models.Passage `json:"passages,omitempty"`
	Scores     []float64        `json:"scores,omitempty"`
}

type EngineOptions struct {
	TopK              int
	Threshold         float64
	PassageChars      int
	GenerationTimeout time.Duration
}

type Engine struct {
	retriever *Retriever
	passages  PassageResolver
	generator Generator
	opts      EngineOptions
}

func NewEngine(retriever *Retriever, passages PassageResolver, generator Generator, opts EngineOptions) *Engine {
	if opts.PassageChars <= 0 {
		opts.PassageChars = DefaultPassageChars
	}
	return &Engine{retriever: retriever, passages: passages, generator: generator, opts: opts}
}

// Answer retrieves context for query and asks the generator to answer from
// it. The generator is not called when nothing relevant was retrieved.
func (e *Engine) Answer(ctx context.Context, query string) (*Answer, error) {
	retrieval, err := e.retriever.Retrieve(ctx, query, e.opts.TopK, e.opts.Threshold)
	if err != nil {
		return nil, err
	}
	if retrieval.Outcome == OutcomeNoResults {
		slog.Info("no chunks above threshold", "threshold", e.opts.Threshold)
		return notFound(OutcomeNoResults), nil
	}

	passages, err := e.passages.ResolveChunks(ctx, retrieval.ChunkIDs())
	if err != nil {
		return nil, fmt.Errorf("%w: resolve passages: %w", ErrRetrieval, err)
	}
	if len(passages) == 0 {
		slog.Warn("retrieved chunks have no stored passages", "chunks", len(retrieval.Hits))
		return notFound(OutcomeNoResults), nil
	}

	p, err := prompt.GroundedAnswer(BuildContext(passages, e.opts.PassageChars), query)
	if err != nil {
		return nil, fmt.Errorf("%w: build prompt: %w", ErrGeneration, err)
	}

	text, err := e.generate(ctx, p)
	if err != nil {
		return nil, err
	}

	if strings.Contains(strings.ToLower(text), strings.ToLower(SentinelPhrase)) {
		return notFound(OutcomeNotFound), nil
	}

	scores := make([]float64, len(retrieval.Hits))
	for i, h := range retrieval.Hits {
		scores[i] = h.Score
	}

	return &Answer{
		Text:       text,
		Outcome:    OutcomeAnswered,
		Sources:    retrieval.ChunkIDs(),
		Confidence: PlaceholderConfidence,
		Passages:   passages,
		Scores:     scores,
	}, nil
}

func (e *Engine) generate(ctx context.Context, p string) (string, error) {
	if e.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.GenerationTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := e.generator.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	// results that arrive after the deadline are discarded
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	slog.Debug("answer generated", "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

func notFound(outcome Outcome) *Answer {
	return &Answer{
		Text:       NotFoundMessage,
		Outcome:    outcome,
		Sources:    []string{},
		Confidence: 0,
	}
}

// BuildContext formats passages with their attribution, each cut to at most
// maxChars characters, separated by blank lines.
func BuildContext(passages []models.Passage, maxChars int) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("Source: %s\nTitle: %s\nContent: %s", p.Source, p.Title, truncate(p.Text, maxChars))
	}
	return strings.Join(parts, "\n\n")
}

func truncate(s string, maxChars int) string {
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
