package enrich

import (
	"context"
	"fmt"
	"time"
)

// Enrichment is the derived metadata attached to an article.
type Enrichment struct {
	SentimentScore float64             `json:"sentiment_score"`
	SentimentLabel string              `json:"sentiment_label,omitempty"`
	Entities       map[string][]string `json:"entities,omitempty"`
	MainTopic      string              `json:"main_topic,omitempty"`
}

type Enricher interface {
	Enrich(ctx context.Context, text string) (Enrichment, error)
	Name() string
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled returns empty enrichment for every text.
type Disabled struct{}

func (Disabled) Name() string { return "disabled" }

func (Disabled) Enrich(context.Context, string) (Enrichment, error) {
	return Enrichment{}, nil
}

// New builds the enricher named by kind. gen and timeout are only used by
// "llm".
func New(kind string, gen Generator, timeout time.Duration) (Enricher, error) {
	switch kind {
	case "disabled", "":
		return Disabled{}, nil
	case "lexicon":
		return NewLexicon(), nil
	case "llm":
		if gen == nil {
			return nil, fmt.Errorf("llm enricher needs a generator")
		}
		return NewLLM(gen, timeout), nil
	default:
		return nil, fmt.Errorf("unknown enricher %q", kind)
	}
}
