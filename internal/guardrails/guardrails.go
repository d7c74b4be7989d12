package guardrails

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Result holds the outcome of a safety check on a user query.
type Result struct {
	Allowed bool               `json:"allowed"`
	Flags   []string           `json:"flags,omitempty"`
	Scores  map[string]float64 `json:"scores,omitempty"`
	Reason  string             `json:"reason,omitempty"`
}

// Guardrail is a check applied to a query before it reaches retrieval or
// generation.
type Guardrail interface {
	Check(ctx context.Context, text string) (*Result, error)
	Name() string
}

// Pipeline chains guardrails. The first failing guard decides the reason but
// every guard still runs so flags accumulate.
type Pipeline struct {
	guards []Guardrail
}

func NewPipeline(guards ...Guardrail) *Pipeline {
	return &Pipeline{guards: guards}
}

func (p *Pipeline) Add(g Guardrail) {
	p.guards = append(p.guards, g)
}

func (p *Pipeline) Check(ctx context.Context, text string) (*Result, error) {
	combined := &Result{
		Allowed: true,
		Scores:  make(map[string]float64),
	}

	for _, g := range p.guards {
		result, err := g.Check(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("guardrail %s: %w", g.Name(), err)
		}
		if !result.Allowed && combined.Allowed {
			combined.Allowed = false
			combined.Reason = fmt.Sprintf("blocked by %s: %s", g.Name(), result.Reason)
		}
		combined.Flags = append(combined.Flags, result.Flags...)
		for k, v := range result.Scores {
			combined.Scores[k] = v
		}
	}

	return combined, nil
}

// Default builds the query pipeline used by the API. classifier may be nil,
// in which case only the heuristic checks run.
func Default(maxChars int, classifier Classifier) *Pipeline {
	return NewPipeline(
		NewLengthGuard(maxChars),
		NewPromptInjectionDetector(classifier),
	)
}

// LengthGuard rejects queries longer than a fixed number of characters.
type LengthGuard struct {
	maxChars int
}

func NewLengthGuard(maxChars int) *LengthGuard {
	return &LengthGuard{maxChars: maxChars}
}

func (g *LengthGuard) Name() string { return "query_length" }

func (g *LengthGuard) Check(_ context.Context, text string) (*Result, error) {
	if utf8.RuneCountInString(text) > g.maxChars {
		return &Result{
			Allowed: false,
			Reason:  fmt.Sprintf("query exceeds %d characters", g.maxChars),
			Flags:   []string{"query_too_long"},
		}, nil
	}
	return &Result{Allowed: true}, nil
}
