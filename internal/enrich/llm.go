package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nikhilbhutani/newsintel/internal/models"
	"github.com/nikhilbhutani/newsintel/internal/prompt"
)

const (
	// sentimentChars caps the article text sent to the model.
	sentimentChars = 4000

	DefaultLLMTimeout = 30 * time.Second
)

// LLM asks a language model for sentiment and uses the lexicon heuristics for
// entities and topic.
type LLM struct {
	gen     Generator
	lexicon *Lexicon
	timeout time.Duration
}

// NewLLM bounds every model call by timeout; zero or less uses
// DefaultLLMTimeout.
func NewLLM(gen Generator, timeout time.Duration) *LLM {
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLM{gen: gen, lexicon: NewLexicon(), timeout: timeout}
}

func (*LLM) Name() string { return "llm" }

type sentimentReply struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Enrich always returns the lexicon entities and topic. When the model call
// fails or its reply cannot be parsed, sentiment is neutral and the error is
// returned alongside the partial result.
func (e *LLM) Enrich(ctx context.Context, text string) (Enrichment, error) {
	out, err := e.lexicon.Enrich(ctx, text)
	if err != nil {
		return Enrichment{}, err
	}
	out.SentimentScore, out.SentimentLabel = 0, models.SentimentNeutral

	if r := []rune(text); len(r) > sentimentChars {
		text = string(r[:sentimentChars])
	}
	p, err := prompt.Sentiment(text)
	if err != nil {
		return out, fmt.Errorf("build sentiment prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.gen.Generate(ctx, p)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return out, fmt.Errorf("sentiment completion: %w", err)
	}

	reply, err := parseSentiment(raw)
	if err != nil {
		return out, err
	}

	switch reply.Sentiment {
	case models.SentimentPositive:
		out.SentimentScore = reply.Confidence
	case models.SentimentNegative:
		out.SentimentScore = -reply.Confidence
	}
	out.SentimentLabel = reply.Sentiment
	return out, nil
}

// parseSentiment reads the first JSON object in raw, tolerating prose or code
// fences around it.
func parseSentiment(raw string) (sentimentReply, error) {
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return sentimentReply{}, fmt.Errorf("parse sentiment reply: no JSON object in %q", raw)
	}

	var reply sentimentReply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return sentimentReply{}, fmt.Errorf("parse sentiment reply: %w", err)
	}

	reply.Sentiment = strings.ToLower(strings.TrimSpace(reply.Sentiment))
	switch reply.Sentiment {
	case models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral:
	default:
		return sentimentReply{}, fmt.Errorf("parse sentiment reply: unknown label %q", reply.Sentiment)
	}
	reply.Confidence = min(max(reply.Confidence, 0), 1)
	return reply, nil
}
