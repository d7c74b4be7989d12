package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikhilbhutani/newsintel/internal/config"
)

// Completer turns a single prompt into a single completion using fixed
// sampling settings. It is the generation backend for answers and enrichment.
type Completer struct {
	gw          Gateway
	provider    string
	model       string
	temperature float64
	maxTokens   int
	topP        float64
}

func NewCompleter(gw Gateway, cfg config.LLMConfig) *Completer {
	return &Completer{
		gw:          gw,
		provider:    cfg.DefaultProvider,
		model:       cfg.DefaultModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		topP:        cfg.TopP,
	}
}

func (c *Completer) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.gw.Chat(ctx, ChatRequest{
		Provider:    c.provider,
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		TopP:        c.topP,
	})
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}

	slog.Debug("completion generated",
		"provider", resp.Provider,
		"model", resp.Model,
		"tokens", resp.TotalTokens,
		"cost_usd", resp.CostUSD,
		"latency_ms", resp.LatencyMs,
	)
	return strings.TrimSpace(resp.Content), nil
}
