package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/newsintel/internal/models"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"html", "<p>Markets <b>rally</b></p>", "Markets rally"},
		{"urls", "Read more at https://example.com/x?y=1 or www.example.org today", "Read more at or today"},
		{"whitespace", "  a\n\n\tb   c ", "a b c"},
		{"symbols", "Profit up 5% — CEO says: \"great\" #win", "Profit up 5 CEO says great win"},
		{"keeps punctuation", "Wait, what? Yes! Re-run it.", "Wait, what? Yes! Re-run it."},
		{"keeps accents", "Zürich café", "Zürich café"},
		{"empty", "<br/>  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two!", "Three?", "Maybe"}, Sentences("One. Two!  Three? Maybe"))
	assert.Equal(t, []string{"Rates rose 2.5 percent.", "Stocks fell"}, Sentences("Rates rose 2.5 percent. Stocks fell"))
	assert.Empty(t, Sentences("   "))
}

func TestSummarize(t *testing.T) {
	short := "Only one sentence here."
	assert.Equal(t, short, Summarize(short, 3))

	text := "It is what it is. Central bank lifts benchmark rates sharply. " +
		"Officials cite persistent inflation pressures. And so it was. Markets reacted calmly overall."
	assert.Equal(t,
		"Central bank lifts benchmark rates sharply. Officials cite persistent inflation pressures. Markets reacted calmly overall.",
		Summarize(text, 3))
}

func TestSentiment(t *testing.T) {
	assert.Greater(t, Sentiment("Stocks rally to record gains on strong growth"), 0.05)
	assert.Less(t, Sentiment("Markets crash as recession fears deepen"), -0.05)
	assert.Equal(t, 0.0, Sentiment("The committee met on Tuesday"))
	assert.Less(t, Sentiment("The plan did not succeed and talks did not improve"), 0.0)

	s := Sentiment("gain gain gain gain gain gain gain gain gain gain gain gain")
	assert.Less(t, s, 1.0)

	assert.Equal(t, models.SentimentPositive, SentimentLabel(0.05))
	assert.Equal(t, models.SentimentNegative, SentimentLabel(-0.05))
	assert.Equal(t, models.SentimentNeutral, SentimentLabel(0.04))
}

func TestEntities(t *testing.T) {
	got := Entities("The Federal Reserve Bank met in Washington on Tuesday. President Joe Biden " +
		"spoke at the G20 Summit in 2024 alongside Angela Merkel and New York officials.")

	assert.Equal(t, []string{"Federal Reserve Bank"}, got["ORG"])
	assert.ElementsMatch(t, []string{"Washington", "New York"}, got["GPE"])
	assert.ElementsMatch(t, []string{"Tuesday", "2024"}, got["DATE"])
	assert.Equal(t, []string{"G20 Summit"}, got["EVENT"])
	assert.ElementsMatch(t, []string{"Joe Biden", "Angela Merkel"}, got["PERSON"])
}

func TestEntities_Empty(t *testing.T) {
	assert.Empty(t, Entities("nothing capitalised here at all"))
}

func TestMainTopic(t *testing.T) {
	assert.Equal(t, "inflation", MainTopic("Inflation worries grow. Inflation data due. Markets eye inflation."))
	assert.Equal(t, "General", MainTopic("it is what it is"))
	assert.Equal(t, "alpha", MainTopic("alpha bravo"), "ties go to the first word")
}

type stubGenerator struct {
	reply string
	err   error
}

func (g stubGenerator) Generate(context.Context, string) (string, error) { return g.reply, g.err }

func TestLLM_Enrich(t *testing.T) {
	e := NewLLM(stubGenerator{reply: "```json\n{\"sentiment\": \"Negative\", \"confidence\": 0.7, \"reason\": \"layoffs\"}\n```"}, 0)

	out, err := e.Enrich(context.Background(), "Acme Corp announced layoffs in Texas.")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, out.SentimentLabel)
	assert.InDelta(t, -0.7, out.SentimentScore, 1e-9)
	assert.Equal(t, []string{"Acme Corp"}, out.Entities["ORG"])
}

func TestLLM_FailuresKeepPartialResult(t *testing.T) {
	tests := []struct {
		name string
		gen  stubGenerator
	}{
		{"generator error", stubGenerator{err: errors.New("rate limited")}},
		{"not json", stubGenerator{reply: "I think it is positive"}},
		{"unknown label", stubGenerator{reply: `{"sentiment": "mixed", "confidence": 0.5}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewLLM(tt.gen, 0).Enrich(context.Background(), "Inflation inflation report")
			assert.Error(t, err)
			assert.Equal(t, models.SentimentNeutral, out.SentimentLabel)
			assert.Equal(t, "inflation", out.MainTopic)
		})
	}
}

type slowGenerator struct{}

func (slowGenerator) Generate(ctx context.Context, _ string) (string, error) {
	select {
	case <-time.After(5 * time.Second):
		return `{"sentiment": "positive", "confidence": 1}`, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestLLM_EnrichTimesOut(t *testing.T) {
	start := time.Now()
	out, err := NewLLM(slowGenerator{}, 20*time.Millisecond).Enrich(context.Background(), "Inflation inflation report")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.SentimentNeutral, out.SentimentLabel)
	assert.Equal(t, "inflation", out.MainTopic)
}

func TestNew(t *testing.T) {
	for kind, want := range map[string]string{"disabled": "disabled", "lexicon": "lexicon", "llm": "llm"} {
		e, err := New(kind, stubGenerator{}, 0)
		require.NoError(t, err)
		assert.Equal(t, want, e.Name())
	}

	_, err := New("llm", nil, 0)
	assert.Error(t, err)
	_, err = New("spacy", nil, 0)
	assert.Error(t, err)

	out, err := Disabled{}.Enrich(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, Enrichment{}, out)
}
