package prompt

const groundedAnswerTemplate = `You are a news intelligence assistant.

Answer strictly from the retrieved news context below.
If the answer is not present in the context, reply exactly:
"No relevant information found in the available news sources."

Rules:
- Be concise, factual and neutral.
- Do not speculate.
- Cite the sources you used by name.
- Plain text only.

RETRIEVED NEWS CONTEXT:
{{context}}

USER QUERY:
{{query}}

ANSWER:`

const sentimentTemplate = `Analyze the sentiment of the following news article.
Respond with JSON only: {"sentiment": "positive|negative|neutral", "confidence": 0.0-1.0, "reason": "brief explanation"}

ARTICLE:
{{article}}

ANALYSIS:`

// GroundedAnswer builds the answer prompt. It instructs the model to emit the
// not-found sentence when the context is insufficient.
func GroundedAnswer(context, query string) (string, error) {
	return Render(groundedAnswerTemplate, map[string]string{
		"context": context,
		"query":   query,
	})
}

func Sentiment(article string) (string, error) {
	return Render(sentimentTemplate, map[string]string{"article": article})
}
