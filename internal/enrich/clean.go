package enrich

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	urlPattern        = regexp.MustCompile(`http\S+|www\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	symbolPattern     = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?-]`)
)

// CleanText strips markup, links and unusual symbols and collapses runs of
// whitespace to a single space.
func CleanText(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = symbolPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Sentences splits text after '.', '!' or '?' followed by whitespace.
func Sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// Summarize picks the n sentences with the highest share of content words and
// returns them in their original order. Text with n sentences or fewer is
// returned unchanged.
func Summarize(text string, n int) string {
	sentences := Sentences(text)
	if len(sentences) <= n {
		return text
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		ranked[i] = scored{index: i, score: contentRatio(s)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	top := ranked[:n]
	slices.SortFunc(top, func(a, b scored) int { return a.index - b.index })

	picked := make([]string, n)
	for i, s := range top {
		picked[i] = sentences[s.index]
	}
	return strings.Join(picked, " ")
}

func contentRatio(sentence string) float64 {
	words := strings.Fields(sentence)
	if len(words) == 0 {
		return 0
	}
	content := 0
	for _, w := range words {
		if !isStopword(normalizeWord(w)) {
			content++
		}
	}
	return float64(content) / float64(len(words))
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

var stopwords = toSet(`a about above after again against all am an and any are as at be because been
before being below between both but by can could did do does doing down during each few for from
further had has have having he her here hers herself him himself his how i if in into is it its
itself just me more most my myself no nor not now of off on once only or other our ours ourselves
out over own said same she should so some such than that the their theirs them themselves then
there these they this those through to too under until up very was we were what when where which
while who whom why will with would you your yours yourself yourselves also new says say year years
mr mrs ms`)

func isStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

func toSet(words string) map[string]struct{} {
	fields := strings.Fields(words)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
