package enrich

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/nikhilbhutani/newsintel/internal/models"
)

const (
	// sentimentCutoff separates neutral from positive and negative scores.
	sentimentCutoff = 0.05
	// normalizeAlpha bounds the summed word scores to (-1, 1).
	normalizeAlpha = 15.0
	// entityWindow caps how much of an article is scanned for entities.
	entityWindow = 1000
	defaultTopic = "General"
)

var (
	positiveWords = weighted(2, `gain gains growth grow grows improve improved improves record strong
surge surged rally rallied win wins won success successful boost boosted rise recovery optimistic
profit profits benefit benefits breakthrough celebrate celebrated agreement peace approve approved
advance advanced expand expanded innovative best good great positive`)
	negativeWords = weighted(-2, `loss losses decline declined drop dropped fall fell crash crashed
crisis fear fears weak slump slumped war attack attacked killed death deaths dead injured conflict
protest protests fraud scandal lawsuit recession inflation layoffs cut cuts warning threat threatens
collapse collapsed fail failed failure bad worst negative concern concerns risk`)
	negations = toSet(`not no never without hardly`)

	orgSuffixes = toSet(`inc corp corporation company co ltd llc group bank bureau ministry agency
association university council committee commission fund reserve party union institute authority
department court parliament congress senate`)
	eventWords = toSet(`summit olympics election elections cup championship conference war festival
games forum crisis`)
	personTitles = toSet(`mr mrs ms dr president minister senator governor chancellor prime ceo
secretary judge king queen pope`)
	places = toSet(`us usa america europe asia africa china japan india russia ukraine germany france
britain uk canada mexico brazil australia israel iran gaza london paris berlin tokyo beijing moscow
washington york california texas brussels kyiv delhi unitedstates unitedkingdom newyork
southkorea northkorea hongkong`)
	// leadIns never start a capitalised span
	leadIns = toSet(`the a an this that these those it its he she they we i in on at for but and or of to as by
after before when while if`)
	dateWords = toSet(`january february march april may june july august september october november
december monday tuesday wednesday thursday friday saturday sunday today yesterday tomorrow`)

	yearPattern = regexp.MustCompile(`^(19|20)\d{2}$`)
)

// Lexicon is a local enricher built on word lists and capitalisation.
type Lexicon struct{}

func NewLexicon() *Lexicon { return &Lexicon{} }

func (*Lexicon) Name() string { return "lexicon" }

func (l *Lexicon) Enrich(ctx context.Context, text string) (Enrichment, error) {
	if err := ctx.Err(); err != nil {
		return Enrichment{}, err
	}
	score := Sentiment(text)
	return Enrichment{
		SentimentScore: score,
		SentimentLabel: SentimentLabel(score),
		Entities:       Entities(text),
		MainTopic:      MainTopic(text),
	}, nil
}

// Sentiment scores text in (-1, 1). A negation word flips the next scored
// word.
func Sentiment(text string) float64 {
	var sum float64
	negate := false
	for _, raw := range strings.Fields(text) {
		w := normalizeWord(raw)
		if _, ok := negations[w]; ok {
			negate = true
			continue
		}
		v, ok := positiveWords[w]
		if !ok {
			v, ok = negativeWords[w]
		}
		if ok {
			if negate {
				v = -v
			}
			sum += v
		}
		negate = false
	}
	if sum == 0 {
		return 0
	}
	return sum / math.Sqrt(sum*sum+normalizeAlpha)
}

func SentimentLabel(score float64) string {
	switch {
	case score >= sentimentCutoff:
		return models.SentimentPositive
	case score <= -sentimentCutoff:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// Entities groups capitalised spans into PERSON, ORG, GPE, DATE and EVENT.
// Categories with no entries are omitted.
func Entities(text string) map[string][]string {
	if r := []rune(text); len(r) > entityWindow {
		text = string(r[:entityWindow])
	}

	found := make(map[string][]string)
	seen := make(map[string]bool)
	addEntity := func(kind, value string) {
		key := kind + "\x00" + value
		if !seen[key] {
			seen[key] = true
			found[kind] = append(found[kind], value)
		}
	}

	for _, span := range capitalisedSpans(text) {
		words := strings.Fields(span)
		first := normalizeWord(words[0])
		last := normalizeWord(words[len(words)-1])

		switch {
		case len(words) == 1 && yearPattern.MatchString(words[0]):
			addEntity("DATE", words[0])
		case contains(dateWords, words):
			addEntity("DATE", span)
		case contains(eventWords, words):
			addEntity("EVENT", span)
		case has(orgSuffixes, last):
			addEntity("ORG", span)
		case has(places, strings.ReplaceAll(strings.ToLower(span), " ", "")) || (len(words) == 1 && has(places, first)):
			addEntity("GPE", span)
		case has(personTitles, first) && len(words) > 1:
			addEntity("PERSON", strings.Join(words[1:], " "))
		case len(words) >= 2 && len(words) <= 3:
			addEntity("PERSON", span)
		}
	}
	return found
}

// capitalisedSpans returns runs of capitalised words, and years on their own.
// Sentence-initial function words such as "The" do not start a span.
func capitalisedSpans(text string) []string {
	var spans []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			spans = append(spans, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, raw := range strings.Fields(text) {
		word := strings.TrimFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		endsClause := strings.ContainsAny(raw[len(raw)-1:], ".,;:!?")

		switch {
		case word == "":
			flush()
		case yearPattern.MatchString(word):
			flush()
			spans = append(spans, word)
		case isCapitalised(word) && !(len(cur) == 0 && has(leadIns, strings.ToLower(word))):
			cur = append(cur, word)
		default:
			flush()
		}
		if endsClause {
			flush()
		}
	}
	flush()
	return spans
}

func isCapitalised(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

// MainTopic returns the most frequent content word of four or more letters,
// or "General" when there is none. Ties go to the earliest word.
func MainTopic(text string) string {
	counts := make(map[string]int)
	var order []string
	for _, raw := range strings.Fields(text) {
		w := normalizeWord(raw)
		if len([]rune(w)) < 4 || isStopword(w) || yearPattern.MatchString(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	best := ""
	for _, w := range order {
		if counts[w] > counts[best] {
			best = w
		}
	}
	if best == "" {
		return defaultTopic
	}
	return best
}

func weighted(weight float64, words string) map[string]float64 {
	out := make(map[string]float64)
	for w := range toSet(words) {
		out[w] = weight
	}
	return out
}

func has(set map[string]struct{}, w string) bool {
	_, ok := set[w]
	return ok
}

func contains(set map[string]struct{}, words []string) bool {
	for _, w := range words {
		if has(set, normalizeWord(w)) {
			return true
		}
	}
	return false
}
