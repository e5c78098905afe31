package classifier

import (
	"context"
	"strings"
	"unicode"
)

// LexiconClassifier is a deterministic keyword-based classifier with no
// network dependency. It is the default provider so the pipeline works
// without an API key, and doubles as a stable baseline in tests.
type LexiconClassifier struct{}

// NewLexiconClassifier creates the built-in keyword classifier.
func NewLexiconClassifier() *LexiconClassifier {
	return &LexiconClassifier{}
}

func (c *LexiconClassifier) Name() string { return "lexicon" }

var positiveWords = []string{
	"great", "excellent", "amazing", "love", "perfect", "good", "best",
	"wonderful", "fantastic", "helpful", "fast",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "hate", "worst", "poor", "disappointed",
	"horrible", "slow", "useless",
}

var criticalWords = []string{
	"urgent", "emergency", "critical", "immediately", "asap", "broken",
	"not working", "data loss", "outage",
}

var highWords = []string{
	"problem", "issue", "bug", "error", "failed", "wrong", "crash",
}

var topicLexicon = map[string][]string{
	"delivery":    {"delivery", "shipping", "arrived", "late", "courier"},
	"quality":     {"quality", "build", "material", "durable"},
	"price":       {"price", "cost", "expensive", "cheap", "value"},
	"service":     {"service", "support", "help", "customer"},
	"packaging":   {"package", "box", "packaging", "wrapped"},
	"performance": {"performance", "speed", "fast", "slow"},
}

// Classify scores the text against small keyword lexicons. It never fails.
func (c *LexiconClassifier) Classify(_ context.Context, text string) (*Result, error) {
	words := tokenize(text)

	pos := countMatches(words, positiveWords)
	neg := countMatches(words, negativeWords)

	res := &Result{
		Sentiment:      "neutral",
		SentimentScore: 0,
		Urgency:        "low",
	}

	switch {
	case pos > neg:
		res.Sentiment = "positive"
		res.SentimentScore = score(pos, neg)
	case neg > pos:
		res.Sentiment = "negative"
		res.SentimentScore = -score(neg, pos)
	}

	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, criticalWords):
		res.Urgency = "critical"
	case containsAny(lower, highWords):
		res.Urgency = "high"
	}

	for topic, keywords := range topicLexicon {
		if containsAny(lower, keywords) {
			res.Topics = append(res.Topics, topic)
		}
	}
	if len(res.Topics) == 0 {
		res.Topics = []string{"general"}
	}

	return res, nil
}

func tokenize(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		words[w] = struct{}{}
	}
	return words
}

func countMatches(words map[string]struct{}, lexicon []string) int {
	n := 0
	for _, w := range lexicon {
		if _, ok := words[w]; ok {
			n++
		}
	}
	return n
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// score maps a keyword margin onto (0, 1], saturating at 3 net hits.
func score(hits, opposing int) float64 {
	margin := hits - opposing
	if margin > 3 {
		margin = 3
	}
	return 0.4 + 0.2*float64(margin)
}
