package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crowdpulse/feedback-engine/pkg/models"
)

const systemPrompt = `You are a customer feedback analyst. Classify the feedback you are given and respond with ONLY a JSON object, no prose, of this exact shape:
{"sentiment": "positive|neutral|negative", "sentiment_score": <float -1.0..1.0>, "urgency": "low|high|critical", "topics": ["..."]}
sentiment_score is negative for negative sentiment and positive for positive sentiment. urgency is critical only for outages, safety issues or data loss. topics is up to 5 short lowercase labels.`

const maxTopics = 5

// wireResult is the JSON shape models are instructed to return.
type wireResult struct {
	Sentiment      string   `json:"sentiment"`
	SentimentScore float64  `json:"sentiment_score"`
	Urgency        string   `json:"urgency"`
	Topics         []string `json:"topics"`
}

// parseResult extracts and normalizes a classification result from a raw
// model response. An unusable response is a permanent error: retrying the
// same text against the same model is not expected to help.
func parseResult(raw string) (*Result, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, NewError(ErrorTypeResponse, "unparseable model response", false, err)
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return nil, NewError(ErrorTypeResponse, "malformed result JSON", false, err)
	}

	res := &Result{
		Sentiment:      strings.ToLower(strings.TrimSpace(wire.Sentiment)),
		SentimentScore: clampScore(wire.SentimentScore),
		Urgency:        normalizeUrgency(wire.Urgency),
		Topics:         normalizeTopics(wire.Topics),
	}

	if !models.ValidSentiment(res.Sentiment) {
		return nil, NewError(ErrorTypeResponse, fmt.Sprintf("unrecognized sentiment label %q", wire.Sentiment), false, nil)
	}
	if res.Urgency == "" {
		return nil, NewError(ErrorTypeResponse, "missing urgency label", false, nil)
	}
	return res, nil
}

func clampScore(score float64) float64 {
	if score < -1.0 {
		return -1.0
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}

// normalizeUrgency maps model output onto the low/high/critical scale.
// Models occasionally invent labels like "medium" despite the prompt; any
// unrecognized label lands on low so only genuinely elevated rows surface
// as urgent. A missing label stays empty and is rejected by the caller.
func normalizeUrgency(u string) string {
	switch strings.ToLower(strings.TrimSpace(u)) {
	case "":
		return ""
	case "high":
		return "high"
	case "critical", "urgent":
		return "critical"
	}
	return "low"
}

func normalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTopics {
			break
		}
	}
	return out
}
