package classifier

import (
	"context"
	"sync"
)

// MockClassifier is a test double with a scriptable ClassifyFunc and a
// thread-safe call counter.
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, text string) (*Result, error)

	mu    sync.Mutex
	calls []string
}

var _ Classifier = (*MockClassifier)(nil)

func (m *MockClassifier) Name() string { return "mock" }

func (m *MockClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}
	return &Result{
		Sentiment:      "neutral",
		SentimentScore: 0,
		Urgency:        "low",
		Topics:         []string{"general"},
	}, nil
}

// CallCount returns how many times Classify has been invoked.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of the texts passed to Classify.
func (m *MockClassifier) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
