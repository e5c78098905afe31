package classifier

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/config"
)

// New creates a Classifier for the configured provider.
func New(cfg *config.ClassifierConfig, logger *zap.Logger) (Classifier, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClassifier(&OpenAIConfig{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	case "anthropic":
		return NewAnthropicClassifier(&AnthropicConfig{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		}, logger)
	case "lexicon":
		return NewLexiconClassifier(), nil
	}
	return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
}
