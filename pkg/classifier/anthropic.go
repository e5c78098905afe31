package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClassifier classifies feedback through the Anthropic Messages API.
type AnthropicClassifier struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// AnthropicConfig holds configuration for creating an Anthropic-backed classifier.
type AnthropicConfig struct {
	Model  string
	APIKey string
}

// NewAnthropicClassifier creates a classifier backed by the Anthropic API.
func NewAnthropicClassifier(cfg *AnthropicConfig, logger *zap.Logger) (*AnthropicClassifier, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	return &AnthropicClassifier{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("classifier-anthropic"),
	}, nil
}

func (c *AnthropicClassifier) Name() string { return "anthropic" }

// Classify sends the text for classification and parses the JSON result.
func (c *AnthropicClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    systemPrompt,
		MaxTokens: 512,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(text),
		},
	})
	if err != nil {
		cerr := ClassifyError(err)
		c.logger.Warn("classification request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Bool("retryable", cerr.Retryable),
			zap.Error(err))
		return nil, cerr
	}

	raw := resp.GetFirstContentText()
	if raw == "" {
		return nil, NewError(ErrorTypeResponse, "empty completion", false, nil)
	}

	result, err := parseResult(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("classified",
		zap.String("sentiment", result.Sentiment),
		zap.String("urgency", result.Urgency),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
