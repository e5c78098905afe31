package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClassifier classifies feedback through an OpenAI-compatible chat
// completion endpoint.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// OpenAIConfig holds configuration for creating an OpenAI-backed classifier.
type OpenAIConfig struct {
	Endpoint string // Base URL, e.g. "https://api.openai.com/v1"
	Model    string // Model name, e.g. "gpt-4o-mini"
	APIKey   string // Optional for local endpoints
}

// NewOpenAIClassifier creates a classifier backed by an OpenAI-compatible endpoint.
func NewOpenAIClassifier(cfg *OpenAIConfig, logger *zap.Logger) (*OpenAIClassifier, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("classifier-openai"),
	}, nil
}

func (c *OpenAIClassifier) Name() string { return "openai" }

// Classify sends the text for classification and parses the JSON result.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		cerr := ClassifyError(err)
		c.logger.Warn("classification request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Bool("retryable", cerr.Retryable),
			zap.Error(err))
		return nil, cerr
	}

	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeResponse, "empty completion", false, nil)
	}

	result, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("classified",
		zap.String("sentiment", result.Sentiment),
		zap.String("urgency", result.Urgency),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
