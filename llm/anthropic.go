package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/birmacher/capoeira-portal/logger"
)

const DefaultAnthropicModel = "claude-3.7-sonnet"

// AnthropicModel implements Provider using Anthropic's messages API
type AnthropicModel struct {
	apiKey    string
	modelName string
	maxTokens int
	baseURL   string
}

// NewAnthropic creates a new Anthropic provider
func NewAnthropic(apiKey string, opts ...Option) (*AnthropicModel, error) {
	if apiKey == "" {
		errMsg := "Anthropic API key cannot be empty"
		logger.Error(errMsg)
		return nil, errors.New(errMsg)
	}

	model := &AnthropicModel{
		apiKey:    apiKey,
		modelName: DefaultAnthropicModel,
		maxTokens: 2048,
	}

	for _, opt := range opts {
		switch opt.Type {
		case ModelNameOption:
			if modelName, ok := opt.Value.(string); ok && modelName != "" {
				model.modelName = modelName
			}
		case MaxTokensOption:
			if maxTokens, ok := opt.Value.(int); ok {
				model.maxTokens = maxTokens
			}
		case BaseURLOption:
			if baseURL, ok := opt.Value.(string); ok {
				model.baseURL = baseURL
			}
		}
	}

	logger.Debugf("Anthropic client initialized with model: %s, max tokens: %d",
		model.modelName, model.maxTokens)

	return model, nil
}

func (a *AnthropicModel) Name() string {
	return ProviderAnthropic
}

func (a *AnthropicModel) model() anthropic.Model {
	switch a.modelName {
	case "claude-3.7-sonnet":
		return anthropic.ModelClaude3_7SonnetLatest
	case "claude-3.5-haiku":
		return anthropic.ModelClaude3_5HaikuLatest
	}
	return anthropic.Model(a.modelName)
}

// Generate sends the prompt as a single user message and returns the first text block
func (a *AnthropicModel) Generate(ctx context.Context, client *http.Client, prompt string) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(a.apiKey),
		option.WithHTTPClient(client),
		// The client passed in already owns the retry policy
		option.WithMaxRetries(0),
	}
	if a.baseURL != "" {
		opts = append(opts, option.WithBaseURL(a.baseURL))
	}

	ac := anthropic.NewClient(opts...)
	message, err := ac.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model(),
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode}
		}
		return "", fmt.Errorf("failed to create message: %w", err)
	}

	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if b.Text != "" {
				return b.Text, nil
			}
		}
	}

	return "", ErrNoContent
}
