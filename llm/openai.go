package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/birmacher/capoeira-portal/logger"
	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = "gpt-4o"

// OpenAIModel implements Provider using OpenAI's chat completion API
type OpenAIModel struct {
	apiKey    string
	modelName string
	maxTokens int
	baseURL   string
}

// NewOpenAI creates a new OpenAI provider
func NewOpenAI(apiKey string, opts ...Option) (*OpenAIModel, error) {
	if apiKey == "" {
		errMsg := "OpenAI API key cannot be empty"
		logger.Error(errMsg)
		return nil, errors.New(errMsg)
	}

	model := &OpenAIModel{
		apiKey:    apiKey,
		modelName: DefaultOpenAIModel,
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

	logger.Debugf("OpenAI client initialized with model: %s, max tokens: %d",
		model.modelName, model.maxTokens)

	return model, nil
}

func (o *OpenAIModel) Name() string {
	return ProviderOpenAI
}

// Generate sends the prompt as a single user message
func (o *OpenAIModel) Generate(ctx context.Context, client *http.Client, prompt string) (string, error) {
	config := openai.DefaultConfig(o.apiKey)
	config.HTTPClient = client
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}

	chatReq := openai.ChatCompletionRequest{
		Model: o.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens: o.maxTokens,
	}

	resp, err := openai.NewClientWithConfig(config).CreateChatCompletion(ctx, chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
			return "", &StatusError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
			return "", &StatusError{StatusCode: reqErr.HTTPStatusCode}
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrNoContent
	}

	return resp.Choices[0].Message.Content, nil
}
