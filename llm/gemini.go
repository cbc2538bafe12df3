package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/birmacher/capoeira-portal/logger"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

// GeminiModel implements Provider against the generateContent REST endpoint
type GeminiModel struct {
	apiKey    string
	modelName string
	baseURL   string
}

// NewGemini creates a new Gemini provider
func NewGemini(apiKey string, opts ...Option) (*GeminiModel, error) {
	if apiKey == "" {
		errMsg := "Gemini API key cannot be empty"
		logger.Error(errMsg)
		return nil, errors.New(errMsg)
	}

	model := &GeminiModel{
		apiKey:    apiKey,
		modelName: DefaultGeminiModel,
		baseURL:   DefaultGeminiBaseURL,
	}

	for _, opt := range opts {
		switch opt.Type {
		case ModelNameOption:
			if modelName, ok := opt.Value.(string); ok && modelName != "" {
				model.modelName = modelName
			}
		case BaseURLOption:
			if baseURL, ok := opt.Value.(string); ok && baseURL != "" {
				model.baseURL = strings.TrimSuffix(baseURL, "/")
			}
		}
	}

	logger.Debugf("Gemini client initialized with model: %s", model.modelName)

	return model, nil
}

func (g *GeminiModel) Name() string {
	return ProviderGemini
}

func (g *GeminiModel) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.modelName), url.QueryEscape(g.apiKey))
}

// Generate sends the prompt as a single user turn and returns the first text part
func (g *GeminiModel) Generate(ctx context.Context, client *http.Client, prompt string) (string, error) {
	body, err := json.Marshal(generateContentRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var errResp geminiErrorResponse
		if json.Unmarshal(data, &errResp) == nil {
			statusErr.Message = errResp.Error.Message
		}
		return "", statusErr
	}

	var generated generateContentResponse
	if err := json.Unmarshal(data, &generated); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return generated.firstText()
}

type generateContentRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates"`
}

// firstText returns candidates[0].content.parts[0].text
func (r generateContentResponse) firstText() (string, error) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoContent
	}
	text := r.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
