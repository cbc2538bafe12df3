package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/birmacher/capoeira-portal/common"
	"github.com/birmacher/capoeira-portal/logger"
)

const (
	ProviderGemini    = common.ProviderGemini
	ProviderOpenAI    = common.ProviderOpenAI
	ProviderAnthropic = common.ProviderAnthropic
)

// Messages shown in place of generated text
const (
	NoContentMessage = "Sorry, no content was generated for this request. Please try rephrasing and try again."
	TimeoutMessage   = "The server took too long to respond. Please try again later."
	errorPrefix      = "An error occurred: "
)

// ErrNoContent is returned by providers when a successful response carries no text
var ErrNoContent = errors.New("response contained no generated text")

// StatusError is a non-success HTTP status returned by the generation endpoint
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// RateLimited reports whether the status was 429
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ErrorMessage renders err as the text shown to the user
func ErrorMessage(err error) string {
	return errorPrefix + err.Error()
}

// OptionType defines the type of option
type OptionType string

// Available option types
const (
	ModelNameOption      OptionType = "model"
	MaxTokensOption      OptionType = "max_tokens"
	APITimeoutOption     OptionType = "api_timeout"
	BaseURLOption        OptionType = "base_url"
	MaxRetriesOption     OptionType = "max_retries"
	RetryBaseDelayOption OptionType = "retry_base_delay"
	BackoffHookOption    OptionType = "backoff_hook"
)

// Option represents a generic configuration option for providers and the invoker
type Option struct {
	Type  OptionType
	Value any
}

// WithModel creates an option to set the model name
func WithModel(model string) Option {
	return Option{Type: ModelNameOption, Value: model}
}

// WithMaxTokens creates an option to set the max tokens
func WithMaxTokens(maxTokens int) Option {
	return Option{Type: MaxTokensOption, Value: maxTokens}
}

// WithAPITimeout creates an option to bound a whole invocation, backoff waits included.
// Zero disables the deadline.
func WithAPITimeout(timeout time.Duration) Option {
	return Option{Type: APITimeoutOption, Value: timeout}
}

// WithBaseURL creates an option to point a provider at another endpoint
func WithBaseURL(baseURL string) Option {
	return Option{Type: BaseURLOption, Value: baseURL}
}

// WithMaxRetries creates an option to set the default number of attempts per request
func WithMaxRetries(maxRetries int) Option {
	return Option{Type: MaxRetriesOption, Value: maxRetries}
}

// WithRetryBaseDelay creates an option to set the backoff base
func WithRetryBaseDelay(delay time.Duration) Option {
	return Option{Type: RetryBaseDelayOption, Value: delay}
}

// WithBackoffHook creates an option to observe every backoff wait
func WithBackoffHook(hook func(attempt int, wait time.Duration)) Option {
	return Option{Type: BackoffHookOption, Value: hook}
}

// Request is a single logical generation request
type Request struct {
	Prompt string
	// Attempts allowed for this call; zero uses the invoker default and a
	// negative value allows none
	MaxRetries int
	// Label used in logs, usually the panel name
	Label string
}

// Indicator is told when an invocation starts and when it finishes
type Indicator interface {
	Begin()
	End()
}

// NopIndicator ignores lifecycle events
type NopIndicator struct{}

func (NopIndicator) Begin() {}
func (NopIndicator) End()   {}

// Provider turns a prompt into generated text with one logical call. The client
// carries the retry policy; providers must send every request through it.
type Provider interface {
	Name() string
	Generate(ctx context.Context, client *http.Client, prompt string) (string, error)
}

// NewProvider creates a provider by name
func NewProvider(providerName, apiKey string, opts ...Option) (Provider, error) {
	var provider Provider

	switch providerName {
	case ProviderGemini:
		g, err := NewGemini(apiKey, opts...)
		if err != nil {
			return nil, err
		}
		provider = g
	case ProviderOpenAI:
		o, err := NewOpenAI(apiKey, opts...)
		if err != nil {
			return nil, err
		}
		provider = o
	case ProviderAnthropic:
		a, err := NewAnthropic(apiKey, opts...)
		if err != nil {
			return nil, err
		}
		provider = a
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerName)
	}

	logger.Infow("Using LLM provider", "provider", providerName)
	return provider, nil
}

// transportError strips the request URL from client errors; the Gemini
// endpoint carries the API key in its query string.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("request failed: %w", urlErr.Err)
	}
	return fmt.Errorf("request failed: %w", err)
}
