package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/birmacher/capoeira-portal/common"
	"github.com/birmacher/capoeira-portal/logger"
	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
)

const (
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Second
)

// Invoker issues generation requests through a Provider, retrying rate-limited
// attempts with exponential backoff. It holds no per-call state and is safe for
// concurrent use.
type Invoker struct {
	provider   Provider
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	apiTimeout time.Duration
	onBackoff  func(attempt int, wait time.Duration)
}

// NewInvoker creates an invoker for provider
func NewInvoker(provider Provider, opts ...Option) *Invoker {
	inv := &Invoker{
		provider:   provider,
		httpClient: cleanhttp.DefaultPooledClient(),
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultRetryBaseDelay,
	}

	for _, opt := range opts {
		switch opt.Type {
		case MaxRetriesOption:
			if maxRetries, ok := opt.Value.(int); ok {
				inv.maxRetries = maxRetries
			}
		case RetryBaseDelayOption:
			if delay, ok := opt.Value.(time.Duration); ok && delay >= 0 {
				inv.baseDelay = delay
			}
		case APITimeoutOption:
			if timeout, ok := opt.Value.(time.Duration); ok {
				inv.apiTimeout = timeout
			}
		case BackoffHookOption:
			if hook, ok := opt.Value.(func(int, time.Duration)); ok {
				inv.onBackoff = hook
			}
		}
	}

	return inv
}

// Close releases idle connections held by the invoker
func (inv *Invoker) Close() {
	inv.httpClient.CloseIdleConnections()
}

// Invoke performs req and always returns text to show the user: the generated
// text, NoContentMessage, TimeoutMessage, or an error description. Only 429
// responses are retried; every other failure ends the call. indicator may be nil.
func (inv *Invoker) Invoke(ctx context.Context, req Request, indicator Indicator) string {
	if indicator == nil {
		indicator = NopIndicator{}
	}
	indicator.Begin()
	defer indicator.End()

	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = inv.maxRetries
	}

	log := logger.With(
		"request_id", uuid.NewString(),
		"provider", inv.provider.Name(),
		"label", req.Label,
	)

	if maxRetries <= 0 {
		log.Warnw("No attempts allowed for request", "max_retries", maxRetries)
		return TimeoutMessage
	}

	if inv.apiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.apiTimeout)
		defer cancel()
	}

	attempts := 1
	client := common.NewRetryableClient(common.RetryConfig{
		RetryMax:     maxRetries - 1,
		RetryWaitMin: inv.baseDelay,
		CheckRetry:   common.RateLimitRetryPolicy,
		OnBackoff: func(attempt int, wait time.Duration) {
			attempts++
			log.Infow("Rate limited, backing off", "attempt", attempt, "wait", wait)
			if inv.onBackoff != nil {
				inv.onBackoff(attempt, wait)
			}
		},
		LogFields:  []interface{}{"provider", inv.provider.Name()},
		HTTPClient: inv.httpClient,
	})

	start := time.Now()
	text, err := inv.provider.Generate(ctx, client.StandardClient(), req.Prompt)
	log = log.With("attempts", attempts, "duration", time.Since(start))

	switch {
	case err == nil:
		log.Debugw("Generation succeeded", "length", len(text))
		return text
	case errors.Is(err, ErrNoContent):
		log.Warnw("Generation returned no content")
		return NoContentMessage
	default:
		log.Errorw("Generation failed", "error", err)
		return ErrorMessage(err)
	}
}
