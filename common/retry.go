package common

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/birmacher/capoeira-portal/logger"
	"github.com/hashicorp/go-retryablehttp"
)

// RetryConfig holds the configuration for HTTP retry logic
type RetryConfig struct {
	// Maximum number of retries after the first attempt
	RetryMax int
	// Backoff base; the wait after attempt i is RetryWaitMin * 2^i
	RetryWaitMin time.Duration
	// Function to determine if a request should be retried
	CheckRetry retryablehttp.CheckRetry
	// Called before each backoff wait with the zero-based attempt that was rate limited
	OnBackoff func(attempt int, wait time.Duration)
	// Key/value pairs added to every retry log line
	LogFields []interface{}
	// Underlying client; a new pooled client is used when nil
	HTTPClient *http.Client
}

// RateLimitRetryPolicy retries only responses with status 429. Transport errors
// and every other status are returned to the caller as they are.
func RateLimitRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil || resp == nil {
		return false, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// ExponentialBackoff returns a retryablehttp.Backoff waiting base * 2^attempt
func ExponentialBackoff(base time.Duration) retryablehttp.Backoff {
	return func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return base << uint(attemptNum)
	}
}

// NewRetryableClient creates a new HTTP client with retry capabilities
func NewRetryableClient(config RetryConfig) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	if config.HTTPClient != nil {
		retryClient.HTTPClient = config.HTTPClient
	}

	if config.RetryMax < 0 {
		config.RetryMax = 0
	}
	retryClient.RetryMax = config.RetryMax
	retryClient.RetryWaitMin = config.RetryWaitMin
	retryClient.RetryWaitMax = config.RetryWaitMin << uint(config.RetryMax)

	backoff := ExponentialBackoff(config.RetryWaitMin)
	retryClient.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		wait := backoff(min, max, attemptNum, resp)
		if config.OnBackoff != nil {
			config.OnBackoff(attemptNum, wait)
		}
		return wait
	}

	if config.CheckRetry != nil {
		retryClient.CheckRetry = config.CheckRetry
	} else {
		retryClient.CheckRetry = RateLimitRetryPolicy
	}

	// Hand the last response back untouched so callers can read its status
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	retryClient.Logger = &zapRetryLogger{fields: config.LogFields}

	logger.Debugf("Created retryable client with max retries: %d, backoff base: %s",
		config.RetryMax, config.RetryWaitMin)

	return retryClient
}

// zapRetryLogger adapts our zap logger to the interface required by retryablehttp
type zapRetryLogger struct {
	fields []interface{}
}

// apiKeyParam matches API keys carried in a query string
var apiKeyParam = regexp.MustCompile(`([?&]key=)[^&\s"']*`)

// RedactAPIKey replaces key= query values in s
func RedactAPIKey(s string) string {
	return apiKeyParam.ReplaceAllString(s, "${1}REDACTED")
}

func redactValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return RedactAPIKey(val)
	case *url.URL:
		if val == nil {
			return val
		}
		return RedactAPIKey(val.String())
	case error:
		return RedactAPIKey(val.Error())
	case fmt.Stringer:
		return RedactAPIKey(val.String())
	}
	return v
}

func (z *zapRetryLogger) kv(keysAndValues []interface{}) []interface{} {
	out := append([]interface{}{}, z.fields...)
	for _, v := range keysAndValues {
		out = append(out, redactValue(v))
	}
	return out
}

func (z *zapRetryLogger) Error(msg string, keysAndValues ...interface{}) {
	logger.Errorw(msg, z.kv(keysAndValues)...)
}

func (z *zapRetryLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Infow(msg, z.kv(keysAndValues)...)
}

func (z *zapRetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	logger.Debugw(msg, z.kv(keysAndValues)...)
}

func (z *zapRetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	logger.Warnw(msg, z.kv(keysAndValues)...)
}
