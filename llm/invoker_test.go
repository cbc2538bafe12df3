package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/birmacher/capoeira-portal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

const testAPIKey = "test-key"

type scriptedReply struct {
	status int
	body   string
}

func geminiText(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]},"finishReason":"STOP"}]}`, text)
}

// scriptedServer replays replies in order and repeats the last one once exhausted
type scriptedServer struct {
	*httptest.Server
	hits    int32
	mu      sync.Mutex
	prompts []string
	keys    []string
}

func newScriptedServer(t *testing.T, replies ...scriptedReply) *scriptedServer {
	t.Helper()
	s := &scriptedServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&s.hits, 1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}

		var body generateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil &&
			len(body.Contents) > 0 && len(body.Contents[0].Parts) > 0 {
			s.mu.Lock()
			s.prompts = append(s.prompts, body.Contents[0].Parts[0].Text)
			s.keys = append(s.keys, r.URL.Query().Get("key"))
			s.mu.Unlock()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(replies[n].status)
		_, _ = w.Write([]byte(replies[n].body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *scriptedServer) Hits() int {
	return int(atomic.LoadInt32(&s.hits))
}

type recordingIndicator struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingIndicator) Begin() { r.record("begin") }
func (r *recordingIndicator) End()   { r.record("end") }

func (r *recordingIndicator) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingIndicator) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type backoffRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (b *backoffRecorder) hook(_ int, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waits = append(b.waits, wait)
}

func (b *backoffRecorder) Waits() []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]time.Duration(nil), b.waits...)
}

func newTestInvoker(t *testing.T, baseURL string, opts ...Option) (*Invoker, *backoffRecorder) {
	t.Helper()
	provider, err := NewGemini(testAPIKey, WithBaseURL(baseURL))
	require.NoError(t, err)

	recorder := &backoffRecorder{}
	opts = append([]Option{
		WithRetryBaseDelay(time.Millisecond),
		WithBackoffHook(recorder.hook),
	}, opts...)
	return NewInvoker(provider, opts...), recorder
}

func TestInvoke_Success(t *testing.T) {
	server := newScriptedServer(t, scriptedReply{http.StatusOK, geminiText("Ginga is the rocking base step.")})
	inv, recorder := newTestInvoker(t, server.URL)
	indicator := &recordingIndicator{}

	result := inv.Invoke(context.Background(), Request{Prompt: "What is ginga?"}, indicator)

	assert.Equal(t, "Ginga is the rocking base step.", result)
	assert.Equal(t, 1, server.Hits())
	assert.Empty(t, recorder.Waits())
	assert.Equal(t, []string{"begin", "end"}, indicator.Events())
	assert.Equal(t, []string{"What is ginga?"}, server.prompts)
	assert.Equal(t, []string{testAPIKey}, server.keys)
}

func TestInvoke_RetriesRateLimitsWithExponentialBackoff(t *testing.T) {
	for _, maxRetries := range []int{2, 3, 5} {
		t.Run(fmt.Sprintf("max retries %d", maxRetries), func(t *testing.T) {
			replies := make([]scriptedReply, 0, maxRetries)
			for i := 0; i < maxRetries-1; i++ {
				replies = append(replies, scriptedReply{http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota"}}`})
			}
			replies = append(replies, scriptedReply{http.StatusOK, geminiText("axé")})

			server := newScriptedServer(t, replies...)
			inv, recorder := newTestInvoker(t, server.URL)

			result := inv.Invoke(context.Background(), Request{Prompt: "p", MaxRetries: maxRetries}, nil)

			assert.Equal(t, "axé", result)
			assert.Equal(t, maxRetries, server.Hits())

			expected := make([]time.Duration, 0, maxRetries-1)
			for i := 0; i < maxRetries-1; i++ {
				expected = append(expected, time.Millisecond<<uint(i))
			}
			assert.Equal(t, expected, recorder.Waits())
		})
	}
}

func TestInvoke_DefaultBackoffSchedule(t *testing.T) {
	provider, err := NewGemini(testAPIKey)
	require.NoError(t, err)
	inv := NewInvoker(provider)

	assert.Equal(t, DefaultMaxRetries, inv.maxRetries)
	assert.Equal(t, time.Second, inv.baseDelay)
	assert.Zero(t, inv.apiTimeout)
}

func TestInvoke_ServerErrorIsNotRetried(t *testing.T) {
	server := newScriptedServer(t, scriptedReply{http.StatusInternalServerError, `{"error":{"code":500,"message":"internal"}}`})
	inv, recorder := newTestInvoker(t, server.URL)
	indicator := &recordingIndicator{}

	result := inv.Invoke(context.Background(), Request{Prompt: "p"}, indicator)

	assert.Contains(t, result, "500")
	assert.Contains(t, result, "internal")
	assert.Equal(t, 1, server.Hits())
	assert.Empty(t, recorder.Waits())
	assert.Equal(t, []string{"begin", "end"}, indicator.Events())
}

func TestInvoke_RateLimitOnFinalAttemptReportsStatus(t *testing.T) {
	server := newScriptedServer(t, scriptedReply{http.StatusTooManyRequests, ""})
	inv, recorder := newTestInvoker(t, server.URL)
	indicator := &recordingIndicator{}

	result := inv.Invoke(context.Background(), Request{Prompt: "p", MaxRetries: 3}, indicator)

	assert.Contains(t, result, "429")
	assert.NotEqual(t, TimeoutMessage, result)
	assert.Equal(t, 3, server.Hits())
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, recorder.Waits())
	assert.Equal(t, []string{"begin", "end"}, indicator.Events())
}

func TestInvoke_EmptyResponseReturnsFallback(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":""}]}}]}`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			server := newScriptedServer(t, scriptedReply{http.StatusOK, body})
			inv, _ := newTestInvoker(t, server.URL)
			indicator := &recordingIndicator{}

			result := inv.Invoke(context.Background(), Request{Prompt: "p"}, indicator)

			assert.Equal(t, NoContentMessage, result)
			assert.Equal(t, 1, server.Hits())
			assert.Equal(t, []string{"begin", "end"}, indicator.Events())
		})
	}
}

func TestInvoke_MalformedResponseIsTerminal(t *testing.T) {
	server := newScriptedServer(t, scriptedReply{http.StatusOK, `{"candidates":`})
	inv, _ := newTestInvoker(t, server.URL)

	result := inv.Invoke(context.Background(), Request{Prompt: "p"}, nil)

	assert.Contains(t, result, "failed to parse response")
	assert.Equal(t, 1, server.Hits())
}

func TestInvoke_NetworkFaultIsNotRetried(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	inv, recorder := newTestInvoker(t, baseURL)
	indicator := &recordingIndicator{}

	result := inv.Invoke(context.Background(), Request{Prompt: "p"}, indicator)

	assert.Contains(t, result, "connection refused")
	assert.NotContains(t, result, testAPIKey)
	assert.Empty(t, recorder.Waits())
	assert.Equal(t, []string{"begin", "end"}, indicator.Events())
}

func TestInvoke_NetworkFaultKeepsKeyOutOfLogs(t *testing.T) {
	const secret = "SECRET-KEY-123"
	var logs bytes.Buffer
	logger.InitWithWriter("debug", &logs)
	t.Cleanup(func() { logger.InitWithWriter("info", os.Stderr) })

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	provider, err := NewGemini(secret, WithBaseURL(baseURL))
	require.NoError(t, err)
	inv := NewInvoker(provider, WithRetryBaseDelay(time.Millisecond))
	defer inv.Close()

	result := inv.Invoke(context.Background(), Request{Prompt: "p", Label: "history"}, nil)

	assert.NotContains(t, result, secret)
	assert.Contains(t, logs.String(), "request failed")
	assert.NotContains(t, logs.String(), secret)
}

func TestInvoke_NoAttemptsAllowed(t *testing.T) {
	server := newScriptedServer(t, scriptedReply{http.StatusOK, geminiText("unused")})
	inv, _ := newTestInvoker(t, server.URL, WithMaxRetries(0))
	indicator := &recordingIndicator{}

	result := inv.Invoke(context.Background(), Request{Prompt: "p"}, indicator)

	assert.Equal(t, TimeoutMessage, result)
	assert.Equal(t, 0, server.Hits())
	assert.Equal(t, []string{"begin", "end"}, indicator.Events())

	result = inv.Invoke(context.Background(), Request{Prompt: "p", MaxRetries: 1}, nil)
	assert.Equal(t, "unused", result)
}

func TestInvoke_NegativeRequestBudget(t *testing.T) {
	server := newScriptedServer(t, scriptedReply{http.StatusOK, geminiText("unused")})
	inv, _ := newTestInvoker(t, server.URL)

	result := inv.Invoke(context.Background(), Request{Prompt: "p", MaxRetries: -1}, nil)

	assert.Equal(t, TimeoutMessage, result)
	assert.Equal(t, 0, server.Hits())
}

func TestInvoke_CancelledDuringBackoff(t *testing.T) {
	server := newScriptedServer(t, scriptedReply{http.StatusTooManyRequests, ""})
	provider, err := NewGemini(testAPIKey, WithBaseURL(server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	inv := NewInvoker(provider,
		WithRetryBaseDelay(time.Hour),
		WithBackoffHook(func(int, time.Duration) { cancel() }),
	)

	done := make(chan string, 1)
	go func() { done <- inv.Invoke(ctx, Request{Prompt: "p"}, nil) }()

	select {
	case result := <-done:
		assert.Contains(t, result, "context canceled")
		assert.Equal(t, 1, server.Hits())
	case <-time.After(5 * time.Second):
		t.Fatal("Invoke did not return after cancellation")
	}
}

func TestInvoke_APITimeoutBoundsTheCall(t *testing.T) {
	server := newScriptedServer(t, scriptedReply{http.StatusTooManyRequests, ""})
	provider, err := NewGemini(testAPIKey, WithBaseURL(server.URL))
	require.NoError(t, err)

	inv := NewInvoker(provider,
		WithRetryBaseDelay(time.Hour),
		WithAPITimeout(50*time.Millisecond),
	)

	result := inv.Invoke(context.Background(), Request{Prompt: "p"}, nil)

	assert.Contains(t, result, "deadline exceeded")
}

func TestInvoke_ConcurrentInvocationsAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body generateContentRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		prompt := body.Contents[0].Parts[0].Text

		// Every other request is rate limited once
		if atomic.AddInt32(&hits, 1)%2 == 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(geminiText("echo " + prompt)))
	}))

	inv, _ := newTestInvoker(t, server.URL)

	const n = 8
	results := make([]string, n)
	indicators := make([]*recordingIndicator, n)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		i := i
		indicators[i] = &recordingIndicator{}
		g.Go(func() error {
			results[i] = inv.Invoke(ctx, Request{Prompt: fmt.Sprintf("p%d", i), MaxRetries: n}, indicators[i])
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("echo p%d", i), results[i])
		assert.Equal(t, []string{"begin", "end"}, indicators[i].Events())
	}

	inv.Close()
	server.Close()
}

func TestStatusError(t *testing.T) {
	err := &StatusError{StatusCode: http.StatusTooManyRequests}
	assert.Equal(t, "HTTP error! status: 429", err.Error())
	assert.True(t, err.RateLimited())

	err = &StatusError{StatusCode: http.StatusBadRequest, Message: "bad prompt"}
	assert.Equal(t, "HTTP error! status: 400: bad prompt", err.Error())
	assert.False(t, err.RateLimited())
	assert.Equal(t, "An error occurred: HTTP error! status: 400: bad prompt", ErrorMessage(err))
}
