package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/structgen/backend/config"
)

func testLLMConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		Provider:      "openai",
		APIURL:        url,
		APIKey:        "test-key",
		Model:         "test-model",
		MaxTokens:     1024,
		Timeout:       2 * time.Second,
		MaxRetries:    3,
		RateLimitBase: time.Second,
		RateLimitUnit: time.Second,
		RateLimitCap:  5 * time.Second,
		TransientStep: 2 * time.Second,
		TransientCap:  10 * time.Second,
	}
}

// newTestClient 替换 sleep，记录退避时长而不真正等待
func newTestClient(cfg config.LLMConfig) (*Client, *[]time.Duration) {
	c := NewClientWithTransport(cfg, NewHTTPTransport(cfg.APIURL, cfg.APIKey), nil)
	delays := &[]time.Duration{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
	return c, delays
}

func writeContent(w http.ResponseWriter, content string) {
	resp := map[string]any{
		"id":     "test-id",
		"object": "chat.completion",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"error","code":%q}}`, message, code)
}

func TestInvokeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "sys", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)

		writeContent(w, `{"nodes":[]}`)
	}))
	defer server.Close()

	c, delays := newTestClient(testLLMConfig(server.URL))
	content, err := c.Invoke(context.Background(), "sys", "make a frame")
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[]}`, content)
	assert.Empty(t, *delays)
}

func TestInvokeRateLimitedExhaustsRetries(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit reached")
	}))
	defer server.Close()

	cfg := testLLMConfig(server.URL)
	c, delays := newTestClient(cfg)
	_, err := c.Invoke(context.Background(), "sys", "frame")
	require.Error(t, err)

	var gErr *GenerationError
	require.True(t, errors.As(err, &gErr))
	assert.Equal(t, KindRateLimited, gErr.Kind)
	assert.Equal(t, 4, gErr.Attempts)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
	assert.True(t, IsRetryExhausted(err))

	require.Len(t, *delays, 3)
	for i, d := range *delays {
		assert.LessOrEqual(t, d, cfg.RateLimitCap)
		if i > 0 {
			assert.GreaterOrEqual(t, d, (*delays)[i-1])
		}
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second, 5 * time.Second}, *delays)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "rate_limit_exceeded", apiErr.Code)
}

func TestInvokeRecoversAfterTransient(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeContent(w, `{"nodes":[{"x":0,"y":0,"s":"x"}]}`)
	}))
	defer server.Close()

	c, delays := newTestClient(testLLMConfig(server.URL))
	content, err := c.Invoke(context.Background(), "sys", "frame")
	require.NoError(t, err)
	assert.Contains(t, content, "nodes")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
}

func TestInvokeAttemptTimeoutIsTransient(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := testLLMConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxRetries = 1
	c, _ := newTestClient(cfg)

	_, err := c.Invoke(context.Background(), "sys", "frame")
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestInvokeFatalIsNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeError(w, http.StatusBadRequest, "invalid_request_error", "bad prompt")
	}))
	defer server.Close()

	c, delays := newTestClient(testLLMConfig(server.URL))
	_, err := c.Invoke(context.Background(), "sys", "frame")
	require.Error(t, err)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.False(t, IsRetryExhausted(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, *delays)
}

func TestInvokeMalformedSuccessIsFatal(t *testing.T) {
	bodies := []string{
		`not json at all`,
		`{"id":"x","choices":[]}`,
		`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`,
	}
	for _, body := range bodies {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.Write([]byte(body))
		}))

		c, _ := newTestClient(testLLMConfig(server.URL))
		_, err := c.Invoke(context.Background(), "sys", "frame")
		server.Close()

		require.Error(t, err, body)
		assert.Equal(t, KindFatal, KindOf(err), body)
		assert.True(t, errors.Is(err, ErrMalformedResponse), body)
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits), body)
	}
}

func TestInvokeCanceledParentIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeContent(w, `{}`)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, delays := newTestClient(testLLMConfig(server.URL))
	_, err := c.Invoke(ctx, "sys", "frame")
	require.Error(t, err)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Empty(t, *delays)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"rate limit code", &APIError{StatusCode: 429, Code: "rate_limit_exceeded"}, KindRateLimited},
		{"429 capacity text", &APIError{StatusCode: 429, Message: "Too Many Requests"}, KindRateLimited},
		{"overloaded", &APIError{StatusCode: 529, Message: "Overloaded"}, KindRateLimited},
		{"bad gateway", &APIError{StatusCode: 502, Message: "bad gateway"}, KindTransient},
		{"gateway timeout", &APIError{StatusCode: 504}, KindTransient},
		{"busy 503", &APIError{StatusCode: 503, Message: "server is busy"}, KindRateLimited},
		{"unauthorized", &APIError{StatusCode: 401, Message: "invalid api key"}, KindFatal},
		{"deadline", fmt.Errorf("request failed: %w", context.DeadlineExceeded), KindTransient},
		{"connection reset text", errors.New("read tcp: connection reset by peer"), KindTransient},
		{"malformed", fmt.Errorf("%w: no choices", ErrMalformedResponse), KindFatal},
		{"unknown", errors.New("something odd"), KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(ctx, tt.err))
		})
	}
}

func TestErrorBodyNumericCode(t *testing.T) {
	var payload struct {
		Error *ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"error":{"message":"slow down","code":429}}`), &payload))
	assert.Equal(t, "429", payload.Error.CodeString())

	apiErr := apiErrorFrom(http.StatusTooManyRequests, []byte(`{"error":{"message":"slow down","code":429}}`))
	assert.Equal(t, "429", apiErr.Code)

	plain := apiErrorFrom(http.StatusBadGateway, nil)
	assert.Equal(t, "Bad Gateway", plain.Message)
}

func TestBackoffPolicyDelay(t *testing.T) {
	p := BackoffPolicy{
		RateLimitBase: time.Second,
		RateLimitUnit: time.Second,
		RateLimitCap:  30 * time.Second,
		TransientStep: 2 * time.Second,
		TransientCap:  10 * time.Second,
	}
	assert.Equal(t, 2*time.Second, p.Delay(KindRateLimited, 0))
	assert.Equal(t, 9*time.Second, p.Delay(KindRateLimited, 3))
	assert.Equal(t, 30*time.Second, p.Delay(KindRateLimited, 10))
	assert.Equal(t, 30*time.Second, p.Delay(KindRateLimited, 200))
	assert.Equal(t, 2*time.Second, p.Delay(KindTransient, 0))
	assert.Equal(t, 6*time.Second, p.Delay(KindTransient, 2))
	assert.Equal(t, 10*time.Second, p.Delay(KindTransient, 9))
	assert.Equal(t, time.Duration(0), p.Delay(KindFatal, 1))
}

func TestNewClientProviders(t *testing.T) {
	cfg := config.Default()
	c, err := NewClient(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPTransport{}, c.transport)
	assert.Equal(t, cfg.LLM.MaxRetries+1, c.MaxAttempts())

	cfg.LLM.Provider = "eino"
	c, err = NewClient(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &EinoTransport{}, c.transport)

	mc := einoModelConfig(cfg.LLM)
	require.NotNil(t, mc.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, mc.ResponseFormat.Type)
	assert.Equal(t, cfg.LLM.Model, mc.Model)
	require.NotNil(t, mc.MaxTokens)
	assert.Equal(t, cfg.LLM.MaxTokens, *mc.MaxTokens)

	cfg.LLM.Provider = "carrier-pigeon"
	_, err = NewClient(cfg, nil)
	assert.Error(t, err)
}

type fakeChatModel struct {
	calls   int
	lastIn  []*schema.Message
	content string
	err     error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	f.lastIn = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func TestEinoTransportThroughClient(t *testing.T) {
	fake := &fakeChatModel{content: `{"nodes":[{"x":0,"y":0,"s":"p"}]}`}
	c := NewClientWithTransport(testLLMConfig(""), &EinoTransport{chatModel: fake}, nil)

	content, err := c.Invoke(context.Background(), "sys", "beam")
	require.NoError(t, err)
	assert.Contains(t, content, `"s":"p"`)
	require.Len(t, fake.lastIn, 2)
	assert.Equal(t, schema.System, fake.lastIn[0].Role)
	assert.Equal(t, schema.User, fake.lastIn[1].Role)
	assert.Equal(t, "beam", fake.lastIn[1].Content)
}

func TestEinoTransportErrorsAreClassified(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("error, status code: 429, message: Rate limit reached for requests")}
	c := NewClientWithTransport(testLLMConfig(""), &EinoTransport{chatModel: fake}, nil)
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := c.Invoke(context.Background(), "sys", "beam")
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, 4, fake.calls)

	empty := &fakeChatModel{content: ""}
	c = NewClientWithTransport(testLLMConfig(""), &EinoTransport{chatModel: empty}, nil)
	_, err = c.Invoke(context.Background(), "sys", "beam")
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Equal(t, 1, empty.calls)
}
