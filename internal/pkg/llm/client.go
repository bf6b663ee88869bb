package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/structgen/backend/config"
	"github.com/structgen/backend/internal/pkg/metrics"
	"k8s.io/klog/v2"
)

// Transport 单次生成调用，不做重试
type Transport interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Client 带重试、超时与错误分类的生成服务客户端
type Client struct {
	transport   Transport
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	maxRetries  int
	policy      BackoffPolicy
	metrics     *metrics.Collector

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient 按配置选择传输实现（openai HTTP 或 eino）
func NewClient(cfg *config.Config, m *metrics.Collector) (*Client, error) {
	var transport Transport
	switch strings.ToLower(cfg.LLM.Provider) {
	case "eino":
		t, err := NewEinoTransport(cfg.LLM)
		if err != nil {
			return nil, err
		}
		transport = t
	case "", "openai":
		transport = NewHTTPTransport(cfg.LLM.APIURL, cfg.LLM.APIKey)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
	return NewClientWithTransport(cfg.LLM, transport, m), nil
}

// NewClientWithTransport 使用指定传输构造客户端
func NewClientWithTransport(cfg config.LLMConfig, transport Transport, m *metrics.Collector) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		transport:   transport,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		maxRetries:  maxRetries,
		policy:      PolicyFromConfig(cfg),
		metrics:     m,
		sleep:       sleepContext,
	}
}

// MaxAttempts 首次调用加重试次数
func (c *Client) MaxAttempts() int {
	return c.maxRetries + 1
}

// Invoke 发送 system + user 消息并返回模型文本
// 限流与网络错误按退避策略重试，耗尽后以对应 Kind 的 GenerationError 返回
func (c *Client) Invoke(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	req := ChatRequest{
		Model:          c.model,
		Messages:       BuildMessages(systemPrompt, userMessage),
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}

	attempts := c.MaxAttempts()
	var lastErr error
	lastKind := KindFatal

	for attempt := 0; attempt < attempts; attempt++ {
		klog.V(6).Infof("[LLMClient] 调用生成服务: attempt=%d/%d, model=%s", attempt+1, attempts, c.model)

		content, err := c.once(ctx, req)
		if err == nil {
			c.metrics.RecordAttempt("ok")
			klog.V(6).Infof("[LLMClient] 调用成功: attempt=%d, contentLength=%d", attempt+1, len(content))
			return content, nil
		}

		kind := classify(ctx, err)
		c.metrics.RecordAttempt(kind.String())
		lastErr, lastKind = err, kind

		if kind == KindFatal {
			klog.Errorf("[LLMClient] 不可重试错误: attempt=%d, err=%v", attempt+1, err)
			return "", &GenerationError{Kind: KindFatal, Attempts: attempt + 1, Err: err}
		}
		if attempt == attempts-1 {
			break
		}

		delay := c.policy.Delay(kind, attempt)
		c.metrics.RecordBackoff(kind.String(), delay)
		klog.Warningf("[LLMClient] %s 错误，%v 后重试: attempt=%d/%d, err=%v", kind, delay, attempt+1, attempts, err)

		if err := c.sleep(ctx, delay); err != nil {
			return "", &GenerationError{Kind: KindFatal, Attempts: attempt + 1, Err: err}
		}
	}

	klog.Errorf("[LLMClient] 重试次数耗尽: kind=%s, attempts=%d, err=%v", lastKind, attempts, lastErr)
	return "", &GenerationError{Kind: lastKind, Attempts: attempts, Err: lastErr}
}

// once 单次调用，超时由独立的子上下文控制
func (c *Client) once(ctx context.Context, req ChatRequest) (string, error) {
	attemptCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.transport.Complete(attemptCtx, req)
}

// HTTPTransport OpenAI 兼容接口的 HTTP 实现
type HTTPTransport struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPTransport 超时交给调用方的 context，不在 http.Client 上设置
func NewHTTPTransport(baseURL, apiKey string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{},
	}
}

// Complete 发送 HTTP 请求到 /chat/completions
func (t *HTTPTransport) Complete(ctx context.Context, reqBody ChatRequest) (string, error) {
	url := t.BaseURL + "/chat/completions"
	klog.V(6).Infof("[LLMClient] 发送请求: url=%s, model=%s", url, reqBody.Model)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apiErrorFrom(resp.StatusCode, body)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if chatResp.Error != nil {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Code:       chatResp.Error.CodeString(),
			Type:       chatResp.Error.Type,
			Message:    chatResp.Error.Message,
		}
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	content := chatResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}
	return content, nil
}

// apiErrorFrom 解析错误响应体，无法解析时使用截断后的原文
func apiErrorFrom(status int, body []byte) *APIError {
	var payload struct {
		Error *ErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		return &APIError{
			StatusCode: status,
			Code:       payload.Error.CodeString(),
			Type:       payload.Error.Type,
			Message:    payload.Error.Message,
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
