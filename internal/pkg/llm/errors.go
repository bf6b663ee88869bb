package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"syscall"
)

// ErrorKind 生成服务失败分类
type ErrorKind int

const (
	// KindFatal 不可重试
	KindFatal ErrorKind = iota
	// KindRateLimited 限流，指数退避后重试
	KindRateLimited
	// KindTransient 网络/超时，线性退避后重试
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	}
	return "fatal"
}

// 区分限流的状态码/错误码组合
const (
	rateLimitStatus = http.StatusTooManyRequests
	rateLimitCode   = "rate_limit_exceeded"
)

var (
	// capacityVocabulary 容量类错误文本按限流处理
	capacityVocabulary = regexp.MustCompile(`(?i)rate.?limit|too many requests|overloaded|capacity|server is busy|resource.?exhausted|quota exceeded|request rate exceeded|status code: 429|请求次数超过限制`)
	// networkVocabulary 无状态码的传输层（如 eino）错误文本按网络错误处理
	networkVocabulary = regexp.MustCompile(`(?i)connection reset|connection refused|broken pipe|no such host|i/o timeout|unexpected eof|deadline exceeded|tls handshake timeout`)
)

// ErrMalformedResponse 成功响应缺少期望的内容字段
var ErrMalformedResponse = errors.New("malformed generation response")

// APIError 生成服务返回的非 2xx 或带 error 字段的响应
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// GenerationError Invoke 的最终失败，携带分类与尝试次数
type GenerationError struct {
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("generation service rate limited after %d attempts: %v", e.Attempts, e.Err)
	case KindTransient:
		return fmt.Sprintf("generation service unavailable after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("generation service failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// KindOf 返回错误分类，非 GenerationError 视为 Fatal
func KindOf(err error) ErrorKind {
	var gErr *GenerationError
	if errors.As(err, &gErr) {
		return gErr.Kind
	}
	return KindFatal
}

// IsRetryExhausted 限流或网络错误在耗尽重试次数后失败
func IsRetryExhausted(err error) bool {
	k := KindOf(err)
	return err != nil && (k == KindRateLimited || k == KindTransient)
}

// classify 判断单次调用错误是否可重试。parent 为整个 Invoke 的上下文
func classify(parent context.Context, err error) ErrorKind {
	if parent.Err() != nil {
		return KindFatal
	}
	if errors.Is(err, ErrMalformedResponse) {
		return KindFatal
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == rateLimitStatus && apiErr.Code == rateLimitCode:
			return KindRateLimited
		case apiErr.StatusCode == http.StatusBadGateway,
			apiErr.StatusCode == http.StatusServiceUnavailable,
			apiErr.StatusCode == http.StatusGatewayTimeout:
			if capacityVocabulary.MatchString(apiErr.Message) {
				return KindRateLimited
			}
			return KindTransient
		case capacityVocabulary.MatchString(apiErr.Message), capacityVocabulary.MatchString(apiErr.Code):
			return KindRateLimited
		}
		return KindFatal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return KindTransient
	}

	msg := err.Error()
	if capacityVocabulary.MatchString(msg) {
		return KindRateLimited
	}
	if networkVocabulary.MatchString(msg) {
		return KindTransient
	}
	return KindFatal
}
