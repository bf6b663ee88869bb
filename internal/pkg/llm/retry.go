package llm

import (
	"context"
	"time"

	"github.com/structgen/backend/config"
)

// maxShift 防止 2^attempt 溢出
const maxShift = 30

// BackoffPolicy 重试退避策略
//
//	限流:      min(RateLimitBase + 2^attempt * RateLimitUnit, RateLimitCap)
//	网络/超时: min(TransientStep * (attempt+1), TransientCap)
type BackoffPolicy struct {
	RateLimitBase time.Duration
	RateLimitUnit time.Duration
	RateLimitCap  time.Duration
	TransientStep time.Duration
	TransientCap  time.Duration
}

// PolicyFromConfig 从配置构造退避策略
func PolicyFromConfig(cfg config.LLMConfig) BackoffPolicy {
	return BackoffPolicy{
		RateLimitBase: cfg.RateLimitBase,
		RateLimitUnit: cfg.RateLimitUnit,
		RateLimitCap:  cfg.RateLimitCap,
		TransientStep: cfg.TransientStep,
		TransientCap:  cfg.TransientCap,
	}
}

// Delay 第 attempt 次（从 0 开始）失败后的等待时长
func (p BackoffPolicy) Delay(kind ErrorKind, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	switch kind {
	case KindRateLimited:
		shift := attempt
		if shift > maxShift {
			shift = maxShift
		}
		d := p.RateLimitBase + time.Duration(1<<uint(shift))*p.RateLimitUnit
		return capDelay(d, p.RateLimitCap)
	case KindTransient:
		d := p.TransientStep * time.Duration(attempt+1)
		return capDelay(d, p.TransientCap)
	}
	return 0
}

func capDelay(d, limit time.Duration) time.Duration {
	// 溢出或超过上限均取上限
	if limit > 0 && (d > limit || d < 0) {
		return limit
	}
	return d
}

// sleepContext 等待 d，父上下文取消时提前返回
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
