package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "retry")

// Policy 重试策略：有界次数 + 指数退避 + 抖动
//
// 所有对外部服务（报价源/执行网关）的调用共用同一套策略，
// 避免同一个调用在不同路径上出现不一致的重试行为。
type Policy struct {
	MaxAttempts int           // 总尝试次数（含首次），默认 4
	BaseDelay   time.Duration // 首次退避时长，默认 500ms
	MaxDelay    time.Duration // 退避上限，默认 8s
	JitterFrac  float64       // 抖动比例（±），默认 0.2
}

// DefaultPolicy 默认策略：4 次尝试，500ms 起步，8s 封顶，±20% 抖动
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		JitterFrac:  0.2,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记不可重试的错误（状态类错误，重试没有意义）
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 判断错误是否被标记为不可重试
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Backoff 计算第 attempt 次失败后的退避时长（attempt 从 0 开始）
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// 防溢出：2^20 * 500ms 已远超任何合理上限
	if attempt > 20 {
		attempt = 20
	}
	d := p.BaseDelay * time.Duration(1<<attempt)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.JitterFrac > 0 {
		// ±JitterFrac 均匀抖动，避免多个 worker 同步重试
		delta := float64(d) * p.JitterFrac
		d = time.Duration(float64(d) - delta + rand.Float64()*2*delta)
	}
	return d
}

// Do 以策略 p 执行 fn，瞬时失败时退避重试
//
// 终止条件：fn 成功、错误被 Permanent 标记、ctx 取消、或尝试次数用尽。
// 用尽后返回最后一次错误，由调用方把该条目按"本周期 no-op"处理。
func (p Policy) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// 上层 ctx 已失效时不再重试；单次调用超时则继续
			if ctx.Err() != nil {
				return err
			}
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		log.Debugf("🔁 [%s] 第 %d/%d 次失败: %v，%s 后重试", name, attempt+1, p.MaxAttempts, err, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	log.Warnf("⚠️ [%s] 重试次数用尽 (%d 次): %v", name, p.MaxAttempts, lastErr)
	return lastErr
}
