package utils

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval 模型列表轮询的默认间隔
const DefaultPollInterval = 5 * time.Second

// PollConfig 配置轮询参数
type PollConfig struct {
	// Interval 两次尝试之间的固定间隔（不做指数退避）
	Interval time.Duration
	// MaxAttempts 最大尝试次数，0 表示不限次数
	MaxAttempts int
	// OnError 每次失败后调用，通常用于记录日志
	OnError func(attempt int, err error)
}

// DefaultPollConfig 返回默认的轮询配置：每5秒一次，不限次数
func DefaultPollConfig() *PollConfig {
	return &PollConfig{
		Interval: DefaultPollInterval,
	}
}

// PollUntilSuccess 立即执行 fn，失败后按固定间隔重复，直到第一次成功为止。
// 成功后立即返回，fn 不会再被调用。上下文取消时返回 ctx.Err()。
func PollUntilSuccess(ctx context.Context, config *PollConfig, fn func(context.Context) error) error {
	if config == nil {
		config = DefaultPollConfig()
	}
	interval := config.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if config.OnError != nil {
			config.OnError(attempt, err)
		}

		if config.MaxAttempts > 0 && attempt >= config.MaxAttempts {
			return fmt.Errorf("after %d attempts: %w", attempt, lastErr)
		}

		// 可取消的等待
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
