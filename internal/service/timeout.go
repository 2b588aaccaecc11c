package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// callWithTimeout 在超时上下文中执行一次下游调用，超时时错误包含 context.DeadlineExceeded
func callWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := fn(callCtx); err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("下游调用超时 (%s): %w", timeout, err)
		}
		return err
	}
	return nil
}
