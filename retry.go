package ingrain

import (
	"context"
	"errors"

	"github.com/avast/retry-go/v4"

	"github.com/stevemurr/ingrain/types"
)

func (c *Client) withRetry(ctx context.Context, cl *call, fn func() error) error {
	attempts := c.retries + 1
	err := retry.Do(fn,
		retry.Attempts(attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			// A done parent context ends the loop; a per-attempt timeout does not.
			return ctx.Err() == nil && retryable(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("ingrain request failed, retrying",
				"op", cl.op,
				"server", cl.server,
				"attempt", n+1,
				"max_attempts", attempts,
				"error", err,
			)
		}),
	)
	// retry-go returns the bare context error when ctx ends between attempts.
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		var netErr *types.NetworkError
		if !errors.As(err, &netErr) {
			err = &types.NetworkError{Server: cl.server, Op: cl.op, Err: err}
		}
	}
	return err
}

// retryable reports whether an attempt may succeed if repeated: transport
// failures and 5xx/429 responses. Validation and decode errors never are.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr *types.NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var srvErr *types.ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Temporary()
	}
	return false
}
