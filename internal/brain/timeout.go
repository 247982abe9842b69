package brain

import (
	"context"
	"time"
)

type timeoutAdapter struct {
	inner   Adapter
	timeout time.Duration
}

// WithTimeout bounds every Complete call. d <= 0 returns a unchanged.
func WithTimeout(a Adapter, d time.Duration) Adapter {
	if d <= 0 {
		return a
	}
	return &timeoutAdapter{inner: a, timeout: d}
}

func (a *timeoutAdapter) Name() string { return a.inner.Name() }

func (a *timeoutAdapter) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.inner.Complete(ctx, messages)
}
