package brain

import (
	"context"
	"errors"
	"fmt"
)

// FallbackAdapter attempts a primary adapter first and falls back on error.
type FallbackAdapter struct {
	primary  Adapter
	fallback Adapter
}

func NewFallbackAdapter(primary Adapter, fallback Adapter) *FallbackAdapter {
	return &FallbackAdapter{
		primary:  primary,
		fallback: fallback,
	}
}

// Primary returns the preferred adapter used before fallback.
func (a *FallbackAdapter) Primary() Adapter {
	if a == nil {
		return nil
	}
	return a.primary
}

// Secondary returns the fallback adapter.
func (a *FallbackAdapter) Secondary() Adapter {
	if a == nil {
		return nil
	}
	return a.fallback
}

func (a *FallbackAdapter) Name() string {
	if a == nil || a.primary == nil {
		return "fallback"
	}
	if a.fallback == nil {
		return a.primary.Name()
	}
	return a.primary.Name() + "+" + a.fallback.Name()
}

// Complete does not fall back when the caller's context is done; the turn
// is already abandoned.
func (a *FallbackAdapter) Complete(ctx context.Context, messages []Message) (string, error) {
	if a == nil || a.primary == nil {
		if a != nil && a.fallback != nil {
			return a.fallback.Complete(ctx, messages)
		}
		return "", fmt.Errorf("fallback adapter misconfigured")
	}
	text, err := a.primary.Complete(ctx, messages)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return "", err
	}
	if a.fallback == nil {
		return "", err
	}
	fallbackText, fallbackErr := a.fallback.Complete(ctx, messages)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary adapter error: %w; fallback adapter error: %v", err, fallbackErr)
	}
	return fallbackText, nil
}
