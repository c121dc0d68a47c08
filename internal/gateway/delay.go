package gateway

import (
	"context"
	"time"
)

// Delayer stands in for the network round-trip to a payment provider.
type Delayer interface {
	Wait(ctx context.Context) error
}

// DelayFunc adapts a function to Delayer.
type DelayFunc func(ctx context.Context) error

func (f DelayFunc) Wait(ctx context.Context) error { return f(ctx) }

// FixedDelay waits for a constant duration, returning early if ctx is done.
type FixedDelay time.Duration

func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoDelay returns immediately. Use it in tests.
var NoDelay Delayer = DelayFunc(func(context.Context) error { return nil })
