package supervisor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff"
)

// Readiness decides when the file server may be considered up.
type Readiness interface {
	// Wait blocks until addr is assumed to accept connections or ctx is done.
	Wait(ctx context.Context, addr string) error
}

// ReadinessFunc adapts a function to Readiness.
type ReadinessFunc func(ctx context.Context, addr string) error

func (f ReadinessFunc) Wait(ctx context.Context, addr string) error {
	return f(ctx, addr)
}

// Delay waits a fixed duration and never looks at addr.
type Delay time.Duration

func (d Delay) Wait(ctx context.Context, _ string) error {
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

// PortPoll dials addr at a fixed interval until a connection succeeds or Timeout passes.
type PortPoll struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (p PortPoll) Wait(ctx context.Context, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var dialer net.Dialer
	b := backoff.WithContext(backoff.NewConstantBackOff(p.Interval), ctx)
	op := func() error {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}

	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("%s did not accept connections within %s: %w", addr, p.Timeout, err)
	}

	return nil
}
