package sequencer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// ErrNotReady is returned when a readiness check does not pass within its
// deadline.
var ErrNotReady = errors.New("service not ready within deadline")

const pollInterval = 100 * time.Millisecond

// ReadyCheck reports whether a just-started service reached a minimally
// usable state. Checks replace fixed settle sleeps so startup ordering is
// deterministic and testable.
type ReadyCheck func(ctx context.Context) error

// WaitForPort waits until something listens on the local TCP port.
func WaitForPort(port int, deadline time.Duration) ReadyCheck {
	return func(ctx context.Context) error {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		return poll(ctx, deadline, func() bool {
			conn, err := net.DialTimeout("tcp", addr, pollInterval)
			if err != nil {
				return false
			}
			conn.Close()
			return true
		}, fmt.Sprintf("port %d", port))
	}
}

// WaitForSocket waits until a filesystem socket (e.g. the X11 display
// socket) exists.
func WaitForSocket(path string, deadline time.Duration) ReadyCheck {
	return func(ctx context.Context) error {
		return poll(ctx, deadline, func() bool {
			_, err := os.Stat(path)
			return err == nil
		}, fmt.Sprintf("socket %s", path))
	}
}

// Settle is a plain delay for services with no observable readiness signal.
func Settle(d time.Duration) ReadyCheck {
	return func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
}

func poll(ctx context.Context, deadline time.Duration, ready func() bool, what string) error {
	timeout := time.After(deadline)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if ready() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("%s after %s: %w", what, deadline, ErrNotReady)
		case <-ticker.C:
			if ready() {
				return nil
			}
		}
	}
}
