package health

import (
	"context"
	"net"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines run.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is implemented by database handles.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be pinged.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrap(p.Ping(ctx), "ping")
	}
}

// DialCheck fails when none of addrs accepts a TCP connection.
func DialCheck(addrs ...string) CheckFunc {
	return func(ctx context.Context) error {
		var (
			d       net.Dialer
			lastErr = errors.New("no addresses")
		)
		for _, addr := range addrs {
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err == nil {
				_ = conn.Close()
				return nil
			}
			lastErr = err
		}
		return errors.Wrap(lastErr, "dial")
	}
}
