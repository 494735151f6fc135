package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of one limit check. Reset is the start of the next
// window.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RetryAfter is the time left until Reset, rounded up to whole seconds.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.Reset.Sub(now)
	if d <= 0 {
		return 0
	}
	return ((d + time.Second - 1) / time.Second) * time.Second
}

type Limiter interface {
	Name() string
	Limit(ctx context.Context, identity string) (Result, error)
}

type Options struct {
	Name   string
	Prefix string
	Max    int
	Window time.Duration
	Now    func() time.Time
}

// MinWindow is the smallest window a limiter accepts. Buckets are counted in
// whole milliseconds.
const MinWindow = time.Millisecond

func (o Options) validate() error {
	if o.Max <= 0 {
		return fmt.Errorf("limiter %q: max must be positive, got %d", o.Name, o.Max)
	}
	if o.Window < MinWindow {
		return fmt.Errorf("limiter %q: window must be at least %s, got %s", o.Name, MinWindow, o.Window)
	}
	return nil
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) key(identity string, bucket int64) string {
	return fmt.Sprintf("%s:%s:%d:%d", o.Prefix, identity, o.Window.Milliseconds(), bucket)
}

// bucketStart returns floor(now/window)*window in milliseconds.
func bucketStart(now time.Time, window time.Duration) int64 {
	ms := window.Milliseconds()
	return (now.UnixMilli() / ms) * ms
}

func remaining(max int, count int64) int {
	left := int64(max) - count
	if left < 0 {
		return 0
	}
	return int(left)
}
