package ratelimit

import (
	"context"
	"time"
)

// FixedWindow counts requests per aligned window.
type FixedWindow struct {
	store Store
	opts  Options
}

func NewFixedWindow(store Store, opts Options) (*FixedWindow, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &FixedWindow{store: store, opts: opts}, nil
}

func (l *FixedWindow) Name() string {
	return l.opts.Name
}

func (l *FixedWindow) Limit(ctx context.Context, identity string) (Result, error) {
	now := l.opts.now()
	bucket := bucketStart(now, l.opts.Window)

	count, err := l.store.Increment(ctx, l.opts.key(identity, bucket), l.opts.Window)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Allowed:   count <= int64(l.opts.Max),
		Limit:     l.opts.Max,
		Remaining: remaining(l.opts.Max, count),
		Reset:     time.UnixMilli(bucket + l.opts.Window.Milliseconds()),
	}, nil
}
