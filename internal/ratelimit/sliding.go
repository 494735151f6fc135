package ratelimit

import (
	"context"
	"math"
	"time"
)

// SlidingWindow approximates a rolling window from two adjacent fixed
// buckets. The previous bucket counts in proportion to how much of it still
// overlaps the rolling window.
type SlidingWindow struct {
	store Store
	opts  Options
}

func NewSlidingWindow(store Store, opts Options) (*SlidingWindow, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &SlidingWindow{store: store, opts: opts}, nil
}

func (l *SlidingWindow) Name() string {
	return l.opts.Name
}

func (l *SlidingWindow) Limit(ctx context.Context, identity string) (Result, error) {
	now := l.opts.now()
	windowMs := l.opts.Window.Milliseconds()
	bucket := bucketStart(now, l.opts.Window)

	current, err := l.store.Increment(ctx, l.opts.key(identity, bucket), 2*l.opts.Window)
	if err != nil {
		return Result{}, err
	}

	previous, err := l.store.Get(ctx, l.opts.key(identity, bucket-windowMs))
	if err != nil {
		return Result{}, err
	}

	elapsed := float64(now.UnixMilli()-bucket) / float64(windowMs)
	weighted := int64(math.Floor(float64(previous)*(1-elapsed))) + current

	return Result{
		Allowed:   weighted <= int64(l.opts.Max),
		Limit:     l.opts.Max,
		Remaining: remaining(l.opts.Max, weighted),
		Reset:     time.UnixMilli(bucket + windowMs),
	}, nil
}
