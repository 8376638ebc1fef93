package services

import (
	"time"

	"go.uber.org/zap"
)

const defaultQueryTimeout = 10 * time.Second

// Option customises the cache-backed services.
type Option func(*options)

type options struct {
	ttl        time.Duration
	now        func() time.Time
	log        *zap.Logger
	maxResults int
	// queryTimeout bounds a query shared by concurrent callers.
	queryTimeout time.Duration
}

// WithTTL overrides the cache lifetime of the service's results.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithMaxResults caps the number of rows a query returns.
func WithMaxResults(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxResults = n
		}
	}
}

// WithQueryTimeout bounds database reads that are shared between callers.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.queryTimeout = d
		}
	}
}

func buildOptions(defaults options, opts []Option) options {
	o := defaults
	if o.now == nil {
		o.now = time.Now
	}
	if o.queryTimeout <= 0 {
		o.queryTimeout = defaultQueryTimeout
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func utcNow(o options) time.Time {
	return o.now().UTC()
}
