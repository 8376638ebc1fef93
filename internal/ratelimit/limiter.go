// Package ratelimit implements a sliding-window log limiter on top of the
// store's ordered sets. Every Check is one atomic pipeline, so concurrent
// callers across processes observe a consistent count without client locks.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/pkg/logger"
	"github.com/charlesng35/skybook/pkg/metrics"
)

const (
	checkMetric    = "ratelimit_check"
	pipelineLength = 4
	cardIndex      = 2
)

var (
	errInvalidWindow = errors.New("ratelimit: window must be positive")
	errShortReply    = errors.New("ratelimit: pipeline returned fewer results than commands")
	errNoStore       = errors.New("ratelimit: store not configured")
)

// Decision is the outcome of a Check.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	// ResetTime is the epoch millisecond at which the current window ends.
	ResetTime int64 `json:"resetTime"`
}

// ResetAt returns ResetTime as a time.Time.
func (d Decision) ResetAt() time.Time {
	return time.UnixMilli(d.ResetTime)
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithPrefix namespaces every window key.
func WithPrefix(prefix string) Option {
	return func(l *Limiter) {
		l.prefix = prefix
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Limiter) {
		if log != nil {
			l.log = log
		}
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(l *Limiter) {
		if sink != nil {
			l.metrics = sink
		}
	}
}

// WithTimestampMembers records each event under its millisecond timestamp
// alone. Events sharing a millisecond then count once, matching deployments
// that still read windows written by older releases.
func WithTimestampMembers() Option {
	return func(l *Limiter) {
		l.timestampMembers = true
	}
}

// Limiter decides whether an event keyed by an arbitrary identifier is within
// its allowance.
type Limiter struct {
	store            kvstore.Store
	prefix           string
	now              func() time.Time
	log              *zap.Logger
	metrics          metrics.Sink
	timestampMembers bool
}

func New(store kvstore.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:   store,
		prefix:  "ratelimit:",
		now:     time.Now,
		log:     logger.WithModule("ratelimit"),
		metrics: metrics.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Check records one event for key and reports whether the number of events in
// the trailing window, including this one, is within limit. Denied events are
// recorded too. On any failure the event is allowed with full remaining quota.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if ctx == nil {
		ctx = context.Background()
	}
	now := l.now().UnixMilli()
	windowMs := window.Milliseconds()
	stop := l.metrics.Timer(checkMetric, nil)

	count, err := l.record(ctx, l.prefix+key, now, windowMs, window)
	if err != nil {
		stop(metrics.Tags{"result": "error"})
		l.log.Warn("rate limit check failed open",
			zap.String("op", "check"),
			zap.String("key", key),
			zap.Int("limit", limit),
			zap.Duration("window", window),
			zap.Error(err),
		)
		return Decision{Allowed: true, Remaining: max(limit, 0), ResetTime: now + windowMs}
	}

	decision := Decision{
		Allowed:   count <= int64(limit),
		Remaining: int(max(int64(limit)-count, 0)),
		ResetTime: now + windowMs,
	}
	if decision.Allowed {
		stop(metrics.Tags{"result": "allowed"})
	} else {
		stop(metrics.Tags{"result": "denied"})
		l.log.Debug("rate limit exceeded", zap.String("key", key), zap.Int64("count", count), zap.Int("limit", limit))
	}
	return decision
}

func (l *Limiter) record(ctx context.Context, key string, now, windowMs int64, window time.Duration) (int64, error) {
	if l.store == nil {
		return 0, errNoStore
	}
	if windowMs <= 0 {
		return 0, errInvalidWindow
	}

	windowStart := now - windowMs
	results, err := l.store.Pipeline().
		ZRemRangeByScore(key, 0, float64(windowStart)).
		ZAdd(key, float64(now), l.member(now)).
		ZCard(key).
		Expire(key, window).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: exec pipeline: %w", err)
	}
	if len(results) < pipelineLength {
		return 0, errShortReply
	}
	for _, res := range results {
		if res.Err != nil {
			return 0, fmt.Errorf("ratelimit: pipeline command: %w", res.Err)
		}
	}
	return results[cardIndex].Val, nil
}

func (l *Limiter) member(now int64) string {
	ts := strconv.FormatInt(now, 10)
	if l.timestampMembers {
		return ts
	}
	return ts + "-" + uuid.NewString()
}

// Reset discards the window for key.
func (l *Limiter) Reset(ctx context.Context, key string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if l.store == nil {
		l.log.Warn("rate limit reset skipped", zap.String("key", key), zap.Error(errNoStore))
		return false
	}
	if _, err := l.store.Del(ctx, l.prefix+key); err != nil {
		l.log.Warn("rate limit reset failed", zap.String("op", "reset"), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
