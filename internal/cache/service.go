// Package cache provides the typed, fail-open cache used by every higher-level
// service. Values always pass through a Codec before reaching the store and no
// operation ever returns an error to its caller: store outages, timeouts and
// codec failures are logged and converted to the operation's safe default.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/pkg/logger"
	"github.com/charlesng35/skybook/pkg/metrics"
)

const operationMetric = "cache_operation"

const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultOK    = "ok"
	resultError = "error"
)

// Option customises a Service.
type Option func(*Service)

// WithCodec replaces the JSON codec.
func WithCodec(codec Codec) Option {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithDefaultTTL overrides DefaultTTL for Set.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(sink metrics.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.metrics = sink
		}
	}
}

// Service is a stateless façade over a kvstore.Store.
type Service struct {
	store      kvstore.Store
	codec      Codec
	defaultTTL time.Duration
	log        *zap.Logger
	metrics    metrics.Sink
}

// New constructs a cache service. A nil store yields a service where every
// operation returns its safe default.
func New(store kvstore.Store, opts ...Option) *Service {
	s := &Service{
		store:      store,
		codec:      JSONCodec{},
		defaultTTL: DefaultTTL,
		log:        logger.WithModule("cache"),
		metrics:    metrics.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// DefaultTTL reports the TTL applied by Set.
func (s *Service) DefaultTTL() time.Duration {
	return s.defaultTTL
}

var errNoStore = errors.New("cache: store not configured")

// execute runs fn against the store and applies the fail-open policy: a
// missing key is a miss, any other error is logged and replaced by fallback.
func execute[T any](ctx context.Context, s *Service, op, key string, fallback T, fn func(context.Context, kvstore.Store) (T, error)) T {
	if ctx == nil {
		ctx = context.Background()
	}
	stop := s.metrics.Timer(operationMetric, metrics.Tags{"op": op})

	if s.store == nil {
		stop(metrics.Tags{"result": resultError})
		s.log.Warn("cache operation skipped", zap.String("op", op), zap.String("key", key), zap.Error(errNoStore))
		return fallback
	}

	value, err := fn(ctx, s.store)
	switch {
	case err == nil:
		stop(metrics.Tags{"result": resultOK})
		return value
	case errors.Is(err, kvstore.ErrNil):
		stop(metrics.Tags{"result": resultMiss})
		s.log.Debug("cache miss", zap.String("op", op), zap.String("key", key))
		return fallback
	}

	stop(metrics.Tags{"result": resultError})
	var cerr *codecError
	if errors.As(err, &cerr) {
		s.log.Error("cache codec failure", zap.String("op", op), zap.String("key", key), zap.Error(err))
	} else {
		s.log.Warn("cache store failure", zap.String("op", op), zap.String("key", key), zap.Error(err))
	}
	return fallback
}

func (s *Service) encode(v any) ([]byte, error) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		return nil, &codecError{err: err}
	}
	return data, nil
}

func (s *Service) decode(data []byte, v any) error {
	if err := s.codec.Unmarshal(data, v); err != nil {
		return &codecError{err: err}
	}
	return nil
}

func (s *Service) encodeAll(values []any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		data, err := s.encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}

type lookup[T any] struct {
	value T
	found bool
}

// Get reads and decodes key. The boolean is false on a miss or any failure.
func Get[T any](ctx context.Context, s *Service, key string) (T, bool) {
	res := execute(ctx, s, "get", key, lookup[T]{}, func(ctx context.Context, store kvstore.Store) (lookup[T], error) {
		raw, err := store.Get(ctx, key)
		if err != nil {
			return lookup[T]{}, err
		}
		var v T
		if err := s.decode(raw, &v); err != nil {
			return lookup[T]{}, err
		}
		return lookup[T]{value: v, found: true}, nil
	})
	if res.found {
		s.metrics.Increment("cache_lookup", metrics.Tags{"result": resultHit})
	} else {
		s.metrics.Increment("cache_lookup", metrics.Tags{"result": resultMiss})
	}
	return res.value, res.found
}

// GetInto decodes key into dest, which must be a pointer.
func (s *Service) GetInto(ctx context.Context, key string, dest any) bool {
	return execute(ctx, s, "get", key, false, func(ctx context.Context, store kvstore.Store) (bool, error) {
		raw, err := store.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if err := s.decode(raw, dest); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Set stores value under key with the default TTL.
func (s *Service) Set(ctx context.Context, key string, value any) bool {
	return s.SetWithTTL(ctx, key, value, s.defaultTTL)
}

// SetWithTTL stores value under key. A zero ttl stores without expiry.
func (s *Service) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) bool {
	return execute(ctx, s, "set", key, false, func(ctx context.Context, store kvstore.Store) (bool, error) {
		if ttl < 0 {
			return false, fmt.Errorf("cache: negative ttl %s", ttl)
		}
		data, err := s.encode(value)
		if err != nil {
			return false, err
		}
		if err := store.SetEx(ctx, key, data, ttl); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Del removes key. It reports whether the store accepted the command, not
// whether the key existed.
func (s *Service) Del(ctx context.Context, key string) bool {
	return execute(ctx, s, "del", key, false, func(ctx context.Context, store kvstore.Store) (bool, error) {
		if _, err := store.Del(ctx, key); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *Service) Exists(ctx context.Context, key string) bool {
	return execute(ctx, s, "exists", key, false, func(ctx context.Context, store kvstore.Store) (bool, error) {
		return store.Exists(ctx, key)
	})
}

// Flush clears the whole store, including keys owned by other services.
func (s *Service) Flush(ctx context.Context) bool {
	return execute(ctx, s, "flush", "*", false, func(ctx context.Context, store kvstore.Store) (bool, error) {
		if err := store.FlushAll(ctx); err != nil {
			return false, err
		}
		s.log.Info("cache flushed")
		return true, nil
	})
}

// LPush prepends the encoded values and returns the new list length.
func (s *Service) LPush(ctx context.Context, key string, values ...any) int64 {
	return execute(ctx, s, "lpush", key, int64(0), func(ctx context.Context, store kvstore.Store) (int64, error) {
		encoded, err := s.encodeAll(values)
		if err != nil {
			return 0, err
		}
		return store.LPush(ctx, key, encoded...)
	})
}

// LRange returns the decoded elements between start and stop (inclusive,
// negative indices count from the tail).
func LRange[T any](ctx context.Context, s *Service, key string, start, stop int64) []T {
	return execute(ctx, s, "lrange", key, []T{}, func(ctx context.Context, store kvstore.Store) ([]T, error) {
		raw, err := store.LRange(ctx, key, start, stop)
		if err != nil {
			return nil, err
		}
		return decodeSlice[T](s, raw)
	})
}

func (s *Service) LTrim(ctx context.Context, key string, start, stop int64) bool {
	return execute(ctx, s, "ltrim", key, false, func(ctx context.Context, store kvstore.Store) (bool, error) {
		if err := store.LTrim(ctx, key, start, stop); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SAdd adds the encoded members and returns how many were new.
func (s *Service) SAdd(ctx context.Context, key string, members ...any) int64 {
	return execute(ctx, s, "sadd", key, int64(0), func(ctx context.Context, store kvstore.Store) (int64, error) {
		encoded, err := s.encodeAll(members)
		if err != nil {
			return 0, err
		}
		return store.SAdd(ctx, key, encoded...)
	})
}

func SMembers[T any](ctx context.Context, s *Service, key string) []T {
	return execute(ctx, s, "smembers", key, []T{}, func(ctx context.Context, store kvstore.Store) ([]T, error) {
		raw, err := store.SMembers(ctx, key)
		if err != nil {
			return nil, err
		}
		return decodeSlice[T](s, raw)
	})
}

// HSet stores the encoded value in field and returns 1 when the field is new.
func (s *Service) HSet(ctx context.Context, key, field string, value any) int64 {
	return execute(ctx, s, "hset", key, int64(0), func(ctx context.Context, store kvstore.Store) (int64, error) {
		data, err := s.encode(value)
		if err != nil {
			return 0, err
		}
		return store.HSet(ctx, key, field, data)
	})
}

func HGet[T any](ctx context.Context, s *Service, key, field string) (T, bool) {
	res := execute(ctx, s, "hget", key, lookup[T]{}, func(ctx context.Context, store kvstore.Store) (lookup[T], error) {
		raw, err := store.HGet(ctx, key, field)
		if err != nil {
			return lookup[T]{}, err
		}
		var v T
		if err := s.decode(raw, &v); err != nil {
			return lookup[T]{}, err
		}
		return lookup[T]{value: v, found: true}, nil
	})
	return res.value, res.found
}

func HGetAll[T any](ctx context.Context, s *Service, key string) map[string]T {
	return execute(ctx, s, "hgetall", key, map[string]T{}, func(ctx context.Context, store kvstore.Store) (map[string]T, error) {
		raw, err := store.HGetAll(ctx, key)
		if err != nil {
			return nil, err
		}
		out := make(map[string]T, len(raw))
		for field, data := range raw {
			var v T
			if err := s.decode(data, &v); err != nil {
				return nil, err
			}
			out[field] = v
		}
		return out, nil
	})
}

// decodeSlice decodes every element; one bad element fails the whole call.
func decodeSlice[T any](s *Service, raw [][]byte) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, data := range raw {
		var v T
		if err := s.decode(data, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
