package kvstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCommandTimeout = 5 * time.Second
	defaultDialTimeout    = 10 * time.Second
	defaultKeyPrefix      = "skybook:"
)

// RedisConfig captures the connection parameters for the Redis-backed store.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	// Timeout bounds every command round trip (including pipelines).
	Timeout     time.Duration
	DialTimeout time.Duration
	// MaxRetries is the number of retries the client performs on network
	// errors. Zero keeps the client default, a negative value disables retries.
	MaxRetries int
	PoolSize   int
	// KeyPrefix namespaces every key. An empty prefix keeps the default; use
	// NoKeyPrefix to disable prefixing entirely.
	KeyPrefix string
}

// NoKeyPrefix disables key prefixing when assigned to RedisConfig.KeyPrefix.
const NoKeyPrefix = "-"

// RedisStore implements Store on top of go-redis. Pipelines run inside
// MULTI/EXEC so Redis executes them without interleaving other clients.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisStore creates the client and pings the server so that misconfiguration
// is surfaced during application startup.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("kvstore: redis address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCommandTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	store := NewRedisStoreFromClient(redis.NewClient(opts), cfg.KeyPrefix, cfg.Timeout)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("kvstore: connect to redis at %s: %w", cfg.Address, err)
	}
	return store, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string, timeout time.Duration) *RedisStore {
	switch prefix {
	case "":
		prefix = defaultKeyPrefix
	case NoKeyPrefix:
		prefix = ""
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &RedisStore{client: client, prefix: prefix, timeout: timeout}
}

// Close closes the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return translate(s.client.Ping(ctx).Err())
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.Get(ctx, s.prefixed(key)).Bytes()
	if err != nil {
		return nil, translate(err)
	}
	return val, nil
}

func (s *RedisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if ttl < 0 {
		ttl = 0
	}
	return translate(s.client.Set(ctx, s.prefixed(key), value, ttl).Err())
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.client.Del(ctx, s.prefixedAll(keys)...).Result()
	return n, translate(err)
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.client.Exists(ctx, s.prefixed(key)).Result()
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (s *RedisStore) FlushAll(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return translate(s.client.FlushAll(ctx).Err())
}

func (s *RedisStore) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.client.LPush(ctx, s.prefixed(key), toArgs(values)...).Result()
	return n, translate(err)
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	vals, err := s.client.LRange(ctx, s.prefixed(key), start, stop).Result()
	if err != nil {
		return nil, translate(err)
	}
	return toBytes(vals), nil
}

func (s *RedisStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return translate(s.client.LTrim(ctx, s.prefixed(key), start, stop).Err())
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.client.SAdd(ctx, s.prefixed(key), toArgs(members)...).Result()
	return n, translate(err)
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([][]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	vals, err := s.client.SMembers(ctx, s.prefixed(key)).Result()
	if err != nil {
		return nil, translate(err)
	}
	return toBytes(vals), nil
}

func (s *RedisStore) HSet(ctx context.Context, key, field string, value []byte) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.client.HSet(ctx, s.prefixed(key), field, value).Result()
	return n, translate(err)
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.client.HGet(ctx, s.prefixed(key), field).Bytes()
	if err != nil {
		return nil, translate(err)
	}
	return val, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	vals, err := s.client.HGetAll(ctx, s.prefixed(key)).Result()
	if err != nil {
		return nil, translate(err)
	}
	out := make(map[string][]byte, len(vals))
	for field, val := range vals {
		out[field] = []byte(val)
	}
	return out, nil
}

// Pipeline returns a MULTI/EXEC backed pipeline.
func (s *RedisStore) Pipeline() Pipeline {
	return &redisPipeline{store: s}
}

type pipelineOp func(ctx context.Context, pipe redis.Pipeliner)

type redisPipeline struct {
	store *RedisStore
	ops   []pipelineOp
}

func (p *redisPipeline) ZRemRangeByScore(key string, min, max float64) Pipeline {
	key = p.store.prefixed(key)
	p.ops = append(p.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max))
	})
	return p
}

func (p *redisPipeline) ZAdd(key string, score float64, member string) Pipeline {
	key = p.store.prefixed(key)
	p.ops = append(p.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
	})
	return p
}

func (p *redisPipeline) ZCard(key string) Pipeline {
	key = p.store.prefixed(key)
	p.ops = append(p.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.ZCard(ctx, key)
	})
	return p
}

func (p *redisPipeline) Expire(key string, ttl time.Duration) Pipeline {
	key = p.store.prefixed(key)
	p.ops = append(p.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.PExpire(ctx, key, ttl)
	})
	return p
}

func (p *redisPipeline) Len() int { return len(p.ops) }

func (p *redisPipeline) Exec(ctx context.Context) ([]Result, error) {
	if len(p.ops) == 0 {
		return nil, nil
	}
	ctx, cancel := p.store.withTimeout(ctx)
	defer cancel()

	cmds, err := p.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range p.ops {
			op(ctx, pipe)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, translate(err)
	}

	results := make([]Result, 0, len(p.ops))
	for _, cmd := range cmds {
		switch strings.ToLower(cmd.Name()) {
		case "multi", "exec":
			continue
		}
		switch c := cmd.(type) {
		case *redis.IntCmd:
			results = append(results, Result{Val: c.Val(), Err: translate(c.Err())})
		case *redis.BoolCmd:
			var v int64
			if c.Val() {
				v = 1
			}
			results = append(results, Result{Val: v, Err: translate(c.Err())})
		default:
			results = append(results, Result{Err: fmt.Errorf("kvstore: unexpected pipeline reply %T", cmd)})
		}
	}
	return results, nil
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= s.timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// prefixed namespaces key verbatim. Keys are never rewritten, so every
// distinct caller key stays a distinct Redis key.
func (s *RedisStore) prefixed(key string) string {
	return s.prefix + key
}

func (s *RedisStore) prefixedAll(keys []string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = s.prefixed(key)
	}
	return out
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return ErrNil
	case errors.Is(err, redis.ErrClosed):
		return fmt.Errorf("%w: %v", ErrClosed, err)
	case strings.HasPrefix(err.Error(), "WRONGTYPE"):
		return fmt.Errorf("%w: %v", ErrWrongType, err)
	default:
		return err
	}
}

func toArgs(values [][]byte) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func toBytes(values []string) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
