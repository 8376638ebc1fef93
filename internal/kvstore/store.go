// Package kvstore abstracts the remote key-value store shared by the cache and
// rate-limiting layers. Implementations own connection management, command
// timeouts and retries; callers treat a Store as a stateless dependency.
package kvstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNil is returned when a key or hash field does not exist.
	ErrNil = errors.New("kvstore: nil")
	// ErrWrongType is returned when a command targets a key holding another data type.
	ErrWrongType = errors.New("kvstore: operation against a key holding the wrong kind of value")
	// ErrClosed is returned by stores that have been closed.
	ErrClosed = errors.New("kvstore: store closed")
)

// Store is the set of store capabilities the application depends on.
type Store interface {
	// Get returns the raw value for key or ErrNil.
	Get(ctx context.Context, key string) ([]byte, error)
	// SetEx writes value with the given expiry. A ttl <= 0 stores without expiry.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	// FlushAll clears the entire store, not just keys written by this process.
	FlushAll(ctx context.Context) error

	LPush(ctx context.Context, key string, values ...[]byte) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	LTrim(ctx context.Context, key string, start, stop int64) error

	SAdd(ctx context.Context, key string, members ...[]byte) (int64, error)
	SMembers(ctx context.Context, key string) ([][]byte, error)

	HSet(ctx context.Context, key, field string, value []byte) (int64, error)
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// Pipeline starts a batch of ordered-set commands that the store executes
	// as one atomic unit.
	Pipeline() Pipeline

	Ping(ctx context.Context) error
	Close() error
}

// Pipeline queues commands for a single atomic server-side execution.
// Queuing never fails; errors surface from Exec.
type Pipeline interface {
	ZRemRangeByScore(key string, min, max float64) Pipeline
	ZAdd(key string, score float64, member string) Pipeline
	ZCard(key string) Pipeline
	Expire(key string, ttl time.Duration) Pipeline
	// Len reports the number of queued commands.
	Len() int
	// Exec runs the queued commands and returns one Result per command, in order.
	Exec(ctx context.Context) ([]Result, error)
}

// Result is the reply of one pipelined command. All pipelined commands reply
// with an integer (removed/added counts, cardinality, or 1/0 for EXPIRE).
type Result struct {
	Val int64
	Err error
}
