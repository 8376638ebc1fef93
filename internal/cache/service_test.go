package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/skybook/internal/kvstore"
	"github.com/charlesng35/skybook/pkg/metrics"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, opts ...Option) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	store := kvstore.NewMemoryStore(kvstore.WithClock(clock.Now), kvstore.WithJanitorInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	return New(store, opts...), clock
}

// brokenStore fails every call the way an unreachable server would.
type brokenStore struct{ err error }

func (b brokenStore) Get(context.Context, string) ([]byte, error) { return nil, b.err }
func (b brokenStore) SetEx(context.Context, string, []byte, time.Duration) error {
	return b.err
}
func (b brokenStore) Del(context.Context, ...string) (int64, error) { return 0, b.err }
func (b brokenStore) Exists(context.Context, string) (bool, error) { return true, b.err }
func (b brokenStore) FlushAll(context.Context) error { return b.err }
func (b brokenStore) LPush(context.Context, string, ...[]byte) (int64, error) {
	return 0, b.err
}
func (b brokenStore) LRange(context.Context, string, int64, int64) ([][]byte, error) {
	return nil, b.err
}
func (b brokenStore) LTrim(context.Context, string, int64, int64) error { return b.err }
func (b brokenStore) SAdd(context.Context, string, ...[]byte) (int64, error) {
	return 0, b.err
}
func (b brokenStore) SMembers(context.Context, string) ([][]byte, error) { return nil, b.err }
func (b brokenStore) HSet(context.Context, string, string, []byte) (int64, error) {
	return 0, b.err
}
func (b brokenStore) HGet(context.Context, string, string) ([]byte, error) { return nil, b.err }
func (b brokenStore) HGetAll(context.Context, string) (map[string][]byte, error) {
	return nil, b.err
}
func (b brokenStore) Pipeline() kvstore.Pipeline { return nil }
func (b brokenStore) Ping(context.Context) error { return b.err }
func (b brokenStore) Close() error { return nil }

type recordingSink struct {
	mu     sync.Mutex
	timers []metrics.Tags
	counts map[string]int
}

func (r *recordingSink) Increment(name string, tags metrics.Tags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[name+":"+tags["result"]]++
}
func (r *recordingSink) Gauge(string, float64, metrics.Tags)     {}
func (r *recordingSink) Histogram(string, float64, metrics.Tags) {}
func (r *recordingSink) Timer(name string, tags metrics.Tags) func(metrics.Tags) time.Duration {
	return func(extra metrics.Tags) time.Duration {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.timers = append(r.timers, metrics.Merge(tags, extra))
		return 0
	}
}

type flightOffer struct {
	ID       string   `json:"id"`
	Price    float64  `json:"price"`
	Airlines []string `json:"airlines"`
}

func TestGetSetRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	offer := flightOffer{ID: "BA117", Price: 420.5, Airlines: []string{"BA"}}

	require.True(t, svc.Set(ctx, "offer:1", offer))

	got, ok := Get[flightOffer](ctx, svc, "offer:1")
	require.True(t, ok)
	require.Equal(t, offer, got)

	var into flightOffer
	require.True(t, svc.GetInto(ctx, "offer:1", &into))
	require.Equal(t, offer, into)
}

func TestGetMissOnAbsentKey(t *testing.T) {
	svc, _ := newTestService(t)

	got, ok := Get[flightOffer](context.Background(), svc, "missing")
	require.False(t, ok)
	require.Zero(t, got)
	require.False(t, svc.Exists(context.Background(), "missing"))
}

func TestTTLExpiry(t *testing.T) {
	svc, clock := newTestService(t, WithDefaultTTL(10*time.Second))
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "short", "v"))
	require.True(t, svc.SetWithTTL(ctx, "long", "v", time.Hour))
	require.True(t, svc.SetWithTTL(ctx, "forever", "v", 0))

	clock.Advance(11 * time.Second)

	_, ok := Get[string](ctx, svc, "short")
	require.False(t, ok)
	_, ok = Get[string](ctx, svc, "long")
	require.True(t, ok)

	clock.Advance(48 * time.Hour)
	_, ok = Get[string](ctx, svc, "forever")
	require.True(t, ok)
}

func TestDefaultTTL(t *testing.T) {
	svc, _ := newTestService(t)
	require.Equal(t, 5*time.Minute, svc.DefaultTTL())

	svc, _ = newTestService(t, WithDefaultTTL(-time.Second))
	require.Equal(t, DefaultTTL, svc.DefaultTTL())
}

func TestSetRejectsNegativeTTL(t *testing.T) {
	svc, _ := newTestService(t)
	require.False(t, svc.SetWithTTL(context.Background(), "k", "v", -time.Second))
}

func TestDelExistsFlush(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "a", 1))
	require.True(t, svc.Set(ctx, "b", 2))
	require.True(t, svc.Exists(ctx, "a"))

	require.True(t, svc.Del(ctx, "a"))
	require.False(t, svc.Exists(ctx, "a"))
	require.True(t, svc.Del(ctx, "a"), "deleting an absent key still succeeds")

	require.True(t, svc.Flush(ctx))
	require.False(t, svc.Exists(ctx, "b"))
}

func TestListSetHashWrappers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.EqualValues(t, 1, svc.LPush(ctx, "recent", flightOffer{ID: "1"}))
	require.EqualValues(t, 3, svc.LPush(ctx, "recent", flightOffer{ID: "2"}, flightOffer{ID: "3"}))
	require.True(t, svc.LTrim(ctx, "recent", 0, 1))

	recent := LRange[flightOffer](ctx, svc, "recent", 0, -1)
	require.Len(t, recent, 2)
	require.Equal(t, "3", recent[0].ID)
	require.Equal(t, "2", recent[1].ID)

	require.EqualValues(t, 2, svc.SAdd(ctx, "routes", "JFK-LHR", "SFO-NRT"))
	require.EqualValues(t, 0, svc.SAdd(ctx, "routes", "JFK-LHR"))
	require.ElementsMatch(t, []string{"JFK-LHR", "SFO-NRT"}, SMembers[string](ctx, svc, "routes"))

	require.EqualValues(t, 1, svc.HSet(ctx, "latest", "JFK-LHR", flightOffer{ID: "q1", Price: 399}))
	got, ok := HGet[flightOffer](ctx, svc, "latest", "JFK-LHR")
	require.True(t, ok)
	require.Equal(t, 399.0, got.Price)

	_, ok = HGet[flightOffer](ctx, svc, "latest", "LAX-SYD")
	require.False(t, ok)

	all := HGetAll[flightOffer](ctx, svc, "latest")
	require.Len(t, all, 1)
	require.Equal(t, "q1", all["JFK-LHR"].ID)
}

func TestEmptyResultsAreNonNil(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NotNil(t, LRange[string](ctx, svc, "none", 0, -1))
	require.NotNil(t, SMembers[string](ctx, svc, "none"))
	require.NotNil(t, HGetAll[string](ctx, svc, "none"))
}

func TestFailOpenOnStoreError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := &recordingSink{}
	svc := New(brokenStore{err: errors.New("dial tcp: connection refused")},
		WithLogger(zap.New(core)), WithMetrics(sink))
	ctx := context.Background()

	_, ok := Get[string](ctx, svc, "k")
	require.False(t, ok)
	require.False(t, svc.GetInto(ctx, "k", new(string)))
	require.False(t, svc.Set(ctx, "k", "v"))
	require.False(t, svc.SetWithTTL(ctx, "k", "v", time.Minute))
	require.False(t, svc.Del(ctx, "k"))
	require.False(t, svc.Exists(ctx, "k"))
	require.False(t, svc.Flush(ctx))
	require.Zero(t, svc.LPush(ctx, "k", "v"))
	require.Equal(t, []string{}, LRange[string](ctx, svc, "k", 0, -1))
	require.False(t, svc.LTrim(ctx, "k", 0, 1))
	require.Zero(t, svc.SAdd(ctx, "k", "v"))
	require.Equal(t, []string{}, SMembers[string](ctx, svc, "k"))
	require.Zero(t, svc.HSet(ctx, "k", "f", "v"))
	_, ok = HGet[string](ctx, svc, "k", "f")
	require.False(t, ok)
	require.Equal(t, map[string]string{}, HGetAll[string](ctx, svc, "k"))

	warnings := logs.FilterMessage("cache store failure").All()
	require.Len(t, warnings, 15)
	fields := warnings[0].ContextMap()
	require.Equal(t, "get", fields["op"])
	require.Equal(t, "k", fields["key"])

	for _, tags := range sink.timers {
		require.Equal(t, "error", tags["result"])
	}
}

func TestNilStoreFailsOpen(t *testing.T) {
	svc := New(nil, WithLogger(zap.NewNop()))
	require.False(t, svc.Set(context.Background(), "k", "v"))
	_, ok := Get[string](context.Background(), svc, "k")
	require.False(t, ok)
}

func TestDecodeFailureIsAMiss(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc, _ := newTestService(t, WithLogger(zap.New(core)))
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "k", "not a number"))
	_, ok := Get[int](ctx, svc, "k")
	require.False(t, ok)
	require.Equal(t, 1, logs.FilterMessage("cache codec failure").Len())

	svc.LPush(ctx, "list", "a")
	require.Equal(t, []int{}, LRange[int](ctx, svc, "list", 0, -1))
}

func TestEncodeFailureIsReported(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc, _ := newTestService(t, WithLogger(zap.New(core)))

	require.False(t, svc.Set(context.Background(), "k", make(chan int)))
	require.False(t, svc.Exists(context.Background(), "k"))
	require.Equal(t, 1, logs.FilterMessage("cache codec failure").Len())
}

type upperCodec struct{ JSONCodec }

func (upperCodec) Marshal(v any) ([]byte, error) {
	return []byte(`"CUSTOM"`), nil
}

func TestCustomCodec(t *testing.T) {
	svc, _ := newTestService(t, WithCodec(upperCodec{}))
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "k", "anything"))
	got, ok := Get[string](ctx, svc, "k")
	require.True(t, ok)
	require.Equal(t, "CUSTOM", got)
}

func TestMetricsRecordOutcome(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := newTestService(t, WithMetrics(sink))
	ctx := context.Background()

	Get[string](ctx, svc, "missing")
	svc.Set(ctx, "k", "v")
	Get[string](ctx, svc, "k")

	require.Equal(t, []metrics.Tags{
		{"op": "get", "result": "miss"},
		{"op": "set", "result": "ok"},
		{"op": "get", "result": "ok"},
	}, sink.timers)
	require.Equal(t, 1, sink.counts["cache_lookup:hit"])
	require.Equal(t, 1, sink.counts["cache_lookup:miss"])
}

func TestServiceIsSafeForConcurrentUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc.Set(ctx, "shared", i)
			Get[int](ctx, svc, "shared")
			svc.LPush(ctx, "list", i)
		}(i)
	}
	wg.Wait()

	require.Len(t, LRange[int](ctx, svc, "list", 0, -1), 20)
}
