package kvstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// storeFactory returns a fresh store and a function that advances its notion of time.
type storeFactory func(t *testing.T) (Store, func(time.Duration))

func runStoreContract(t *testing.T, newStore storeFactory) {
	t.Helper()
	ctx := context.Background()

	t.Run("scalar round trip", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.SetEx(ctx, "greeting", []byte("hello"), time.Minute))

		val, err := store.Get(ctx, "greeting")
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), val)

		ok, err := store.Exists(ctx, "greeting")
		require.NoError(t, err)
		require.True(t, ok)

		_, err = store.Get(ctx, "missing")
		require.True(t, errors.Is(err, ErrNil))
	})

	t.Run("expiry", func(t *testing.T) {
		store, advance := newStore(t)
		require.NoError(t, store.SetEx(ctx, "short", []byte("v"), 2*time.Second))
		require.NoError(t, store.SetEx(ctx, "forever", []byte("v"), 0))

		advance(3 * time.Second)

		_, err := store.Get(ctx, "short")
		require.ErrorIs(t, err, ErrNil)
		val, err := store.Get(ctx, "forever")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), val)
	})

	t.Run("delete and flush", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.SetEx(ctx, "a", []byte("1"), 0))
		require.NoError(t, store.SetEx(ctx, "b", []byte("2"), 0))

		n, err := store.Del(ctx, "a", "missing")
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		require.NoError(t, store.FlushAll(ctx))
		ok, err := store.Exists(ctx, "b")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("lists", func(t *testing.T) {
		store, _ := newStore(t)
		n, err := store.LPush(ctx, "recent", []byte("a"), []byte("b"))
		require.NoError(t, err)
		require.EqualValues(t, 2, n)
		n, err = store.LPush(ctx, "recent", []byte("c"))
		require.NoError(t, err)
		require.EqualValues(t, 3, n)

		vals, err := store.LRange(ctx, "recent", 0, -1)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("c"), []byte("b"), []byte("a")}, vals)

		require.NoError(t, store.LTrim(ctx, "recent", 0, 1))
		vals, err = store.LRange(ctx, "recent", 0, -1)
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("c"), []byte("b")}, vals)

		vals, err = store.LRange(ctx, "nothing", 0, -1)
		require.NoError(t, err)
		require.Empty(t, vals)
	})

	t.Run("sets", func(t *testing.T) {
		store, _ := newStore(t)
		n, err := store.SAdd(ctx, "routes", []byte("JFK-LHR"), []byte("SFO-NRT"), []byte("JFK-LHR"))
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		members, err := store.SMembers(ctx, "routes")
		require.NoError(t, err)
		require.ElementsMatch(t, [][]byte{[]byte("JFK-LHR"), []byte("SFO-NRT")}, members)
	})

	t.Run("hashes", func(t *testing.T) {
		store, _ := newStore(t)
		n, err := store.HSet(ctx, "quotes", "JFK-LHR", []byte("420"))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		n, err = store.HSet(ctx, "quotes", "JFK-LHR", []byte("399"))
		require.NoError(t, err)
		require.EqualValues(t, 0, n)

		val, err := store.HGet(ctx, "quotes", "JFK-LHR")
		require.NoError(t, err)
		require.Equal(t, []byte("399"), val)

		_, err = store.HGet(ctx, "quotes", "SFO-NRT")
		require.ErrorIs(t, err, ErrNil)

		all, err := store.HGetAll(ctx, "quotes")
		require.NoError(t, err)
		require.Equal(t, map[string][]byte{"JFK-LHR": []byte("399")}, all)
	})

	t.Run("wrong type", func(t *testing.T) {
		store, _ := newStore(t)
		require.NoError(t, store.SetEx(ctx, "scalar", []byte("x"), 0))
		_, err := store.LPush(ctx, "scalar", []byte("y"))
		require.ErrorIs(t, err, ErrWrongType)
	})

	t.Run("sliding window pipeline", func(t *testing.T) {
		store, advance := newStore(t)
		exec := func(now float64, member string) []Result {
			results, err := store.Pipeline().
				ZRemRangeByScore("rl", 0, now-1000).
				ZAdd("rl", now, member).
				ZCard("rl").
				Expire("rl", time.Second).
				Exec(ctx)
			require.NoError(t, err)
			require.Len(t, results, 4)
			for _, r := range results {
				require.NoError(t, r.Err)
			}
			return results
		}

		require.EqualValues(t, 1, exec(10_000, "a")[2].Val)
		require.EqualValues(t, 2, exec(10_500, "b")[2].Val)
		res := exec(11_200, "c")
		require.EqualValues(t, 1, res[0].Val, "event a left the window")
		require.EqualValues(t, 2, res[2].Val)
		require.EqualValues(t, 1, res[3].Val)

		advance(2 * time.Second)
		ok, err := store.Exists(ctx, "rl")
		require.NoError(t, err)
		require.False(t, ok, "window key expires after one window of inactivity")
	})

	t.Run("empty pipeline", func(t *testing.T) {
		store, _ := newStore(t)
		pipe := store.Pipeline()
		require.Zero(t, pipe.Len())
		results, err := pipe.Exec(ctx)
		require.NoError(t, err)
		require.Empty(t, results)
	})
}
