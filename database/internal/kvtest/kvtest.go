// Package kvtest is a conformance suite for h2kv.KV implementations.
package kvtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2kv/h2kv"
)

// Run exercises kv returned by newKV. Each subtest gets a fresh adapter.
func Run(t *testing.T, newKV func(t *testing.T) h2kv.KV) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		kv := newKV(t)
		_, err := kv.Get(context.Background(), []byte("missing"))
		assert.ErrorIs(t, err, h2kv.ErrNotFound)
	})

	t.Run("put then get", func(t *testing.T) {
		kv := newKV(t)
		ctx := context.Background()

		require.NoError(t, kv.Put(ctx, []byte("o/a\x00txt"), []byte("hello")))

		v, err := kv.Get(ctx, []byte("o/a\x00txt"))
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), v)
	})

	t.Run("put overwrites", func(t *testing.T) {
		kv := newKV(t)
		ctx := context.Background()

		require.NoError(t, kv.Put(ctx, []byte("k"), []byte("one")))
		require.NoError(t, kv.Put(ctx, []byte("k"), []byte("two")))

		v, err := kv.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), v)
	})

	t.Run("empty value", func(t *testing.T) {
		kv := newKV(t)
		ctx := context.Background()

		require.NoError(t, kv.Put(ctx, []byte("k"), []byte{}))

		v, err := kv.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("delete", func(t *testing.T) {
		kv := newKV(t)
		ctx := context.Background()

		require.NoError(t, kv.Put(ctx, []byte("k"), []byte("v")))
		require.NoError(t, kv.Delete(ctx, []byte("k")))

		_, err := kv.Get(ctx, []byte("k"))
		assert.ErrorIs(t, err, h2kv.ErrNotFound)
	})

	t.Run("delete missing key", func(t *testing.T) {
		kv := newKV(t)
		assert.NoError(t, kv.Delete(context.Background(), []byte("missing")))
	})

	t.Run("scan prefix in order", func(t *testing.T) {
		kv := newKV(t)
		ctx := context.Background()

		for _, k := range []string{"o/b\x00", "o/a\x00txt", "s/a\x00txt", "o/a\x00html", "o/ab\x00", "n/z"} {
			require.NoError(t, kv.Put(ctx, []byte(k), []byte(k)))
		}

		var got []string
		err := kv.Scan(ctx, []byte("o/a\x00"), func(k, v []byte) error {
			assert.Equal(t, k, v)
			got = append(got, string(k))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"o/a\x00html", "o/a\x00txt"}, got)

		got = nil
		err = kv.Scan(ctx, []byte("o/"), func(k, _ []byte) error {
			got = append(got, string(k))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"o/a\x00html", "o/a\x00txt", "o/ab\x00", "o/b\x00"}, got)
	})

	t.Run("scan empty prefix", func(t *testing.T) {
		kv := newKV(t)
		ctx := context.Background()

		require.NoError(t, kv.Put(ctx, []byte("b"), []byte("2")))
		require.NoError(t, kv.Put(ctx, []byte("a"), []byte("1")))

		var got []string
		err := kv.Scan(ctx, nil, func(k, _ []byte) error {
			got = append(got, string(k))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got)
	})

	t.Run("scan stops on callback error", func(t *testing.T) {
		kv := newKV(t)
		ctx := context.Background()

		for i := range 5 {
			require.NoError(t, kv.Put(ctx, fmt.Appendf(nil, "k%d", i), []byte("v")))
		}

		stop := errors.New("stop")
		calls := 0
		err := kv.Scan(ctx, []byte("k"), func(_, _ []byte) error {
			calls++
			if calls == 2 {
				return stop
			}
			return nil
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 2, calls)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		kv := newKV(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 10 {
					assert.NoError(t, kv.Put(ctx, fmt.Appendf(nil, "w%d/%d", i, j), []byte("v")))
				}
			}()
		}
		wg.Wait()

		count := 0
		require.NoError(t, kv.Scan(ctx, []byte("w"), func(_, _ []byte) error {
			count++
			return nil
		}))
		assert.Equal(t, 80, count)
	})
}
