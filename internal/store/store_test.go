package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swimmadude66/tectonica/internal/engine/enginemock"
	"github.com/swimmadude66/tectonica/internal/store"
	"github.com/swimmadude66/tectonica/internal/vm"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	v, err := vm.NewVM(vm.VMConfig{Engine: &enginemock.MockEngine{}})
	require.NoError(t, err)

	s, err := store.NewStore(store.StoreConfig{VM: v})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func TestStoreSetGetDelete(t *testing.T) {
	tests := map[string]struct {
		run func(ctx context.Context, t *testing.T, s *store.Store)
	}{
		"A stored value should be returned by its key.": {
			run: func(ctx context.Context, t *testing.T, s *store.Store) {
				require.NoError(t, s.Set(ctx, "greeting", "hello"))

				v, ok := s.Get("greeting")
				assert.True(t, ok)
				assert.Equal(t, "hello", v)
			},
		},

		"A missing key should miss.": {
			run: func(ctx context.Context, t *testing.T, s *store.Store) {
				_, ok := s.Get("nope")
				assert.False(t, ok)
			},
		},

		"Setting an existing key should replace its value.": {
			run: func(ctx context.Context, t *testing.T, s *store.Store) {
				require.NoError(t, s.Set(ctx, "n", 1))
				require.NoError(t, s.Set(ctx, "n", 2))

				v, _ := s.Get("n")
				assert.Equal(t, 2, v)
			},
		},

		"Deleting a key should remove it.": {
			run: func(ctx context.Context, t *testing.T, s *store.Store) {
				require.NoError(t, s.Set(ctx, "gone", true))
				require.NoError(t, s.Delete(ctx, "gone"))

				_, ok := s.Get("gone")
				assert.False(t, ok)
			},
		},

		"Keys should come back sorted.": {
			run: func(ctx context.Context, t *testing.T, s *store.Store) {
				require.NoError(t, s.Set(ctx, "b", 1))
				require.NoError(t, s.Set(ctx, "a", 2))
				require.NoError(t, s.Set(ctx, "c", 3))

				assert.Equal(t, []string{"a", "b", "c"}, s.Keys())
			},
		},

		"A closed store should refuse writes.": {
			run: func(ctx context.Context, t *testing.T, s *store.Store) {
				s.Close()

				assert.Error(t, s.Set(ctx, "k", 1))
				assert.Error(t, s.Delete(ctx, "k"))
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test.run(context.Background(), t, newTestStore(t))
		})
	}
}

func TestStoreWatch(t *testing.T) {
	recv := func(t *testing.T, ch <-chan store.Change) store.Change {
		t.Helper()
		select {
		case c := <-ch:
			return c
		case <-time.After(2 * time.Second):
			t.Fatal("no change received")
			return store.Change{}
		}
	}

	t.Run("A watcher should receive changes for its key only.", func(t *testing.T) {
		ctx := context.Background()
		s := newTestStore(t)

		ch, cancel := s.Watch("wanted")
		defer cancel()

		require.NoError(t, s.Set(ctx, "other", 1))
		require.NoError(t, s.Set(ctx, "wanted", 2))

		c := recv(t, ch)
		assert.Equal(t, store.Change{Key: "wanted", Value: 2}, c)
	})

	t.Run("An empty key should watch everything.", func(t *testing.T) {
		ctx := context.Background()
		s := newTestStore(t)

		ch, cancel := s.Watch("")
		defer cancel()

		require.NoError(t, s.Set(ctx, "a", 1))
		require.NoError(t, s.Delete(ctx, "a"))

		assert.Equal(t, store.Change{Key: "a", Value: 1}, recv(t, ch))
		assert.Equal(t, store.Change{Key: "a", Deleted: true}, recv(t, ch))
	})

	t.Run("Deleting a missing key should not notify.", func(t *testing.T) {
		ctx := context.Background()
		s := newTestStore(t)

		ch, cancel := s.Watch("")
		defer cancel()

		require.NoError(t, s.Delete(ctx, "never-set"))

		select {
		case c := <-ch:
			t.Fatalf("unexpected change: %+v", c)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("Cancelling a watcher should close its channel.", func(t *testing.T) {
		s := newTestStore(t)

		ch, cancel := s.Watch("k")
		cancel()

		_, open := <-ch
		assert.False(t, open)
	})

	t.Run("A full watcher should drop changes instead of blocking.", func(t *testing.T) {
		ctx := context.Background()

		v, err := vm.NewVM(vm.VMConfig{Engine: &enginemock.MockEngine{}})
		require.NoError(t, err)
		s, err := store.NewStore(store.StoreConfig{VM: v, WatchBuffer: 1})
		require.NoError(t, err)
		t.Cleanup(s.Close)

		ch, cancel := s.Watch("k")
		defer cancel()

		require.NoError(t, s.Set(ctx, "k", 1))
		require.NoError(t, s.Set(ctx, "k", 2)) // Dropped, watcher is full.

		c := recv(t, ch)
		assert.Equal(t, store.Change{Key: "k", Value: 1}, c)
	})

	t.Run("Closing the store should close watcher channels.", func(t *testing.T) {
		s := newTestStore(t)

		ch, _ := s.Watch("k")
		s.Close()

		_, open := <-ch
		assert.False(t, open)
	})
}
