package lib_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swimmadude66/tectonica/pkg/lib"
)

// newTestClient creates a client with a ready sandbox for test isolation.
func newTestClient(t *testing.T, cfg lib.Config) *lib.Client {
	t.Helper()

	ctx := context.Background()
	client, err := lib.New(ctx, cfg)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close(ctx)
	})

	return client
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    lib.Config
		expErr bool
	}{
		"An empty config should work.": {
			cfg: lib.Config{},
		},

		"Resource limits should be accepted.": {
			cfg: lib.Config{MemoryLimitMB: 64, MaxStackKB: 512},
		},

		"Globals should be registered at startup.": {
			cfg: lib.Config{Globals: map[string]any{"answer": float64(42)}},
		},

		"A negative memory limit should fail.": {
			cfg:    lib.Config{MemoryLimitMB: -1},
			expErr: true,
		},

		"A negative stack limit should fail.": {
			cfg:    lib.Config{MaxStackKB: -1},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			client, err := lib.New(ctx, test.cfg)

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer client.Close(ctx)

			assert.Equal(t, lib.VMStatusReady, client.Status())
		})
	}
}

func TestEval(t *testing.T) {
	tests := map[string]struct {
		src    string
		expVal any
		expErr bool
	}{
		"An expression should return its completion value.": {
			src:    "21 * 2",
			expVal: float64(42),
		},

		"Strings should cross as Go strings.": {
			src:    `"he" + "llo"`,
			expVal: "hello",
		},

		"Null should cross as nil.": {
			src:    "null",
			expVal: nil,
		},

		"Undefined should cross as the explicit undefined type.": {
			src:    "undefined",
			expVal: lib.Undefined{},
		},

		"Arrays should cross as slices.": {
			src:    "[1, 2, 3]",
			expVal: []any{float64(1), float64(2), float64(3)},
		},

		"A syntax error should fail.": {
			src:    "][",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			client := newTestClient(t, lib.Config{})

			v, err := client.Eval(ctx, test.src)

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expVal, v)
		})
	}
}

func TestEvalRemote(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, lib.Config{})

	// Sandbox objects come back as live proxies, not copies.
	v, err := client.Eval(ctx, `({a: 1, b: "x"})`)
	require.NoError(t, err)

	r, ok := v.(*lib.Remote)
	require.True(t, ok)

	a, err := r.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, float64(1), a)

	b, err := r.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "x", b)
}

func TestEvalThrow(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, lib.Config{})

	_, err := client.Eval(ctx, `throw new Error("boom")`)
	require.Error(t, err)

	var evalErr *lib.EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Contains(t, evalErr.Message, "boom")
}

func TestScopedEval(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, lib.Config{})

	v, err := client.ScopedEval(ctx, "a + b", map[string]any{"a": float64(3), "b": float64(4)})
	require.NoError(t, err)
	assert.Equal(t, float64(7), v)

	// The scoped bindings must not leak into the global object.
	v, err = client.Eval(ctx, `typeof a`)
	require.NoError(t, err)
	assert.Equal(t, "undefined", v)
}

func TestRegisterGlobal(t *testing.T) {
	tests := map[string]struct {
		name   string
		value  any
		src    string
		expVal any
		expErr bool
		expIs  error
	}{
		"A registered primitive should be visible to scripts.": {
			name:   "answer",
			value:  float64(42),
			src:    "answer",
			expVal: float64(42),
		},

		"A registered function should be callable from scripts.": {
			name:   "double",
			value:  func(n float64) float64 { return n * 2 },
			src:    "double(21)",
			expVal: float64(42),
		},

		"An invalid identifier should fail.": {
			name:   "not a name",
			value:  float64(1),
			expErr: true,
			expIs:  lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			client := newTestClient(t, lib.Config{})

			err := client.RegisterGlobal(ctx, test.name, test.value)

			if test.expErr {
				require.Error(t, err)
				if test.expIs != nil {
					assert.True(t, errors.Is(err, test.expIs))
				}
				return
			}
			require.NoError(t, err)

			v, err := client.Eval(ctx, test.src)
			require.NoError(t, err)
			assert.Equal(t, test.expVal, v)
		})
	}
}

func TestAwait(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, lib.Config{})

	t.Run("A resolved promise should await to its value.", func(t *testing.T) {
		v, err := client.Eval(ctx, `Promise.resolve("done")`)
		require.NoError(t, err)
		require.IsType(t, &lib.Future{}, v)

		out, err := client.Await(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, "done", out)
	})

	t.Run("A rejected promise should await to an error.", func(t *testing.T) {
		v, err := client.Eval(ctx, `Promise.reject(new Error("nope"))`)
		require.NoError(t, err)

		_, err = client.Await(ctx, v)
		assert.Error(t, err)
	})

	t.Run("Non promise values should pass through untouched.", func(t *testing.T) {
		out, err := client.Await(ctx, "plain")
		require.NoError(t, err)
		assert.Equal(t, "plain", out)
	})
}

func TestClose(t *testing.T) {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{})
	require.NoError(t, err)

	require.NoError(t, client.Close(ctx))
	assert.Equal(t, lib.VMStatusDisposed, client.Status())

	// Evaluating after close fails fast.
	_, err = client.Eval(ctx, "1")
	assert.True(t, errors.Is(err, lib.ErrNotInitialized))

	// Closing twice is fine.
	assert.NoError(t, client.Close(ctx))
}

func TestDoctor(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, lib.Config{})

	results, err := client.Doctor(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, r := range results {
		assert.Equal(t, lib.CheckStatusOK, r.Status, "check %s: %s", r.ID, r.Message)
	}
}
