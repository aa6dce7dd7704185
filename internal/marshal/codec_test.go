package marshal_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swimmadude66/tectonica/internal/engine/enginemock"
	"github.com/swimmadude66/tectonica/internal/marshal"
	"github.com/swimmadude66/tectonica/internal/model"
)

func newTestMarshaller(t *testing.T) *marshal.Marshaller {
	t.Helper()

	m, err := marshal.NewMarshaller(marshal.MarshallerConfig{Engine: &enginemock.MockEngine{}})
	require.NoError(t, err)

	return m
}

// wireNode parses a wire string into its JSON tree for assertions on the
// tagged form.
func wireNode(t *testing.T, wire string) any {
	t.Helper()

	var node any
	require.NoError(t, json.Unmarshal([]byte(wire), &node))
	return node
}

func TestCodecRoundTrip(t *testing.T) {
	tests := map[string]struct {
		value any
		exp   any // Nil means expect the input back unchanged.
	}{
		"A string should round trip.": {
			value: "hello",
		},

		"A boolean should round trip.": {
			value: true,
		},

		"A float should round trip.": {
			value: 4.25,
		},

		"An int should come back as a wire number.": {
			value: 42,
			exp:   float64(42),
		},

		"Undefined should round trip.": {
			value: model.Undefined{},
		},

		"Top level nil should round trip.": {
			value: nil,
		},

		"A bigint should round trip through its decimal form.": {
			value: mustBigInt("123456789012345678901234567890"),
		},

		"A symbol should round trip by its registry key.": {
			value: model.Symbol("app.key"),
		},

		"A date should round trip at millisecond precision, in UTC.": {
			value: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		},

		"An array should round trip element by element.": {
			value: []any{"a", float64(1), true, nil},
		},

		"A nested array should round trip.": {
			value: []any{[]any{float64(1), float64(2)}, []any{"x"}},
		},

		"An array with tagged elements should round trip.": {
			value: []any{model.Undefined{}, model.Symbol("s"), mustBigInt("7")},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			m := newTestMarshaller(t)

			wire, token, err := m.Serialize(test.value, "", "")
			require.NoError(t, err)
			require.NotEmpty(t, token)

			got, err := m.Deserialize(context.Background(), wire, token, "")
			require.NoError(t, err)

			exp := test.exp
			if exp == nil {
				exp = test.value
			}
			assert.Equal(exp, got)
		})
	}
}

func mustBigInt(s string) *big.Int {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad bigint literal: " + s)
	}
	return i
}

func TestCodecCachedKinds(t *testing.T) {
	ctx := context.Background()

	t.Run("A map should cross as a cached object and decode back to itself.", func(t *testing.T) {
		m := newTestMarshaller(t)
		obj := map[string]any{"n": 1}

		wire, token, err := m.Serialize(obj, "", "")
		require.NoError(t, err)

		node, ok := wireNode(t, wire).(map[string]any)
		require.True(t, ok)
		assert.Equal(t, string(model.KindObject), node[model.WireTypeKey])

		got, err := m.Deserialize(ctx, wire, token, "")
		require.NoError(t, err)

		// Same backing map, not a copy: mutations are visible through both.
		gotMap, ok := got.(map[string]any)
		require.True(t, ok)
		gotMap["n"] = 2
		assert.Equal(t, 2, obj["n"])
	})

	t.Run("A func should cross as a cached function and decode back to itself.", func(t *testing.T) {
		m := newTestMarshaller(t)
		calls := 0
		fn := func() { calls++ }

		wire, token, err := m.Serialize(fn, "", "")
		require.NoError(t, err)

		node := wireNode(t, wire).(map[string]any)
		assert.Equal(t, string(model.KindFunction), node[model.WireTypeKey])

		got, err := m.Deserialize(ctx, wire, token, "")
		require.NoError(t, err)

		gotFn, ok := got.(func())
		require.True(t, ok)
		gotFn()
		assert.Equal(t, 1, calls)
	})

	t.Run("A future should cross as a cached promise and decode back to itself.", func(t *testing.T) {
		m := newTestMarshaller(t)
		f := marshal.NewFuture()

		wire, token, err := m.Serialize(f, "", "")
		require.NoError(t, err)

		node := wireNode(t, wire).(map[string]any)
		assert.Equal(t, string(model.KindPromise), node[model.WireTypeKey])

		got, err := m.Deserialize(ctx, wire, token, "")
		require.NoError(t, err)
		assert.Same(t, f, got)
	})

	t.Run("An unsupported value should fail to serialize.", func(t *testing.T) {
		m := newTestMarshaller(t)

		_, _, err := m.Serialize(make(chan int), "", "")
		assert.ErrorIs(t, err, model.ErrUnsupportedValue)
	})
}

func TestCodecIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("Serializing the same map twice should reuse one cache id.", func(t *testing.T) {
		m := newTestMarshaller(t)
		obj := map[string]any{"n": 1}

		wire1, token1, err := m.Serialize(obj, "", "")
		require.NoError(t, err)
		wire2, token2, err := m.Serialize(obj, "", "")
		require.NoError(t, err)

		node1 := wireNode(t, wire1).(map[string]any)
		node2 := wireNode(t, wire2).(map[string]any)

		// The second crossing re-references the existing entry.
		assert.Equal(t, string(model.KindObject), node1[model.WireTypeKey])
		assert.Equal(t, string(model.KindHostCache), node2[model.WireTypeKey])
		assert.Equal(t, node1[token1], node2[token2])
	})

	t.Run("Decoding a hostcache reference should return the original value.", func(t *testing.T) {
		m := newTestMarshaller(t)
		type payload struct{ N int }
		obj := &payload{N: 7}

		_, _, err := m.Serialize(obj, "", "")
		require.NoError(t, err)
		wire, token, err := m.Serialize(obj, "", "")
		require.NoError(t, err)

		got, err := m.Deserialize(ctx, wire, token, "")
		require.NoError(t, err)
		assert.Same(t, obj, got)
	})

	t.Run("A dangling hostcache reference should fail.", func(t *testing.T) {
		m := newTestMarshaller(t)

		token := "__tect_tok"
		wire := `{"type":"hostcache","__tect_tok":"does-not-exist"}`

		_, err := m.Deserialize(ctx, wire, token, "")
		assert.ErrorIs(t, err, model.ErrDanglingReference)
	})
}

func TestCodecRemoteReferences(t *testing.T) {
	ctx := context.Background()

	t.Run("A vmcache reference should decode to a remote bound to its id.", func(t *testing.T) {
		m := newTestMarshaller(t)

		wire := `{"type":"vmcache","__tect_tok":"v-1"}`
		got, err := m.Deserialize(ctx, wire, "__tect_tok", "")
		require.NoError(t, err)

		r, ok := got.(*marshal.Remote)
		require.True(t, ok)
		assert.Equal(t, "v-1", r.CacheID())
		assert.Equal(t, model.SideVM, r.Side())
	})

	t.Run("Decoding the same sandbox id twice should return the same remote.", func(t *testing.T) {
		m := newTestMarshaller(t)

		wire := `{"type":"object","__tect_tok":"v-2"}`
		got1, err := m.Deserialize(ctx, wire, "__tect_tok", "")
		require.NoError(t, err)
		got2, err := m.Deserialize(ctx, wire, "__tect_tok", "")
		require.NoError(t, err)

		assert.Same(t, got1, got2)
	})

	t.Run("Re-serializing a remote should go home as a vmcache reference.", func(t *testing.T) {
		m := newTestMarshaller(t)

		wire := `{"type":"function","__tect_tok":"v-3"}`
		got, err := m.Deserialize(ctx, wire, "__tect_tok", "")
		require.NoError(t, err)
		require.IsType(t, &marshal.Remote{}, got)

		out, token, err := m.Serialize(got, "", "")
		require.NoError(t, err)

		node := wireNode(t, out).(map[string]any)
		assert.Equal(t, string(model.KindVMCache), node[model.WireTypeKey])
		assert.Equal(t, "v-3", node[token])
	})
}

func TestCodecWrapperDetection(t *testing.T) {
	ctx := context.Background()

	t.Run("An object merely containing a type key should decode structurally.", func(t *testing.T) {
		m := newTestMarshaller(t)

		// "type" is present but the token key is not: user data, not a
		// wrapper.
		wire := `{"type":"object","data":1}`
		got, err := m.Deserialize(ctx, wire, "__tect_tok", "")
		require.NoError(t, err)

		assert.Equal(t, map[string]any{"type": "object", "data": float64(1)}, got)
	})

	t.Run("An unknown type value should decode structurally.", func(t *testing.T) {
		m := newTestMarshaller(t)

		wire := `{"type":"rocket","__tect_tok":"x"}`
		got, err := m.Deserialize(ctx, wire, "__tect_tok", "")
		require.NoError(t, err)

		assert.Equal(t, map[string]any{"type": "rocket", "__tect_tok": "x"}, got)
	})

	t.Run("Native JSON null inside composites should decode to nil.", func(t *testing.T) {
		m := newTestMarshaller(t)

		got, err := m.Deserialize(ctx, `[null,1]`, "__tect_tok", "")
		require.NoError(t, err)

		assert.Equal(t, []any{nil, float64(1)}, got)
	})

	t.Run("Garbage wire text should fail.", func(t *testing.T) {
		m := newTestMarshaller(t)

		_, err := m.Deserialize(ctx, `{not json`, "tok", "")
		assert.Error(t, err)
	})
}
