package marshal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swimmadude66/tectonica/internal/engine"
	"github.com/swimmadude66/tectonica/internal/engine/enginemock"
	"github.com/swimmadude66/tectonica/internal/model"
)

func newRawMarshaller(t *testing.T) (*Marshaller, *enginemock.MockEngine) {
	t.Helper()

	me := &enginemock.MockEngine{}
	m, err := NewMarshaller(MarshallerConfig{Engine: me})
	require.NoError(t, err)

	return m, me
}

func TestServeTrapDangling(t *testing.T) {
	ctx := context.Background()

	tests := map[string]struct {
		op     string
		args   []any
		exp    any
		expErr error
	}{
		"A has trap on a dropped entry should answer false.": {
			op:   "has",
			args: []any{"k"},
			exp:  false,
		},

		"An isExtensible trap on a dropped entry should answer false.": {
			op:  "isExtensible",
			exp: false,
		},

		"A get trap on a dropped entry should fail as dangling.": {
			op:     "get",
			args:   []any{"k"},
			expErr: model.ErrDanglingReference,
		},

		"An apply trap on a dropped entry should fail as dangling.": {
			op:     "apply",
			expErr: model.ErrDanglingReference,
		},

		"An ownKeys trap on a dropped entry should fail as dangling.": {
			op:     "ownKeys",
			expErr: model.ErrDanglingReference,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m, _ := newRawMarshaller(t)

			got, _, err := m.serveTrap(ctx, test.op, "gone", "", test.args)

			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.exp, got)
		})
	}
}

func TestGuestTrapError(t *testing.T) {
	tests := map[string]struct {
		err    error
		expIs  error
		expNot []error
	}{
		"A dangling reference thrown in the sandbox should map to the sentinel.": {
			err:    &engine.ScriptError{Message: "Error: dangling reference: v-9"},
			expIs:  model.ErrDanglingReference,
			expNot: []error{model.ErrNotAFunction},
		},

		"A non callable target thrown in the sandbox should map to the sentinel.": {
			err:    &engine.ScriptError{Message: "TypeError: not a function: v-9"},
			expIs:  model.ErrNotAFunction,
			expNot: []error{model.ErrDanglingReference},
		},

		"Any other sandbox exception should pass through unmapped.": {
			err:    &engine.ScriptError{Message: "TypeError: boom"},
			expNot: []error{model.ErrDanglingReference, model.ErrNotAFunction},
		},

		"A plain engine failure should pass through unmapped.": {
			err:    fmt.Errorf("engine gone"),
			expNot: []error{model.ErrDanglingReference, model.ErrNotAFunction},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := guestTrapError("get", "v-9", test.err)
			require.Error(t, err)

			if test.expIs != nil {
				assert.ErrorIs(t, err, test.expIs)
			}
			for _, not := range test.expNot {
				assert.False(t, errors.Is(err, not))
			}
		})
	}
}

// TestHostTrapFallback drives the trap callback the way the sandbox does,
// with wire encoded arguments, against a registry without the target entry.
func TestHostTrapFallback(t *testing.T) {
	ctx := context.Background()
	token := "__tect_tok"

	rawArgs := func(me *enginemock.MockEngine, op, wire string) []engine.Handle {
		for i, s := range []string{op, "gone", "", wire, token} {
			me.On("ToString", ctx, engine.Handle(40+i)).Return(s, nil)
		}
		return []engine.Handle{40, 41, 42, 43, 44}
	}

	t.Run("A has trap on a dropped entry should answer false on the wire.", func(t *testing.T) {
		m, me := newRawMarshaller(t)
		me.On("NewString", ctx, "false").Return(engine.Handle(50), nil)

		got, err := m.hostTrap(ctx, rawArgs(me, "has", `["k"]`))
		require.NoError(t, err)
		assert.Equal(t, engine.Handle(50), got)

		me.AssertExpectations(t)
	})

	t.Run("A get trap on a dropped entry should throw as dangling.", func(t *testing.T) {
		m, me := newRawMarshaller(t)

		_, err := m.hostTrap(ctx, rawArgs(me, "get", `["k"]`))
		assert.ErrorIs(t, err, model.ErrDanglingReference)
	})
}
