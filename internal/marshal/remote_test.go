package marshal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swimmadude66/tectonica/internal/engine"
	"github.com/swimmadude66/tectonica/internal/engine/enginemock"
	"github.com/swimmadude66/tectonica/internal/marshal"
	"github.com/swimmadude66/tectonica/internal/model"
)

// mockGuestBind sets up the engine calls Bind makes installing the sandbox
// codec, so trap round trips can run against a mocked engine.
func mockGuestBind(me *enginemock.MockEngine) {
	me.On("Eval", mock.Anything, mock.Anything, "tectonica_guest.js").Return(engine.Handle(10), nil)
	me.On("NewFunction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(engine.Handle(11), nil)
	me.On("GlobalObject", mock.Anything).Return(engine.Handle(12), nil)
	me.On("GetProperty", mock.Anything, engine.Handle(12), marshal.GuestNamespace).Return(engine.Handle(13), nil)
	me.On("KindOf", mock.Anything, engine.Handle(13)).Return(engine.ValueKindObject, nil)
	me.On("GetProperty", mock.Anything, engine.Handle(13), "_bind").Return(engine.Handle(14), nil)
	me.On("Call", mock.Anything, engine.Handle(14), engine.Handle(13), mock.Anything).Return(engine.Handle(15), nil)
	me.On("Free", mock.Anything, mock.Anything).Maybe()
}

// newBoundMarshaller returns a marshaller bound against a mocked engine.
func newBoundMarshaller(t *testing.T) (*marshal.Marshaller, *enginemock.MockEngine) {
	t.Helper()

	me := &enginemock.MockEngine{}
	mockGuestBind(me)

	m, err := marshal.NewMarshaller(marshal.MarshallerConfig{Engine: me})
	require.NoError(t, err)
	require.NoError(t, m.Bind(context.Background()))

	return m, me
}

// decodeRemote materializes a remote bound to id without touching the
// engine.
func decodeRemote(t *testing.T, m *marshal.Marshaller, id string) *marshal.Remote {
	t.Helper()

	got, err := m.Deserialize(context.Background(), `{"type":"vmcache","__tect_tok":"`+id+`"}`, "__tect_tok", "")
	require.NoError(t, err)

	r, ok := got.(*marshal.Remote)
	require.True(t, ok)
	return r
}

// mockServeThrow makes the sandbox trap entry throw message for every trap
// round trip.
func mockServeThrow(me *enginemock.MockEngine, message string) {
	me.On("GetProperty", mock.Anything, engine.Handle(13), "serve").Return(engine.Handle(16), nil)
	me.On("NewString", mock.Anything, mock.Anything).Return(engine.Handle(17), nil)
	me.On("Call", mock.Anything, engine.Handle(16), engine.Handle(13), mock.Anything).
		Return(engine.Handle(0), &engine.ScriptError{Message: message, Value: 99})
}

func TestRemoteDanglingTraps(t *testing.T) {
	ctx := context.Background()

	t.Run("Has on a dropped sandbox entry should answer false.", func(t *testing.T) {
		m, me := newBoundMarshaller(t)
		mockServeThrow(me, "Error: dangling reference: v-9")

		ok, err := decodeRemote(t, m, "v-9").Has(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("IsExtensible on a dropped sandbox entry should answer false.", func(t *testing.T) {
		m, me := newBoundMarshaller(t)
		mockServeThrow(me, "Error: dangling reference: v-9")

		ok, err := decodeRemote(t, m, "v-9").IsExtensible(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Get on a dropped sandbox entry should fail as dangling.", func(t *testing.T) {
		m, me := newBoundMarshaller(t)
		mockServeThrow(me, "Error: dangling reference: v-9")

		_, err := decodeRemote(t, m, "v-9").Get(ctx, "k")
		assert.ErrorIs(t, err, model.ErrDanglingReference)
	})

	t.Run("Apply on a non callable sandbox entry should fail as not a function.", func(t *testing.T) {
		m, me := newBoundMarshaller(t)
		mockServeThrow(me, "TypeError: not a function: v-9")

		_, err := decodeRemote(t, m, "v-9").Apply(ctx, nil)
		assert.ErrorIs(t, err, model.ErrNotAFunction)
	})
}
