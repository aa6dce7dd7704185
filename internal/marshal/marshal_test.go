package marshal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swimmadude66/tectonica/internal/marshal"
	"github.com/swimmadude66/tectonica/internal/model"
)

func TestNewMarshaller(t *testing.T) {
	t.Run("A config without an engine should fail.", func(t *testing.T) {
		_, err := marshal.NewMarshaller(marshal.MarshallerConfig{})
		assert.Error(t, err)
	})

	t.Run("A valid config should build an empty registry.", func(t *testing.T) {
		m := newTestMarshaller(t)
		assert.Equal(t, 0, m.Registry().Len())
	})
}

func TestMarshallerUnbound(t *testing.T) {
	ctx := context.Background()

	t.Run("Crossing values before Bind should fail fast.", func(t *testing.T) {
		m := newTestMarshaller(t)

		_, err := m.ToGuest(ctx, "hello")
		assert.ErrorIs(t, err, model.ErrNotInitialized)

		_, err = m.FromGuest(ctx, 1)
		assert.ErrorIs(t, err, model.ErrNotInitialized)
	})

	t.Run("Releasing an unbound marshaller should be a no-op.", func(t *testing.T) {
		m := newTestMarshaller(t)
		require.NoError(t, m.Release(ctx))
	})

	t.Run("Serialization should keep working without a sandbox.", func(t *testing.T) {
		m := newTestMarshaller(t)

		wire, token, err := m.Serialize("plain", "", "")
		require.NoError(t, err)

		got, err := m.Deserialize(ctx, wire, token, "")
		require.NoError(t, err)
		assert.Equal(t, "plain", got)
	})
}
