package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swimmadude66/tectonica/internal/engine/quickjs"
	"github.com/swimmadude66/tectonica/internal/vm"
)

// newTestVM spins up a ready VM over a real QuickJS engine.
func newTestVM(t *testing.T, globals map[string]any) *vm.VM {
	t.Helper()

	eng, err := quickjs.NewEngine(quickjs.EngineConfig{})
	require.NoError(t, err)

	v, err := vm.NewVM(vm.VMConfig{
		Engine:  eng,
		Globals: globals,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, v.Init(ctx))
	t.Cleanup(func() {
		_ = v.Teardown(context.Background())
	})

	return v
}
