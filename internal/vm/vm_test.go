package vm_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swimmadude66/tectonica/internal/engine"
	"github.com/swimmadude66/tectonica/internal/engine/enginemock"
	"github.com/swimmadude66/tectonica/internal/model"
	"github.com/swimmadude66/tectonica/internal/vm"
)

// mockBind sets up the engine calls Init makes while binding the sandbox
// codec, so lifecycle tests can reach the ready state without a real engine.
func mockBind(me *enginemock.MockEngine) {
	me.On("Start", mock.Anything).Return(nil)
	me.On("Eval", mock.Anything, mock.Anything, "tectonica_guest.js").Return(engine.Handle(10), nil)
	me.On("NewFunction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(engine.Handle(11), nil)
	me.On("GlobalObject", mock.Anything).Return(engine.Handle(12), nil)
	me.On("GetProperty", mock.Anything, engine.Handle(12), "__tectonica").Return(engine.Handle(13), nil)
	me.On("KindOf", mock.Anything, engine.Handle(13)).Return(engine.ValueKindObject, nil)
	me.On("GetProperty", mock.Anything, engine.Handle(13), "_bind").Return(engine.Handle(14), nil)
	me.On("Call", mock.Anything, engine.Handle(14), engine.Handle(13), mock.Anything).Return(engine.Handle(15), nil)
	me.On("Free", mock.Anything, mock.Anything).Maybe()
}

func TestVMLifecycle(t *testing.T) {
	tests := map[string]struct {
		mock   func(me *enginemock.MockEngine)
		run    func(ctx context.Context, t *testing.T, v *vm.VM)
		expErr bool
	}{
		"Evaluating before Init should fail fast.": {
			mock: func(me *enginemock.MockEngine) {},
			run: func(ctx context.Context, t *testing.T, v *vm.VM) {
				_, err := v.Eval(ctx, "1 + 1")
				assert.ErrorIs(t, err, model.ErrNotInitialized)

				_, err = v.ScopedEval(ctx, "a", map[string]any{"a": 1})
				assert.ErrorIs(t, err, model.ErrNotInitialized)

				err = v.RegisterGlobal(ctx, "x", 1)
				assert.ErrorIs(t, err, model.ErrNotInitialized)

				assert.Equal(t, model.VMStatusUninitialized, v.Status())
			},
		},

		"Init should reach ready and a second Init should fail.": {
			mock: mockBind,
			run: func(ctx context.Context, t *testing.T, v *vm.VM) {
				require.NoError(t, v.Init(ctx))
				assert.Equal(t, model.VMStatusReady, v.Status())

				err := v.Init(ctx)
				assert.ErrorIs(t, err, model.ErrAlreadyExists)
			},
		},

		"A failed engine start should leave the VM disposed and fail AwaitReady.": {
			mock: func(me *enginemock.MockEngine) {
				me.On("Start", mock.Anything).Return(fmt.Errorf("no module"))
				me.On("Close", mock.Anything).Return(nil).Once()
			},
			run: func(ctx context.Context, t *testing.T, v *vm.VM) {
				err := v.Init(ctx)
				require.Error(t, err)
				assert.Equal(t, model.VMStatusDisposed, v.Status())

				err = v.AwaitReady(ctx)
				assert.Error(t, err)
			},
		},

		"A failed codec bind should close the engine Init started.": {
			mock: func(me *enginemock.MockEngine) {
				me.On("Start", mock.Anything).Return(nil)
				me.On("Eval", mock.Anything, mock.Anything, "tectonica_guest.js").Return(engine.Handle(0), fmt.Errorf("install failed"))
				me.On("Close", mock.Anything).Return(nil).Once()
			},
			run: func(ctx context.Context, t *testing.T, v *vm.VM) {
				err := v.Init(ctx)
				require.Error(t, err)
				assert.Equal(t, model.VMStatusDisposed, v.Status())

				// Teardown on the failed VM stays a no-op, the engine is
				// already closed.
				require.NoError(t, v.Teardown(ctx))
			},
		},

		"AwaitReady after readiness should return immediately.": {
			mock: mockBind,
			run: func(ctx context.Context, t *testing.T, v *vm.VM) {
				require.NoError(t, v.Init(ctx))

				for i := 0; i < 3; i++ {
					assert.NoError(t, v.AwaitReady(ctx))
				}
			},
		},

		"Teardown before Init should be safe and invalidate the VM.": {
			mock: func(me *enginemock.MockEngine) {
				me.On("Close", mock.Anything).Return(nil)
			},
			run: func(ctx context.Context, t *testing.T, v *vm.VM) {
				require.NoError(t, v.Teardown(ctx))
				assert.Equal(t, model.VMStatusDisposed, v.Status())

				_, err := v.Eval(ctx, "1 + 1")
				assert.ErrorIs(t, err, model.ErrNotInitialized)

				err = v.AwaitReady(ctx)
				assert.ErrorIs(t, err, model.ErrNotInitialized)
			},
		},

		"Teardown should be idempotent.": {
			mock: func(me *enginemock.MockEngine) {
				me.On("Close", mock.Anything).Return(nil).Once()
			},
			run: func(ctx context.Context, t *testing.T, v *vm.VM) {
				require.NoError(t, v.Teardown(ctx))
				require.NoError(t, v.Teardown(ctx))
			},
		},

		"Teardown after Init should release the sandbox and close the engine.": {
			mock: func(me *enginemock.MockEngine) {
				mockBind(me)
				me.On("Alive").Return(true)
				me.On("Eval", mock.Anything, mock.Anything, "tectonica_dispose.js").Return(engine.Handle(20), nil)
				me.On("Close", mock.Anything).Return(nil).Once()
			},
			run: func(ctx context.Context, t *testing.T, v *vm.VM) {
				require.NoError(t, v.Init(ctx))
				require.NoError(t, v.Teardown(ctx))
				assert.Equal(t, model.VMStatusDisposed, v.Status())
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			me := &enginemock.MockEngine{}
			test.mock(me)

			v, err := vm.NewVM(vm.VMConfig{Engine: me})
			require.NoError(t, err)

			test.run(context.Background(), t, v)

			me.AssertExpectations(t)
		})
	}
}

func TestVMAwaitReadyConcurrent(t *testing.T) {
	assert := assert.New(t)

	me := &enginemock.MockEngine{}
	mockBind(me)

	v, err := vm.NewVM(vm.VMConfig{Engine: me})
	require.NoError(t, err)

	// Several callers wait before Init; all must share the same completion.
	const callers = 5
	results := make(chan error, callers)
	var started sync.WaitGroup
	started.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			started.Done()
			results <- v.AwaitReady(context.Background())
		}()
	}
	started.Wait()

	require.NoError(t, v.Init(context.Background()))

	for i := 0; i < callers; i++ {
		select {
		case err := <-results:
			assert.NoError(err)
		case <-time.After(2 * time.Second):
			t.Fatal("AwaitReady caller never completed")
		}
	}
}

func TestVMAwaitReadyContext(t *testing.T) {
	me := &enginemock.MockEngine{}

	v, err := vm.NewVM(vm.VMConfig{Engine: me})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = v.AwaitReady(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewVM(t *testing.T) {
	tests := map[string]struct {
		cfg    func() vm.VMConfig
		expErr bool
	}{
		"A config with an engine should be valid.": {
			cfg: func() vm.VMConfig {
				return vm.VMConfig{Engine: &enginemock.MockEngine{}}
			},
		},

		"A config without an engine should fail.": {
			cfg:    func() vm.VMConfig { return vm.VMConfig{} },
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			v, err := vm.NewVM(test.cfg())

			if test.expErr {
				assert.Error(t, err)
			} else if assert.NoError(t, err) {
				assert.Equal(t, model.VMStatusUninitialized, v.Status())
			}
		})
	}
}
