// Package vm implements the sandbox lifecycle manager: it owns the engine
// instance and the marshaller bound to it, tracks the lifecycle state
// machine and exposes the evaluation entry points host applications use.
package vm

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/swimmadude66/tectonica/internal/engine"
	"github.com/swimmadude66/tectonica/internal/log"
	"github.com/swimmadude66/tectonica/internal/marshal"
	"github.com/swimmadude66/tectonica/internal/model"
)

// VMConfig is the configuration for the VM.
type VMConfig struct {
	// Engine is the embedded script engine. The VM owns its lifecycle: Init
	// starts it, Teardown closes it.
	Engine engine.Engine
	// Globals are registered on the sandbox global object during Init.
	Globals map[string]any
	// Logger for logging.
	Logger log.Logger
}

func (c *VMConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "vm.VM"})

	return nil
}

// VM is the sandbox lifecycle manager.
//
// The lifecycle is uninitialized -> initializing -> ready -> disposed, driven
// by Init and Teardown. Evaluation requires ready and fails fast otherwise.
//
// Like the engine it owns, a VM is affine to a single owner goroutine.
// AwaitReady is the one exception and may be called from anywhere.
type VM struct {
	eng     engine.Engine
	logger  log.Logger
	m       *marshal.Marshaller
	globals map[string]any

	status   model.VMStatus
	ready    chan struct{}
	readyErr error
}

// NewVM creates a new VM. Call Init before evaluating anything.
func NewVM(cfg VMConfig) (*VM, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m, err := marshal.NewMarshaller(marshal.MarshallerConfig{
		Engine: cfg.Engine,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create marshaller: %w", err)
	}

	return &VM{
		eng:     cfg.Engine,
		logger:  cfg.Logger,
		m:       m,
		globals: cfg.Globals,
		status:  model.VMStatusUninitialized,
		ready:   make(chan struct{}),
	}, nil
}

// Status returns the current lifecycle state.
func (v *VM) Status() model.VMStatus {
	return v.status
}

// Marshaller returns the VM's value crossing layer.
func (v *VM) Marshaller() *marshal.Marshaller {
	return v.m
}

// Init moves the VM from uninitialized to ready: it starts the engine, binds
// the marshaller's sandbox codec and registers the configured globals. Only
// one Init may run per VM; a second call fails.
func (v *VM) Init(ctx context.Context) error {
	if v.status != model.VMStatusUninitialized {
		return fmt.Errorf("init already ran (status: %s): %w", v.status, model.ErrAlreadyExists)
	}
	v.status = model.VMStatusInitializing

	err := v.init(ctx)
	if err != nil {
		v.signalReady(fmt.Errorf("initialization failed: %w", err))
		// Initialization is one shot; a failed VM is disposed on the spot so
		// whatever the engine already started is released.
		v.status = model.VMStatusDisposed
		if cerr := v.eng.Close(ctx); cerr != nil {
			v.logger.Warningf("could not close engine after failed init: %s", cerr)
		}
		return err
	}

	v.status = model.VMStatusReady
	v.signalReady(nil)
	v.logger.Debugf("VM ready")

	return nil
}

func (v *VM) init(ctx context.Context) error {
	// 1. Start the engine (module, runtime, context).
	if err := v.eng.Start(ctx); err != nil {
		return fmt.Errorf("could not start engine: %w", err)
	}

	// 2. Install the sandbox side of the marshaller.
	if err := v.m.Bind(ctx); err != nil {
		return fmt.Errorf("could not bind marshaller: %w", err)
	}

	// 3. Register the configured globals.
	for _, name := range sortedKeys(v.globals) {
		if err := v.registerGlobal(ctx, name, v.globals[name]); err != nil {
			return fmt.Errorf("could not register global %q: %w", name, err)
		}
	}

	return nil
}

// signalReady completes every AwaitReady caller, present and future.
func (v *VM) signalReady(err error) {
	select {
	case <-v.ready:
		return
	default:
	}
	v.readyErr = err
	close(v.ready)
}

// AwaitReady blocks until the VM is ready. It may be called any number of
// times, before or after Init; all callers share the same completion. Once
// the VM is ready it returns immediately; a disposed or failed VM returns
// the failure.
func (v *VM) AwaitReady(ctx context.Context) error {
	select {
	case <-v.ready:
		return v.readyErr
	case <-ctx.Done():
		return fmt.Errorf("waiting for readiness: %w", ctx.Err())
	}
}

// Teardown disposes the VM: the marshaller's sandbox resources are released
// best effort, the engine is closed and every pending AwaitReady caller
// fails. Valid from any state, idempotent, safe before Init ever ran.
func (v *VM) Teardown(ctx context.Context) error {
	if v.status == model.VMStatusDisposed {
		return nil
	}
	v.status = model.VMStatusDisposed
	v.signalReady(fmt.Errorf("VM disposed: %w", model.ErrNotInitialized))

	if err := v.m.Release(ctx); err != nil {
		v.logger.Warningf("could not release marshaller: %s", err)
	}

	if err := v.eng.Close(ctx); err != nil {
		return fmt.Errorf("could not close engine: %w", err)
	}

	v.logger.Debugf("VM disposed")

	return nil
}

func (v *VM) ensureReady() error {
	if v.status != model.VMStatusReady {
		return fmt.Errorf("VM is not ready (status: %s): %w", v.status, model.ErrNotInitialized)
	}
	return nil
}

// Eval evaluates source in the sandbox global scope and unmarshals the
// completion value. A sandbox exception surfaces as *model.EvaluationError
// carrying the unmarshalled thrown value.
func (v *VM) Eval(ctx context.Context, src string) (any, error) {
	if err := v.ensureReady(); err != nil {
		return nil, err
	}

	g := engine.NewGuard(v.eng)
	defer g.Close(ctx)

	h, err := v.eng.Eval(ctx, src, "eval.js")
	if err != nil {
		return nil, v.evaluationError(ctx, g, err)
	}
	g.Track(h)

	return v.m.FromGuest(ctx, h)
}

// scopeParamPattern matches valid scope variable names.
var scopeParamPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// ScopedEval evaluates source with vars in scope. Each call builds a fresh
// wrapper function with a unique parameter name, destructures the vars into
// it and runs the source through direct eval inside that scope, so lexical
// declarations never leak across calls and user code redeclaring the same
// names never collides.
func (v *VM) ScopedEval(ctx context.Context, src string, vars map[string]any) (any, error) {
	if err := v.ensureReady(); err != nil {
		return nil, err
	}

	names := sortedKeys(vars)
	for _, n := range names {
		if !scopeParamPattern.MatchString(n) {
			return nil, fmt.Errorf("scope variable %q is not a valid identifier: %w", n, model.ErrNotValid)
		}
	}

	g := engine.NewGuard(v.eng)
	defer g.Close(ctx)

	// 1. Materialize the vars inside the sandbox under a throwaway global.
	param := "__scope_" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	varsH, err := v.m.ToGuest(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("could not marshal scope variables: %w", err)
	}
	g.Track(varsH)

	glob, err := v.eng.GlobalObject(ctx)
	if err != nil {
		return nil, err
	}
	g.Track(glob)

	if err := v.eng.SetProperty(ctx, glob, param, varsH); err != nil {
		return nil, fmt.Errorf("could not stage scope variables: %w", err)
	}
	defer func() {
		if h, derr := v.eng.Eval(ctx, fmt.Sprintf("delete globalThis[%q];", param), "scope_cleanup.js"); derr == nil {
			v.eng.Free(ctx, h)
		}
	}()

	// 2. Run the source through direct eval inside the wrapper scope. The
	// source is quoted as a JSON string: JSON escapes are valid JS escapes,
	// Go quoting is not (\a and \U have no JS meaning).
	srcLit, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("could not quote scoped source: %w", err)
	}
	wrapper := fmt.Sprintf(
		"(function (%s) {\n%s\nreturn eval(%s);\n})(globalThis[%q]);",
		param, destructuring(names, param), srcLit, param,
	)

	h, err := v.eng.Eval(ctx, wrapper, "scoped_eval.js")
	if err != nil {
		return nil, v.evaluationError(ctx, g, err)
	}
	g.Track(h)

	return v.m.FromGuest(ctx, h)
}

func destructuring(names []string, param string) string {
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("const { %s } = %s;", strings.Join(names, ", "), param)
}

// RegisterGlobal marshals value and sets it on the sandbox global object.
func (v *VM) RegisterGlobal(ctx context.Context, name string, value any) error {
	if err := v.ensureReady(); err != nil {
		return err
	}
	if !scopeParamPattern.MatchString(name) {
		return fmt.Errorf("global name %q is not a valid identifier: %w", name, model.ErrNotValid)
	}

	return v.registerGlobal(ctx, name, value)
}

func (v *VM) registerGlobal(ctx context.Context, name string, value any) error {
	g := engine.NewGuard(v.eng)
	defer g.Close(ctx)

	h, err := v.globalValue(ctx, value)
	if err != nil {
		return err
	}
	g.Track(h)

	glob, err := v.eng.GlobalObject(ctx)
	if err != nil {
		return err
	}
	g.Track(glob)

	if err := v.eng.SetProperty(ctx, glob, name, h); err != nil {
		return fmt.Errorf("could not set global %q: %w", name, err)
	}

	return nil
}

// globalValue builds the sandbox value for a global, taking the typed fast
// path for primitives so they need no wire crossing.
func (v *VM) globalValue(ctx context.Context, value any) (engine.Handle, error) {
	switch t := value.(type) {
	case string:
		return v.eng.NewString(ctx, t)
	case bool:
		return v.eng.NewBool(ctx, t)
	case float64:
		return v.eng.NewNumber(ctx, t)
	case int:
		return v.eng.NewNumber(ctx, float64(t))
	case nil:
		return v.eng.NewUndefined(ctx)
	default:
		return v.m.ToGuest(ctx, value)
	}
}

// DrainJobs pumps the sandbox microtask queue until it empties and returns
// how many jobs ran.
func (v *VM) DrainJobs(ctx context.Context) (int, error) {
	if err := v.ensureReady(); err != nil {
		return 0, err
	}
	return v.eng.DrainJobs(ctx)
}

// Await resolves value when it is a bridged promise: the microtask queue is
// pumped until the future settles, then the outcome is returned. Settlements
// driven from the host side are waited on between pumps. Non promise values
// pass through untouched.
func (v *VM) Await(ctx context.Context, value any) (any, error) {
	f, ok := value.(*marshal.Future)
	if !ok {
		return value, nil
	}

	for {
		if f.Settled() {
			// One final pump so reactions queued by the settlement run.
			if _, err := v.DrainJobs(ctx); err != nil {
				return nil, err
			}
			return f.Result()
		}

		n, err := v.DrainJobs(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			continue
		}

		// The queue is empty and the promise is pending: only a host side
		// settlement can move it now.
		select {
		case <-f.Done():
		case <-ctx.Done():
			return nil, fmt.Errorf("awaiting promise: %w", ctx.Err())
		}
	}
}

// evaluationError adapts an engine evaluation failure into the taxonomy:
// script exceptions carry their unmarshalled thrown value, everything else
// passes through.
func (v *VM) evaluationError(ctx context.Context, g *engine.Guard, err error) error {
	var se *engine.ScriptError
	if !errors.As(err, &se) {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	evalErr := &model.EvaluationError{
		Message: se.Message,
		Stack:   se.Stack,
	}
	if se.Value != 0 {
		g.Track(se.Value)
		if thrown, uerr := v.m.FromGuest(ctx, se.Value); uerr == nil {
			evalErr.Value = thrown
		}
	}

	return evalErr
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
