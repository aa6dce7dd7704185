// Package quickjs implements the engine capability interface on top of the
// QuickJS-ng WASM build, accessed through its low level bridge bindings.
package quickjs

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Gaurav-Gosain/quickjs/bridge"

	"github.com/swimmadude66/tectonica/internal/engine"
	"github.com/swimmadude66/tectonica/internal/log"
	"github.com/swimmadude66/tectonica/internal/model"
)

// EngineConfig is the configuration for the QuickJS engine.
type EngineConfig struct {
	// MemoryLimitBytes caps the sandbox heap. Zero keeps the engine default.
	MemoryLimitBytes int64
	// MaxStackBytes caps the sandbox call stack. Zero keeps the engine default.
	MaxStackBytes int64
	// EnableConsole installs a console object whose output goes to the logger.
	EnableConsole bool
	// Logger for logging.
	Logger log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.MemoryLimitBytes < 0 || c.MaxStackBytes < 0 {
		return fmt.Errorf("memory and stack limits can't be negative")
	}
	if c.MemoryLimitBytes > math.MaxUint32 || c.MaxStackBytes > math.MaxUint32 {
		return fmt.Errorf("memory and stack limits can't exceed the engine's 32 bit address space")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "engine.quickjs.Engine"})

	return nil
}

// Engine is the QuickJS implementation of the engine.Engine interface.
//
// Each instance owns one WASM module, one runtime and one context. Like the
// interface it implements, it is single owner only.
type Engine struct {
	memLimit uint32
	maxStack uint32
	console  bool
	logger   log.Logger

	br    *bridge.Bridge
	rt    uint32
	jsCtx uint32

	// cbCtx is the Go context active while guest code runs, so host
	// callbacks fired from inside the engine can observe it.
	cbCtx context.Context

	funcIDs []uint32
	started bool
	closed  bool
}

// NewEngine creates a new QuickJS engine. Call Start before using it.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		memLimit: uint32(cfg.MemoryLimitBytes),
		maxStack: uint32(cfg.MaxStackBytes),
		console:  cfg.EnableConsole,
		logger:   cfg.Logger,
	}, nil
}

// Start instantiates the WASM module and creates the runtime and context.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return fmt.Errorf("engine already started: %w", model.ErrAlreadyExists)
	}
	if e.closed {
		return fmt.Errorf("engine has been closed: %w", model.ErrNotInitialized)
	}

	// 1. Instantiate the WASM module.
	br, err := bridge.New(ctx)
	if err != nil {
		return fmt.Errorf("could not instantiate engine module: %w", err)
	}

	// 2. Create the runtime and apply resource limits.
	rt, err := br.NewRuntime(ctx)
	if err != nil {
		_ = br.Close(ctx)
		return fmt.Errorf("could not create runtime: %w", err)
	}
	if e.memLimit > 0 {
		if err := br.SetMemoryLimit(ctx, rt, e.memLimit); err != nil {
			_ = br.Close(ctx)
			return fmt.Errorf("could not set memory limit: %w", err)
		}
	}
	if e.maxStack > 0 {
		if err := br.SetMaxStackSize(ctx, rt, e.maxStack); err != nil {
			_ = br.Close(ctx)
			return fmt.Errorf("could not set max stack size: %w", err)
		}
	}

	// 3. Create the context.
	jsCtx, err := br.NewContext(ctx, rt)
	if err != nil {
		_ = br.Close(ctx)
		return fmt.Errorf("could not create context: %w", err)
	}

	// 4. Wire console output into our logger.
	logger := e.logger
	br.SetLogFunc(func(msg string) {
		logger.Infof("console: %s", strings.TrimRight(msg, "\n"))
	})
	if e.console {
		if err := br.AddConsole(ctx, jsCtx); err != nil {
			_ = br.Close(ctx)
			return fmt.Errorf("could not install console: %w", err)
		}
	}

	e.br = br
	e.rt = rt
	e.jsCtx = jsCtx
	e.started = true

	e.logger.Debugf("engine started")

	return nil
}

// Close tears down the context, runtime and WASM module. Idempotent.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed || !e.started {
		e.closed = true
		return nil
	}
	e.closed = true

	for _, id := range e.funcIDs {
		e.br.UnregisterGoFunc(id)
	}
	e.funcIDs = nil

	_ = e.br.FreeContext(ctx, e.jsCtx)
	_ = e.br.FreeRuntime(ctx, e.rt)
	if err := e.br.Close(ctx); err != nil {
		return fmt.Errorf("could not close engine module: %w", err)
	}

	e.logger.Debugf("engine closed")

	return nil
}

// Alive returns true while the engine is started and not closed.
func (e *Engine) Alive() bool {
	return e.started && !e.closed
}

func (e *Engine) ensureRunning() error {
	if !e.Alive() {
		return fmt.Errorf("engine is not running: %w", model.ErrNotInitialized)
	}
	return nil
}

// enter pins ctx so host callbacks fired while guest code runs can see it.
func (e *Engine) enter(ctx context.Context) func() {
	prev := e.cbCtx
	e.cbCtx = ctx
	return func() { e.cbCtx = prev }
}

func (e *Engine) callbackCtx() context.Context {
	if e.cbCtx != nil {
		return e.cbCtx
	}
	return context.Background()
}

// scriptError drains the pending sandbox exception into a Go error.
func (e *Engine) scriptError(ctx context.Context) error {
	excH, err := e.br.GetException(ctx, e.jsCtx)
	if err != nil {
		return fmt.Errorf("could not fetch sandbox exception: %w", err)
	}

	msg, err := e.br.GetErrorMessage(ctx, e.jsCtx, excH)
	if err != nil {
		msg = ""
	}
	stack, err := e.br.GetErrorStack(ctx, e.jsCtx, excH)
	if err != nil {
		stack = ""
	}

	return &engine.ScriptError{
		Message: msg,
		Stack:   stack,
		Value:   engine.Handle(excH),
	}
}

// result converts a raw engine value into a handle, turning the exception
// tag into the pending exception's error.
func (e *Engine) result(ctx context.Context, h uint32) (engine.Handle, error) {
	exc, err := e.br.IsException(ctx, h)
	if err != nil {
		return 0, fmt.Errorf("could not inspect result: %w", err)
	}
	if exc {
		return 0, e.scriptError(ctx)
	}
	return engine.Handle(h), nil
}

// Eval evaluates src in the global scope and returns the completion value.
func (e *Engine) Eval(ctx context.Context, src, name string) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}
	defer e.enter(ctx)()

	h, err := e.br.Eval(ctx, e.jsCtx, src, name, 0)
	if err != nil {
		return 0, fmt.Errorf("could not evaluate script: %w", err)
	}

	return e.result(ctx, h)
}

// GlobalObject returns a handle to the sandbox global object.
func (e *Engine) GlobalObject(ctx context.Context) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}

	h, err := e.br.GetGlobalObject(ctx, e.jsCtx)
	if err != nil {
		return 0, fmt.Errorf("could not get global object: %w", err)
	}
	return engine.Handle(h), nil
}

// GetProperty reads obj[name]. Getters may run guest code.
func (e *Engine) GetProperty(ctx context.Context, obj engine.Handle, name string) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}
	defer e.enter(ctx)()

	h, err := e.br.GetProperty(ctx, e.jsCtx, uint32(obj), name)
	if err != nil {
		return 0, fmt.Errorf("could not get property %q: %w", name, err)
	}
	return e.result(ctx, h)
}

// SetProperty writes obj[name] = val. Setters may run guest code.
func (e *Engine) SetProperty(ctx context.Context, obj engine.Handle, name string, val engine.Handle) error {
	if err := e.ensureRunning(); err != nil {
		return err
	}
	defer e.enter(ctx)()

	if err := e.br.SetProperty(ctx, e.jsCtx, uint32(obj), name, uint32(val)); err != nil {
		return fmt.Errorf("could not set property %q: %w", name, err)
	}

	pending, err := e.br.HasException(ctx, e.jsCtx)
	if err != nil {
		return fmt.Errorf("could not inspect result: %w", err)
	}
	if pending {
		return e.scriptError(ctx)
	}
	return nil
}

// Call invokes fn with recv as this. A zero recv calls with undefined.
func (e *Engine) Call(ctx context.Context, fn, recv engine.Handle, args []engine.Handle) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}
	defer e.enter(ctx)()

	recvPtr := uint32(recv)
	if recvPtr == 0 {
		und, err := e.br.NewUndefined(ctx)
		if err != nil {
			return 0, fmt.Errorf("could not create receiver: %w", err)
		}
		defer func() { _ = e.br.FreeValue(ctx, e.jsCtx, und) }()
		recvPtr = und
	}

	rawArgs := make([]uint32, len(args))
	for i, a := range args {
		rawArgs[i] = uint32(a)
	}

	h, err := e.br.Call(ctx, e.jsCtx, uint32(fn), recvPtr, rawArgs)
	if err != nil {
		return 0, fmt.Errorf("could not call function: %w", err)
	}
	return e.result(ctx, h)
}

// NewFunction creates a guest function backed by fn. A non nil error from fn
// is thrown inside the sandbox.
func (e *Engine) NewFunction(ctx context.Context, name string, arity int, fn engine.HostFunc) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}

	id := e.br.RegisterGoFunc(func(ctxPtr uint32, rawArgs []uint32) uint32 {
		cbCtx := e.callbackCtx()

		args := make([]engine.Handle, len(rawArgs))
		for i, a := range rawArgs {
			args[i] = engine.Handle(a)
		}

		ret, err := fn(cbCtx, args)
		if err != nil {
			exc, terr := e.br.ThrowError(cbCtx, ctxPtr, err.Error())
			if terr != nil {
				e.logger.Errorf("could not throw host callback error: %s", terr)
				und, _ := e.br.NewUndefined(cbCtx)
				return und
			}
			return exc
		}
		if ret == 0 {
			und, _ := e.br.NewUndefined(cbCtx)
			return und
		}
		return uint32(ret)
	})
	e.funcIDs = append(e.funcIDs, id)

	h, err := e.br.NewCFunction(ctx, e.jsCtx, id, name, int32(arity))
	if err != nil {
		return 0, fmt.Errorf("could not create function %q: %w", name, err)
	}
	return engine.Handle(h), nil
}

// newPromiseSrc captures a promise with its resolvers in a plain array so
// all three can be pulled out through indexed property reads.
const newPromiseSrc = `(() => { const out = new Array(3); out[0] = new Promise((res, rej) => { out[1] = res; out[2] = rej; }); return out; })()`

// NewPromise creates a pending promise and returns handles to the promise
// and its resolve and reject functions.
func (e *Engine) NewPromise(ctx context.Context) (promise, resolve, reject engine.Handle, err error) {
	if err := e.ensureRunning(); err != nil {
		return 0, 0, 0, err
	}

	arr, err := e.Eval(ctx, newPromiseSrc, "promise.js")
	if err != nil {
		return 0, 0, 0, fmt.Errorf("could not create promise: %w", err)
	}
	defer e.Free(ctx, arr)

	out := [3]uint32{}
	for i := range out {
		h, err := e.br.GetPropertyUint32(ctx, e.jsCtx, uint32(arr), uint32(i))
		if err != nil {
			for _, got := range out[:i] {
				_ = e.br.FreeValue(ctx, e.jsCtx, got)
			}
			return 0, 0, 0, fmt.Errorf("could not extract promise parts: %w", err)
		}
		out[i] = h
	}

	return engine.Handle(out[0]), engine.Handle(out[1]), engine.Handle(out[2]), nil
}

// NewString creates a guest string value.
func (e *Engine) NewString(ctx context.Context, s string) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}

	h, err := e.br.NewString(ctx, e.jsCtx, s)
	if err != nil {
		return 0, fmt.Errorf("could not create string: %w", err)
	}
	return engine.Handle(h), nil
}

// NewNumber creates a guest number value.
func (e *Engine) NewNumber(ctx context.Context, f float64) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}

	h, err := e.br.NewFloat64(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("could not create number: %w", err)
	}
	return engine.Handle(h), nil
}

// NewBool creates a guest boolean value.
func (e *Engine) NewBool(ctx context.Context, b bool) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}

	h, err := e.br.NewBool(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("could not create bool: %w", err)
	}
	return engine.Handle(h), nil
}

// NewUndefined creates a guest undefined value.
func (e *Engine) NewUndefined(ctx context.Context) (engine.Handle, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}

	h, err := e.br.NewUndefined(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not create undefined: %w", err)
	}
	return engine.Handle(h), nil
}

// ToString converts the value to its string representation.
func (e *Engine) ToString(ctx context.Context, h engine.Handle) (string, error) {
	if err := e.ensureRunning(); err != nil {
		return "", err
	}
	defer e.enter(ctx)()

	s, err := e.br.ToString(ctx, e.jsCtx, uint32(h))
	if err != nil {
		return "", fmt.Errorf("could not convert value to string: %w", err)
	}
	return s, nil
}

// KindOf classifies the value behind h.
func (e *Engine) KindOf(ctx context.Context, h engine.Handle) (engine.ValueKind, error) {
	if err := e.ensureRunning(); err != nil {
		return "", err
	}

	// Object subtypes go before the generic object probe, and function
	// before everything else since classes answer to both.
	probes := []struct {
		kind engine.ValueKind
		is   func() (bool, error)
	}{
		{engine.ValueKindFunction, func() (bool, error) { return e.br.IsFunction(ctx, e.jsCtx, uint32(h)) }},
		{engine.ValueKindPromise, func() (bool, error) { return e.br.IsPromise(ctx, e.jsCtx, uint32(h)) }},
		{engine.ValueKindDate, func() (bool, error) { return e.br.IsDate(ctx, uint32(h)) }},
		{engine.ValueKindArray, func() (bool, error) { return e.br.IsArray(ctx, uint32(h)) }},
		{engine.ValueKindError, func() (bool, error) { return e.br.IsError(ctx, uint32(h)) }},
		{engine.ValueKindBigInt, func() (bool, error) { return e.br.IsBigInt(ctx, uint32(h)) }},
		{engine.ValueKindSymbol, func() (bool, error) { return e.br.IsSymbol(ctx, uint32(h)) }},
		{engine.ValueKindString, func() (bool, error) { return e.br.IsString(ctx, uint32(h)) }},
		{engine.ValueKindNumber, func() (bool, error) { return e.br.IsNumber(ctx, uint32(h)) }},
		{engine.ValueKindBool, func() (bool, error) { return e.br.IsBool(ctx, uint32(h)) }},
		{engine.ValueKindNull, func() (bool, error) { return e.br.IsNull(ctx, uint32(h)) }},
		{engine.ValueKindUndefined, func() (bool, error) { return e.br.IsUndefined(ctx, uint32(h)) }},
		{engine.ValueKindObject, func() (bool, error) { return e.br.IsObject(ctx, uint32(h)) }},
	}

	for _, p := range probes {
		ok, err := p.is()
		if err != nil {
			return "", fmt.Errorf("could not classify value: %w", err)
		}
		if ok {
			return p.kind, nil
		}
	}

	return engine.ValueKindUndefined, nil
}

// DrainJobs runs queued microtasks until none remain and returns how many ran.
func (e *Engine) DrainJobs(ctx context.Context) (int, error) {
	if err := e.ensureRunning(); err != nil {
		return 0, err
	}
	defer e.enter(ctx)()

	total := 0
	for {
		n, err := e.br.ExecutePendingJobs(ctx, e.rt)
		if err != nil {
			return total, fmt.Errorf("could not run pending jobs: %w", err)
		}
		if n < 0 {
			return total, e.scriptError(ctx)
		}
		total += int(n)
		if n == 0 {
			return total, nil
		}
	}
}

// Free releases the handle. Best effort, zero handles are ignored.
func (e *Engine) Free(ctx context.Context, h engine.Handle) {
	if h == 0 || !e.Alive() {
		return
	}
	if err := e.br.FreeValue(ctx, e.jsCtx, uint32(h)); err != nil {
		e.logger.Debugf("could not free value: %s", err)
	}
}

// Check performs preflight checks for the QuickJS engine.
func (e *Engine) Check(ctx context.Context) []model.CheckResult {
	var results []model.CheckResult

	// The checks run against the live sandbox when started, against a
	// throwaway one otherwise.
	eng := e
	if !e.Alive() {
		tmp, err := NewEngine(EngineConfig{
			MemoryLimitBytes: int64(e.memLimit),
			MaxStackBytes:    int64(e.maxStack),
		})
		if err == nil {
			err = tmp.Start(ctx)
		}
		if err != nil {
			return append(results, model.CheckResult{
				ID:      "engine_load",
				Message: fmt.Sprintf("Could not load the engine module: %v", err),
				Status:  model.CheckStatusError,
			})
		}
		defer tmp.Close(ctx)
		eng = tmp
	}

	// Check 1: WASM module, runtime and context come up.
	results = append(results, model.CheckResult{
		ID:      "engine_load",
		Message: "Engine module loaded",
		Status:  model.CheckStatusOK,
	})

	// Check 2: scripts evaluate.
	results = append(results, eng.checkEval(ctx))

	// Check 3: the microtask queue drains.
	results = append(results, eng.checkJobs(ctx))

	return results
}

func (e *Engine) checkEval(ctx context.Context) model.CheckResult {
	h, err := e.Eval(ctx, "1 + 1", "check.js")
	if err != nil {
		return model.CheckResult{
			ID:      "engine_eval",
			Message: fmt.Sprintf("Evaluation failed: %v", err),
			Status:  model.CheckStatusError,
		}
	}
	defer e.Free(ctx, h)

	s, err := e.ToString(ctx, h)
	if err != nil || s != "2" {
		return model.CheckResult{
			ID:      "engine_eval",
			Message: fmt.Sprintf("Evaluation returned %q instead of 2", s),
			Status:  model.CheckStatusError,
		}
	}

	return model.CheckResult{
		ID:      "engine_eval",
		Message: "Scripts evaluate",
		Status:  model.CheckStatusOK,
	}
}

func (e *Engine) checkJobs(ctx context.Context) model.CheckResult {
	h, err := e.Eval(ctx, "Promise.resolve(0).then(() => {})", "check.js")
	if err != nil {
		return model.CheckResult{
			ID:      "engine_jobs",
			Message: fmt.Sprintf("Could not queue a microtask: %v", err),
			Status:  model.CheckStatusError,
		}
	}
	e.Free(ctx, h)

	n, err := e.DrainJobs(ctx)
	if err != nil {
		return model.CheckResult{
			ID:      "engine_jobs",
			Message: fmt.Sprintf("Draining the microtask queue failed: %v", err),
			Status:  model.CheckStatusError,
		}
	}
	if n == 0 {
		return model.CheckResult{
			ID:      "engine_jobs",
			Message: "No microtasks executed for a queued promise",
			Status:  model.CheckStatusWarning,
		}
	}

	return model.CheckResult{
		ID:      "engine_jobs",
		Message: "Microtask queue drains",
		Status:  model.CheckStatusOK,
	}
}
