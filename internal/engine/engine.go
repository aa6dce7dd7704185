package engine

import (
	"context"
	"fmt"

	"github.com/swimmadude66/tectonica/internal/model"
)

// Handle references a live value inside the embedded engine. Whoever receives
// a handle owns it and must release it with Free (usually through a Guard),
// unless ownership is explicitly handed back to the engine.
type Handle uint32

// ValueKind classifies what an engine handle refers to.
type ValueKind string

const (
	ValueKindUndefined ValueKind = "undefined"
	ValueKindNull      ValueKind = "null"
	ValueKindBool      ValueKind = "bool"
	ValueKindNumber    ValueKind = "number"
	ValueKindString    ValueKind = "string"
	ValueKindBigInt    ValueKind = "bigint"
	ValueKindSymbol    ValueKind = "symbol"
	ValueKindArray     ValueKind = "array"
	ValueKindFunction  ValueKind = "function"
	ValueKindPromise   ValueKind = "promise"
	ValueKindDate      ValueKind = "date"
	ValueKindError     ValueKind = "error"
	ValueKindObject    ValueKind = "object"
)

// ScriptError is returned when the engine reports a script-level exception.
// Value is a handle to the thrown value; the receiver owns it and must free
// it. A zero Value means the thrown value could not be retrieved.
type ScriptError struct {
	Message string
	Stack   string
	Value   Handle
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script exception: %s", e.Message)
}

// HostFunc is a host callback invoked from inside the sandbox. Argument
// handles are borrowed for the duration of the call (the engine releases
// them); ownership of the returned handle passes to the engine. Returning an
// error throws it inside the sandbox, so an in-flight evaluation observes it
// as a script exception.
type HostFunc func(ctx context.Context, args []Handle) (Handle, error)

// Engine is the capability set the marshaller and the VM manager consume from
// the embedded script engine.
//
// Implementations are affine to a single owner goroutine, mirroring the
// engine's own single-context-at-a-time constraint: none of the methods are
// safe for concurrent use.
type Engine interface {
	// Check performs preflight checks and returns the results.
	// Checks verify that the engine module loads and evaluates.
	Check(ctx context.Context) []model.CheckResult

	// Start loads the engine module and creates the runtime and the context.
	Start(ctx context.Context) error
	// Close disposes the context, runtime and module. Safe to call on a
	// never-started or already-closed engine.
	Close(ctx context.Context) error
	Alive() bool

	// Eval evaluates source in the engine context. A script-level exception
	// is returned as *ScriptError.
	Eval(ctx context.Context, src, name string) (Handle, error)

	GlobalObject(ctx context.Context) (Handle, error)
	GetProperty(ctx context.Context, obj Handle, name string) (Handle, error)
	SetProperty(ctx context.Context, obj Handle, name string, val Handle) error

	// Call invokes fn with recv as the receiver. A script-level exception is
	// returned as *ScriptError.
	Call(ctx context.Context, fn, recv Handle, args []Handle) (Handle, error)

	// NewFunction defines a function handle backed by a host callback.
	NewFunction(ctx context.Context, name string, arity int, fn HostFunc) (Handle, error)

	// NewPromise creates a native promise together with its resolve and
	// reject functions. All three returned handles are owned by the caller.
	NewPromise(ctx context.Context) (promise, resolve, reject Handle, err error)

	NewString(ctx context.Context, s string) (Handle, error)
	NewNumber(ctx context.Context, f float64) (Handle, error)
	NewBool(ctx context.Context, b bool) (Handle, error)
	NewUndefined(ctx context.Context) (Handle, error)

	ToString(ctx context.Context, h Handle) (string, error)
	KindOf(ctx context.Context, h Handle) (ValueKind, error)

	// DrainJobs executes pending engine jobs (promise reactions) until the
	// queue empties, returning how many jobs ran. The engine never drains on
	// its own.
	DrainJobs(ctx context.Context) (int, error)

	// Free releases an owned handle. Best effort: failures are not reported.
	Free(ctx context.Context, h Handle)
}
