package lib

import (
	"errors"

	"github.com/swimmadude66/tectonica/internal/marshal"
	"github.com/swimmadude66/tectonica/internal/model"
)

// Sentinel errors, inspectable with [errors.Is] on any SDK error.
var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists,
	// for example initializing twice or reusing a global name.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned on invalid input, such as a malformed
	// global name.
	ErrNotValid = errors.New("not valid")
	// ErrNotInitialized is returned when the sandbox is used before it is
	// ready or after it has been closed.
	ErrNotInitialized = errors.New("not initialized")
	// ErrDanglingReference is returned when a remote proxy operation
	// addresses a value that no longer exists on the other side.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrUnsupportedValue is returned when a value cannot cross the
	// sandbox boundary at all.
	ErrUnsupportedValue = errors.New("unsupported value")
	// ErrNotAFunction is returned when a call targets a value that is not
	// callable.
	ErrNotAFunction = errors.New("not a function")
)

// VMStatus represents the lifecycle state of the sandbox.
type VMStatus string

const (
	// VMStatusUninitialized indicates the sandbox exists but has not started.
	VMStatusUninitialized VMStatus = "uninitialized"
	// VMStatusInitializing indicates startup is in progress.
	VMStatusInitializing VMStatus = "initializing"
	// VMStatusReady indicates the sandbox accepts evaluations.
	VMStatusReady VMStatus = "ready"
	// VMStatusDisposed indicates the sandbox has been torn down.
	VMStatusDisposed VMStatus = "disposed"
)

// Undefined represents the sandbox undefined value. JSON cannot tell
// undefined and null apart, so undefined crosses as this explicit type while
// null crosses as nil.
type Undefined = model.Undefined

// Symbol represents a sandbox symbol by its description. Symbols lose their
// identity when crossing: two crossings of the same symbol are independent
// values.
type Symbol = model.Symbol

// EvaluationError is returned when a script throws. Value carries the
// unmarshalled thrown value when it could be retrieved, nil otherwise.
type EvaluationError = model.EvaluationError

// Future is the host-side view of a sandbox promise. It settles exactly
// once. Resolve it with [Client.Await] or subscribe to its settlement.
type Future = marshal.Future

// NewFuture creates an unsettled Future. Registering one as a global (or
// passing it into a sandbox call) makes it cross as a real promise the
// script can await; settling it from the host settles that promise.
var NewFuture = marshal.NewFuture

// Remote is a host-side proxy for a value living inside the sandbox.
// Operations on it are forwarded to the sandbox; [Remote.Get],
// [Remote.Apply] and friends mirror the object protocol.
type Remote = marshal.Remote

// PropertyObject is implemented by host values that answer sandbox property
// access themselves instead of through reflection. Register one as a global
// when scripts and other goroutines share the value: the implementation owns
// its synchronization, so concurrent host access stays safe while a script
// reads or writes it.
type PropertyObject = marshal.PropertyObject

// CheckStatus represents the status of a preflight check.
type CheckStatus string

const (
	// CheckStatusOK indicates the check passed.
	CheckStatusOK CheckStatus = "ok"
	// CheckStatusWarning indicates the check passed with a warning.
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError indicates the check failed.
	CheckStatusError CheckStatus = "error"
)

// CheckResult represents the result of a single preflight check.
type CheckResult struct {
	// ID is a unique identifier for the check (e.g. "engine_eval").
	ID string
	// Message is a human-readable description of the result.
	Message string
	// Status is the check status.
	Status CheckStatus
}

// --- Internal conversion helpers ---

func fromInternalCheckResults(results []model.CheckResult) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{
			ID:      r.ID,
			Message: r.Message,
			Status:  CheckStatus(r.Status),
		}
	}
	return out
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case errors.Is(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case errors.Is(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	case errors.Is(err, model.ErrNotInitialized):
		return joinErrors(err, ErrNotInitialized)
	case errors.Is(err, model.ErrDanglingReference):
		return joinErrors(err, ErrDanglingReference)
	case errors.Is(err, model.ErrUnsupportedValue):
		return joinErrors(err, ErrUnsupportedValue)
	case errors.Is(err, model.ErrNotAFunction):
		return joinErrors(err, ErrNotAFunction)
	default:
		return err
	}
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
