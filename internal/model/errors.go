package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrNotInitialized is returned when the VM is used before it is ready,
	// or after it has been disposed.
	ErrNotInitialized = errors.New("not initialized")
	// ErrDanglingReference is returned when a remote proxy operation addresses
	// a cache entry that no longer exists on the origin side.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrUnsupportedValue is returned when a value cannot cross the sandbox
	// boundary at all.
	ErrUnsupportedValue = errors.New("unsupported value")
	// ErrNotAFunction is returned when a call or construct targets a cached
	// value that is not callable.
	ErrNotAFunction = errors.New("not a function")
)

// EvaluationError is returned when the sandbox reports a script-level
// exception. Value carries the unmarshalled thrown value when it could be
// retrieved, nil otherwise.
type EvaluationError struct {
	Message string
	Stack   string
	Value   any
}

func (e *EvaluationError) Error() string {
	if e.Stack != "" {
		return fmt.Sprintf("sandbox evaluation failed: %s\n%s", e.Message, e.Stack)
	}
	return fmt.Sprintf("sandbox evaluation failed: %s", e.Message)
}
