package lib

import (
	"context"
	"fmt"

	"github.com/swimmadude66/tectonica/internal/engine/quickjs"
	"github.com/swimmadude66/tectonica/internal/log"
	"github.com/swimmadude66/tectonica/internal/vm"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. An empty Config{} gives
// an unbounded sandbox with no console and silent logging.
type Config struct {
	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// MemoryLimitMB caps the sandbox heap in megabytes.
	// Zero keeps the engine default (unbounded).
	MemoryLimitMB int

	// MaxStackKB caps the sandbox call stack in kilobytes.
	// Zero keeps the engine default.
	MaxStackKB int

	// EnableConsole installs a console object inside the sandbox whose
	// output goes to the Logger.
	EnableConsole bool

	// Globals are registered on the sandbox global object before any
	// evaluation. Values cross with the usual marshalling rules.
	Globals map[string]any
}

func (c *Config) defaults() error {
	if c.MemoryLimitMB < 0 {
		return fmt.Errorf("memory limit can't be negative")
	}
	if c.MaxStackKB < 0 {
		return fmt.Errorf("max stack can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for running scripts in an embedded
// sandbox.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is affine to a single owner goroutine, like the engine it embeds.
type Client struct {
	vm     *vm.VM
	logger log.Logger
}

// New creates a new SDK client with a started, ready sandbox.
//
// The caller must call [Client.Close] when done to release the engine.
// Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	eng, err := quickjs.NewEngine(quickjs.EngineConfig{
		MemoryLimitBytes: int64(cfg.MemoryLimitMB) * 1024 * 1024,
		MaxStackBytes:    int64(cfg.MaxStackKB) * 1024,
		EnableConsole:    cfg.EnableConsole,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	v, err := vm.NewVM(vm.VMConfig{
		Engine:  eng,
		Globals: cfg.Globals,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create vm: %w", err)
	}

	if err := v.Init(ctx); err != nil {
		return nil, mapError(fmt.Errorf("could not initialize sandbox: %w", err))
	}

	return &Client{vm: v, logger: cfg.Logger}, nil
}

// Eval evaluates a script in the sandbox and returns the completion value.
//
// Script exceptions come back as [*EvaluationError] carrying the thrown
// value. Promises come back as [*Future], resolve them with [Client.Await].
func (c *Client) Eval(ctx context.Context, src string) (any, error) {
	v, err := c.vm.Eval(ctx, src)
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

// ScopedEval evaluates a script with vars visible as local bindings.
//
// The bindings exist only for this evaluation, nothing leaks into the
// sandbox global object:
//
//	v, err := client.ScopedEval(ctx, "a + b", map[string]any{"a": 3, "b": 4})
func (c *Client) ScopedEval(ctx context.Context, src string, vars map[string]any) (any, error) {
	v, err := c.vm.ScopedEval(ctx, src, vars)
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

// RegisterGlobal exposes a host value to the sandbox under name.
//
// The name must be a valid identifier. Functions, maps and structs cross as
// live references, so the sandbox observes host-side mutations.
func (c *Client) RegisterGlobal(ctx context.Context, name string, value any) error {
	return mapError(c.vm.RegisterGlobal(ctx, name, value))
}

// Await resolves value when it is a bridged promise, pumping the sandbox
// microtask queue until it settles. Non promise values pass through.
func (c *Client) Await(ctx context.Context, value any) (any, error) {
	v, err := c.vm.Await(ctx, value)
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

// DrainJobs pumps the sandbox microtask queue until it empties and returns
// how many jobs ran.
func (c *Client) DrainJobs(ctx context.Context) (int, error) {
	n, err := c.vm.DrainJobs(ctx)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Status returns the sandbox lifecycle state.
func (c *Client) Status() VMStatus {
	return VMStatus(c.vm.Status())
}

// Doctor runs preflight health checks against a throwaway sandbox with the
// client's configuration and reports each check's outcome.
func (c *Client) Doctor(ctx context.Context) ([]CheckResult, error) {
	eng, err := quickjs.NewEngine(quickjs.EngineConfig{Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create engine: %w", err)
	}

	results := eng.Check(ctx)
	return fromInternalCheckResults(results), nil
}

// Close tears the sandbox down and releases the engine. After Close returns,
// the client must not be used.
func (c *Client) Close(ctx context.Context) error {
	return mapError(c.vm.Teardown(ctx))
}
