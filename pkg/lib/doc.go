// Package lib provides a Go SDK for running scripts in an embedded
// JavaScript sandbox.
//
// This package allows applications to evaluate untrusted or user-provided
// scripts inside a QuickJS engine compiled to WASM, with rich value crossing
// between Go and the sandbox: functions, objects, promises and bigints all
// cross the boundary and stay usable on the other side.
//
// # Quick Start
//
// Create a client, evaluate scripts, and close it when done:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	v, err := client.Eval(ctx, "21 * 2")
//	fmt.Println(v) // 42
//
// # Value Crossing
//
// Primitives cross by value: strings, booleans and numbers map to their Go
// equivalents (all sandbox numbers are float64), bigints map to *big.Int,
// dates to time.Time. JSON cannot tell undefined and null apart, so the
// sandbox undefined crosses as [Undefined] while null crosses as nil.
//
// Reference values cross by reference. A Go function registered with
// [Client.RegisterGlobal] is callable from scripts; a script function
// returned by [Client.Eval] comes back as a [*Remote] the host can Apply.
// Objects keep their identity: passing the same map twice gives the sandbox
// the same object twice.
//
//	double := func(n float64) float64 { return n * 2 }
//	client.RegisterGlobal(ctx, "double", double)
//	v, _ := client.Eval(ctx, "double(21)") // 42
//
// # Promises
//
// Sandbox promises come back as [*Future] values. Resolve them with
// [Client.Await], which pumps the sandbox microtask queue until the promise
// settles:
//
//	v, _ := client.Eval(ctx, "Promise.resolve(42)")
//	out, _ := client.Await(ctx, v) // 42
//
// The bridge works both ways: a [*Future] created with [NewFuture] and
// handed to the sandbox crosses as a real promise, and settling it from the
// host settles that promise.
//
// # Error Handling
//
// Script exceptions come back as [*EvaluationError] with the message, stack
// and thrown value. All other errors can be inspected with [errors.Is]:
//
//   - [ErrNotInitialized]: the sandbox is not ready or already closed.
//   - [ErrNotValid]: invalid input, such as a malformed global name.
//   - [ErrAlreadyExists]: initializing twice or reusing a name.
//   - [ErrDanglingReference]: a proxy points at a value that is gone.
//   - [ErrUnsupportedValue]: the value cannot cross at all (e.g. channels).
//   - [ErrNotAFunction]: a call targets something not callable.
//
// # Health Checks
//
// Run preflight checks to verify the engine environment:
//
//	results, _ := client.Doctor(ctx)
//	for _, r := range results {
//	    fmt.Printf("%s: %s (%s)\n", r.ID, r.Message, r.Status)
//	}
//
// # Thread Safety
//
// A [Client] is affine to a single owner goroutine, matching the WASM engine
// it embeds. The exceptions are [Future] values, which may be settled and
// subscribed from any goroutine. Run one Client per goroutine for
// concurrency.
package lib
