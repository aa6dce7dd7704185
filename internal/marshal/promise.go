package marshal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/swimmadude66/tectonica/internal/engine"
	"github.com/swimmadude66/tectonica/internal/model"
)

// Future is the host side of a bridged promise. It settles exactly once;
// subscribers run synchronously on the goroutine that settles it, matching
// the single owner execution model of the sandbox.
type Future struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   any
	err     error
	subs    []func(v any, err error)
}

// NewFuture returns a pending future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future with v. Later settlements are ignored.
func (f *Future) Resolve(v any) {
	f.settle(v, nil)
}

// Reject settles the future with err. Later settlements are ignored.
func (f *Future) Reject(err error) {
	if err == nil {
		err = errors.New("promise rejected")
	}
	f.settle(nil, err)
}

func (f *Future) settle(v any, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.value = v
	f.err = err
	subs := f.subs
	f.subs = nil
	close(f.done)
	f.mu.Unlock()

	for _, s := range subs {
		s(v, err)
	}
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has settled.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Result returns the outcome. Calling it on a pending future fails.
func (f *Future) Result() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.settled {
		return nil, fmt.Errorf("promise is pending: %w", model.ErrNotInitialized)
	}
	return f.value, f.err
}

// Subscribe registers fn to run on settlement, immediately if the future
// already settled.
func (f *Future) Subscribe(fn func(v any, err error)) {
	f.mu.Lock()
	if !f.settled {
		f.subs = append(f.subs, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()

	fn(v, err)
}

// watchGuestPromise bridges a sandbox promise to the host: it arms a settle
// watch inside the sandbox that posts the outcome back through the trap
// callback, pumps pending jobs once so already settled promises land, and
// returns the future the watch will settle. One future per sandbox promise
// id, so repeated crossings keep their identity and arm a single watch.
func (m *Marshaller) watchGuestPromise(ctx context.Context, id string) (*Future, error) {
	if err := m.ensureBound(); err != nil {
		return nil, err
	}
	if f, ok := m.futures[id]; ok {
		return f, nil
	}

	f := NewFuture()
	subID := m.reg.NewID()
	m.subs[subID] = f

	g := engine.NewGuard(m.eng)
	defer g.Close(ctx)

	ns, err := m.guestNamespace(ctx, g)
	if err != nil {
		delete(m.subs, subID)
		return nil, err
	}
	watchFn, err := m.eng.GetProperty(ctx, ns, "watch")
	if err != nil {
		delete(m.subs, subID)
		return nil, fmt.Errorf("could not reach sandbox watch entry: %w", err)
	}
	g.Track(watchFn)

	idH, err := m.eng.NewString(ctx, id)
	if err != nil {
		delete(m.subs, subID)
		return nil, err
	}
	g.Track(idH)
	subH, err := m.eng.NewString(ctx, subID)
	if err != nil {
		delete(m.subs, subID)
		return nil, err
	}
	g.Track(subH)

	res, err := m.eng.Call(ctx, watchFn, ns, []engine.Handle{idH, subH})
	if err != nil {
		delete(m.subs, subID)
		return nil, fmt.Errorf("could not watch sandbox promise %q: %w", id, err)
	}
	g.Track(res)
	m.futures[id] = f

	if _, err := m.eng.DrainJobs(ctx); err != nil {
		m.logger.Warningf("job drain after promise watch failed: %s", err)
	}

	return f, nil
}

// trapPromise services a sandbox dereference of a host promise wrapper: it
// builds a native sandbox promise and settles it when the future does. The
// returned handle goes straight back to the sandbox.
func (m *Marshaller) trapPromise(ctx context.Context, id string) (engine.Handle, error) {
	v, ok := m.reg.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("promise cache entry %q: %w", id, model.ErrDanglingReference)
	}
	f, ok := v.(*Future)
	if !ok {
		return 0, fmt.Errorf("cache entry %q is not a promise: %w", id, model.ErrNotValid)
	}

	promise, resolve, reject, err := m.eng.NewPromise(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not create sandbox promise: %w", err)
	}

	f.Subscribe(func(val any, ferr error) {
		// Settlement happens on a later turn, the deref context is gone.
		sctx := context.Background()
		defer func() {
			m.eng.Free(sctx, resolve)
			m.eng.Free(sctx, reject)
		}()

		g := engine.NewGuard(m.eng)
		defer g.Close(sctx)

		fn := resolve
		outcome := val
		if ferr != nil {
			fn = reject
			outcome = ferr.Error()
		}

		vh, err := m.toGuestValue(sctx, g, outcome)
		if err != nil {
			m.logger.Errorf("could not marshal promise outcome: %s", err)
			return
		}
		if _, err := m.eng.Call(sctx, fn, 0, []engine.Handle{vh}); err != nil {
			m.logger.Errorf("could not settle sandbox promise: %s", err)
			return
		}
		if _, err := m.eng.DrainJobs(sctx); err != nil {
			m.logger.Warningf("job drain after promise settlement failed: %s", err)
		}
	})

	return promise, nil
}

// trapSettle services the sandbox posting a watched promise's outcome.
// args is [state, value] with state "fulfilled" or "rejected".
func (m *Marshaller) trapSettle(subID string, args []any) error {
	f, ok := m.subs[subID]
	if !ok {
		m.logger.Debugf("settlement for unknown subscription %q ignored", subID)
		return nil
	}
	delete(m.subs, subID)

	if len(args) < 2 {
		err := fmt.Errorf("settlement needs a state and a value: %w", model.ErrNotValid)
		f.Reject(err)
		return err
	}

	state, _ := args[0].(string)
	if state == "fulfilled" {
		f.Resolve(args[1])
		return nil
	}
	f.Reject(rejectionError(args[1]))
	return nil
}

// rejectionError adapts a marshalled rejection reason into the evaluation
// error the awaiting host caller sees.
func rejectionError(v any) error {
	msg := "promise rejected"
	switch t := v.(type) {
	case string:
		msg = t
	case map[string]any:
		if s, ok := t["message"].(string); ok {
			msg = s
		}
	}
	return &model.EvaluationError{Message: msg, Value: v}
}
