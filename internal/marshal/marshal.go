// Package marshal implements the value crossing protocol between the host
// and the sandboxed script engine: the tagged wire codec, the per side
// value caches, remote proxies for values living on the other side, and
// the promise bridge.
package marshal

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/swimmadude66/tectonica/internal/engine"
	"github.com/swimmadude66/tectonica/internal/log"
	"github.com/swimmadude66/tectonica/internal/model"
	"github.com/swimmadude66/tectonica/internal/registry"
)

const (
	// GuestNamespace is the sandbox global holding the companion codec.
	GuestNamespace = "__tectonica"
	trapFnName     = "__tectonica_trap"
)

// Trap operations, shared vocabulary with the companion codec.
const (
	trapOpGet                      = "get"
	trapOpSet                      = "set"
	trapOpHas                      = "has"
	trapOpDeleteProperty           = "deleteProperty"
	trapOpOwnKeys                  = "ownKeys"
	trapOpGetOwnPropertyDescriptor = "getOwnPropertyDescriptor"
	trapOpDefineProperty           = "defineProperty"
	trapOpGetPrototypeOf           = "getPrototypeOf"
	trapOpSetPrototypeOf           = "setPrototypeOf"
	trapOpIsExtensible             = "isExtensible"
	trapOpPreventExtensions        = "preventExtensions"
	trapOpApply                    = "apply"
	trapOpConstruct                = "construct"
	trapOpPromise                  = "promise"
	trapOpSettle                   = "settle"
)

// MarshallerConfig is the configuration for the Marshaller.
type MarshallerConfig struct {
	// Engine is the sandbox the marshaller crosses values into.
	Engine engine.Engine
	// Logger for logging.
	Logger log.Logger
}

func (c *MarshallerConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "marshal.Marshaller"})

	return nil
}

// Marshaller moves values across the sandbox boundary in both directions.
// It owns the host side cache and, once bound, the companion codec
// installed inside the sandbox. Like the engine it wraps, it is single
// owner only; the promise bridge is the exception and may settle futures
// from other goroutines.
type Marshaller struct {
	eng     engine.Engine
	logger  log.Logger
	reg     *registry.Registry
	remotes map[string]*Remote
	futures map[string]*Future
	subs    map[string]*Future
	bound   bool
}

// NewMarshaller creates a new Marshaller. Call Bind once the engine runs.
func NewMarshaller(cfg MarshallerConfig) (*Marshaller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Marshaller{
		eng:     cfg.Engine,
		logger:  cfg.Logger,
		reg:     registry.New(),
		remotes: map[string]*Remote{},
		futures: map[string]*Future{},
		subs:    map[string]*Future{},
	}, nil
}

// Registry returns the host side value cache.
func (m *Marshaller) Registry() *registry.Registry {
	return m.reg
}

func (m *Marshaller) ensureBound() error {
	if !m.bound {
		return fmt.Errorf("marshaller is not bound to the sandbox: %w", model.ErrNotInitialized)
	}
	return nil
}

// remoteFor returns the proxy for a sandbox cache id, one per id so
// repeated crossings keep their identity.
func (m *Marshaller) remoteFor(id, parent string) *Remote {
	if r, ok := m.remotes[id]; ok {
		return r
	}
	r := &Remote{m: m, cacheID: id, parentCacheID: parent, side: model.SideVM}
	m.remotes[id] = r
	return r
}

// Bind installs the companion codec inside the sandbox and hands it the
// host trap callback. Must run once, after the engine started.
func (m *Marshaller) Bind(ctx context.Context) error {
	if m.bound {
		return fmt.Errorf("marshaller already bound: %w", model.ErrAlreadyExists)
	}

	g := engine.NewGuard(m.eng)
	defer g.Close(ctx)

	// 1. Install the companion codec.
	h, err := m.eng.Eval(ctx, guestSource, "tectonica_guest.js")
	if err != nil {
		return fmt.Errorf("could not install sandbox codec: %w", err)
	}
	g.Track(h)

	// 2. Hand it the host trap callback.
	trapFn, err := m.eng.NewFunction(ctx, trapFnName, 5, m.hostTrap)
	if err != nil {
		return fmt.Errorf("could not create trap callback: %w", err)
	}
	g.Track(trapFn)

	ns, err := m.guestNamespace(ctx, g)
	if err != nil {
		return err
	}
	bindFn, err := m.eng.GetProperty(ctx, ns, "_bind")
	if err != nil {
		return fmt.Errorf("could not reach sandbox bind entry: %w", err)
	}
	g.Track(bindFn)

	res, err := m.eng.Call(ctx, bindFn, ns, []engine.Handle{trapFn})
	if err != nil {
		return fmt.Errorf("could not bind sandbox codec: %w", err)
	}
	g.Track(res)

	m.bound = true
	m.logger.Debugf("sandbox codec bound")

	return nil
}

// Release drops the sandbox side of the codec and fails every pending
// bridged promise. Best effort, idempotent.
func (m *Marshaller) Release(ctx context.Context) error {
	if !m.bound {
		return nil
	}
	m.bound = false

	for id, f := range m.subs {
		delete(m.subs, id)
		f.Reject(fmt.Errorf("sandbox released: %w", model.ErrNotInitialized))
	}
	m.remotes = map[string]*Remote{}
	m.futures = map[string]*Future{}

	if m.eng.Alive() {
		h, err := m.eng.Eval(ctx, guestDisposeSrc, "tectonica_dispose.js")
		if err != nil {
			m.logger.Warningf("could not dispose sandbox codec: %s", err)
		} else {
			m.eng.Free(ctx, h)
		}
	}

	m.logger.Debugf("sandbox codec released")

	return nil
}

// guestNamespace resolves the sandbox codec namespace object.
func (m *Marshaller) guestNamespace(ctx context.Context, g *engine.Guard) (engine.Handle, error) {
	glob, err := m.eng.GlobalObject(ctx)
	if err != nil {
		return 0, err
	}
	g.Track(glob)

	ns, err := m.eng.GetProperty(ctx, glob, GuestNamespace)
	if err != nil {
		return 0, err
	}
	g.Track(ns)

	kind, err := m.eng.KindOf(ctx, ns)
	if err != nil {
		return 0, err
	}
	if kind != engine.ValueKindObject {
		return 0, fmt.Errorf("sandbox codec is not installed: %w", model.ErrNotInitialized)
	}

	return ns, nil
}

// ToGuest marshals v and materializes it inside the sandbox. The caller
// owns the returned handle.
func (m *Marshaller) ToGuest(ctx context.Context, v any) (engine.Handle, error) {
	if err := m.ensureBound(); err != nil {
		return 0, err
	}

	g := engine.NewGuard(m.eng)
	defer g.Close(ctx)

	h, err := m.toGuestValue(ctx, g, v)
	if err != nil {
		return 0, err
	}
	return g.Keep(h), nil
}

// toGuestValue marshals v into the sandbox, tracking the result on g.
func (m *Marshaller) toGuestValue(ctx context.Context, g *engine.Guard, v any) (engine.Handle, error) {
	wire, token, err := m.Serialize(v, "", "")
	if err != nil {
		return 0, err
	}

	ns, err := m.guestNamespace(ctx, g)
	if err != nil {
		return 0, err
	}
	deFn, err := m.eng.GetProperty(ctx, ns, "deserialize")
	if err != nil {
		return 0, fmt.Errorf("could not reach sandbox decoder: %w", err)
	}
	g.Track(deFn)

	wh, err := m.eng.NewString(ctx, wire)
	if err != nil {
		return 0, err
	}
	g.Track(wh)
	th, err := m.eng.NewString(ctx, token)
	if err != nil {
		return 0, err
	}
	g.Track(th)

	res, err := m.eng.Call(ctx, deFn, ns, []engine.Handle{wh, th})
	if err != nil {
		return 0, fmt.Errorf("sandbox decode failed: %w", err)
	}
	return g.Track(res), nil
}

// FromGuest unmarshals the sandbox value behind h into a host value. The
// handle stays owned by the caller.
func (m *Marshaller) FromGuest(ctx context.Context, h engine.Handle) (any, error) {
	if err := m.ensureBound(); err != nil {
		return nil, err
	}

	g := engine.NewGuard(m.eng)
	defer g.Close(ctx)

	ns, err := m.guestNamespace(ctx, g)
	if err != nil {
		return nil, err
	}
	serFn, err := m.eng.GetProperty(ctx, ns, "serialize")
	if err != nil {
		return nil, fmt.Errorf("could not reach sandbox encoder: %w", err)
	}
	g.Track(serFn)

	token := m.newToken()
	th, err := m.eng.NewString(ctx, token)
	if err != nil {
		return nil, err
	}
	g.Track(th)

	res, err := m.eng.Call(ctx, serFn, ns, []engine.Handle{h, th})
	if err != nil {
		return nil, fmt.Errorf("sandbox encode failed: %w", err)
	}
	g.Track(res)

	wire, err := m.eng.ToString(ctx, res)
	if err != nil {
		return nil, err
	}

	return m.Deserialize(ctx, wire, token, "")
}

// callGuestTrap runs one proxy trap round trip against the sandbox serve
// entry.
func (m *Marshaller) callGuestTrap(ctx context.Context, op, cacheID, parent string, args []any) (any, error) {
	if err := m.ensureBound(); err != nil {
		return nil, err
	}

	token := m.newToken()
	wire := ""
	if args != nil {
		w, _, err := m.Serialize(args, token, "")
		if err != nil {
			return nil, err
		}
		wire = w
	}

	g := engine.NewGuard(m.eng)
	defer g.Close(ctx)

	ns, err := m.guestNamespace(ctx, g)
	if err != nil {
		return nil, err
	}
	serveFn, err := m.eng.GetProperty(ctx, ns, "serve")
	if err != nil {
		return nil, fmt.Errorf("could not reach sandbox trap entry: %w", err)
	}
	g.Track(serveFn)

	handles := make([]engine.Handle, 0, 5)
	for _, s := range []string{op, cacheID, parent, wire, token} {
		h, err := m.eng.NewString(ctx, s)
		if err != nil {
			return nil, err
		}
		handles = append(handles, g.Track(h))
	}

	res, err := m.eng.Call(ctx, serveFn, ns, handles)
	if err != nil {
		var se *engine.ScriptError
		if errors.As(err, &se) {
			m.eng.Free(ctx, se.Value)
		}
		return nil, guestTrapError(op, cacheID, err)
	}
	g.Track(res)

	out, err := m.eng.ToString(ctx, res)
	if err != nil {
		return nil, err
	}

	return m.Deserialize(ctx, out, token, "")
}

// guestTrapError maps sandbox trap exceptions onto the error taxonomy.
func guestTrapError(op, cacheID string, err error) error {
	var se *engine.ScriptError
	if !errors.As(err, &se) {
		return fmt.Errorf("trap %s on %q failed: %w", op, cacheID, err)
	}
	if strings.Contains(se.Message, model.ErrDanglingReference.Error()) {
		return fmt.Errorf("trap %s on %q: %w", op, cacheID, model.ErrDanglingReference)
	}
	if strings.Contains(se.Message, model.ErrNotAFunction.Error()) {
		return fmt.Errorf("trap %s on %q: %w", op, cacheID, model.ErrNotAFunction)
	}
	return fmt.Errorf("trap %s on %q failed in the sandbox: %w", op, cacheID, err)
}

// hostTrap is the single callback the sandbox codec calls for every proxy
// trap, promise dereference and promise settlement. Arguments are op,
// cache id, parent cache id, wire encoded args and the wire token, all
// strings. Most operations answer a wire string; promise dereferences
// answer the promise value itself.
func (m *Marshaller) hostTrap(ctx context.Context, raw []engine.Handle) (engine.Handle, error) {
	if len(raw) < 5 {
		return 0, fmt.Errorf("trap call needs 5 arguments: %w", model.ErrNotValid)
	}

	strs := make([]string, 5)
	for i := range strs {
		s, err := m.eng.ToString(ctx, raw[i])
		if err != nil {
			return 0, fmt.Errorf("could not read trap argument %d: %w", i, err)
		}
		strs[i] = s
	}
	op, cacheID, parent, wire, token := strs[0], strs[1], strs[2], strs[3], strs[4]

	switch op {
	case trapOpPromise:
		return m.trapPromise(ctx, cacheID)

	case trapOpSettle:
		args, err := m.decodeTrapArgs(ctx, wire, token)
		if err != nil {
			return 0, err
		}
		return 0, m.trapSettle(cacheID, args)

	default:
		args, err := m.decodeTrapArgs(ctx, wire, token)
		if err != nil {
			return 0, err
		}
		res, resParent, err := m.serveTrap(ctx, op, cacheID, parent, args)
		if err != nil {
			return 0, err
		}
		wireOut, _, err := m.Serialize(res, token, resParent)
		if err != nil {
			return 0, err
		}
		return m.eng.NewString(ctx, wireOut)
	}
}

func (m *Marshaller) decodeTrapArgs(ctx context.Context, wire, token string) ([]any, error) {
	if wire == "" {
		return nil, nil
	}
	v, err := m.Deserialize(ctx, wire, token, "")
	if err != nil {
		return nil, fmt.Errorf("could not decode trap arguments: %w", err)
	}
	args, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("trap arguments must be an array, got %T: %w", v, model.ErrNotValid)
	}
	return args, nil
}

// serveTrap services one proxy trap against a host cache entry. The second
// return is the parent cache id to stamp on the serialized result, set
// when a property read hands out a function.
func (m *Marshaller) serveTrap(ctx context.Context, op, cacheID, parent string, args []any) (any, string, error) {
	target, ok := m.reg.Lookup(cacheID)
	if !ok {
		// has and isExtensible keep their documented false fallback.
		switch op {
		case trapOpHas, trapOpIsExtensible:
			return false, "", nil
		}
		return nil, "", fmt.Errorf("host cache entry %q: %w", cacheID, model.ErrDanglingReference)
	}

	switch op {
	case trapOpGet:
		v, err := hostGet(target, stringArg(args, 0))
		if err != nil {
			return nil, "", err
		}
		if isFuncValue(v) {
			return v, cacheID, nil
		}
		return v, "", nil

	case trapOpSet:
		var val any
		if len(args) > 1 {
			val = args[1]
		}
		if err := hostSet(target, stringArg(args, 0), val); err != nil {
			return nil, "", err
		}
		return true, "", nil

	case trapOpHas:
		return hostHas(target, stringArg(args, 0)), "", nil

	case trapOpDeleteProperty:
		return hostDelete(target, stringArg(args, 0)), "", nil

	case trapOpOwnKeys:
		return hostOwnKeys(target), "", nil

	case trapOpGetOwnPropertyDescriptor:
		d, err := hostDescriptor(target, stringArg(args, 0))
		return d, "", err

	case trapOpDefineProperty:
		desc, _ := argAt(args, 1).(map[string]any)
		if desc == nil {
			return nil, "", fmt.Errorf("descriptor must be an object: %w", model.ErrNotValid)
		}
		if err := hostDefine(target, stringArg(args, 0), desc); err != nil {
			return nil, "", err
		}
		return true, "", nil

	case trapOpGetPrototypeOf:
		// Host values expose no prototype chain.
		return nil, "", nil

	case trapOpSetPrototypeOf:
		return false, "", nil

	case trapOpIsExtensible:
		return true, "", nil

	case trapOpPreventExtensions:
		return false, "", nil

	case trapOpApply, trapOpConstruct:
		// Go funcs carry their receiver with them, the parent id in the
		// protocol only matters for sandbox side receivers.
		v, err := hostApply(ctx, target, args)
		return v, "", err

	default:
		return nil, "", fmt.Errorf("unknown trap %q: %w", op, model.ErrNotValid)
	}
}

func stringArg(args []any, i int) string {
	s, _ := argAt(args, i).(string)
	return s
}

func argAt(args []any, i int) any {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

func isFuncValue(v any) bool {
	if v == nil {
		return false
	}
	return reflect.ValueOf(v).Kind() == reflect.Func
}
