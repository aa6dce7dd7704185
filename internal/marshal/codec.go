package marshal

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/swimmadude66/tectonica/internal/model"
)

// tokenPrefix starts every magic token so wire payload keys can't collide
// with ordinary object keys by accident.
const tokenPrefix = "__tect_"

// structuralObject is an object that crosses the boundary field by field as
// plain JSON instead of being cached behind an id. Used for envelopes the
// other side needs as a plain object, like property descriptors.
type structuralObject map[string]any

func (m *Marshaller) newToken() string {
	return tokenPrefix + m.reg.NewID()
}

// Serialize encodes v into its wire form under token, minting a token when
// none is given. The effective token is returned alongside the wire so the
// receiving side can decode with it. parentCacheID binds a function value
// to the cached receiver it was read from.
func (m *Marshaller) Serialize(v any, token, parentCacheID string) (wire, tokenOut string, err error) {
	if token == "" {
		token = m.newToken()
	}

	node, err := m.encode(v, token, parentCacheID)
	if err != nil {
		return "", "", err
	}
	// Top level nil crosses tagged so the other side can tell it apart
	// from an empty payload.
	if node == nil {
		node = m.wrap(model.KindNull, token, nil, "")
	}

	raw, err := json.Marshal(node)
	if err != nil {
		return "", "", fmt.Errorf("could not encode wire form: %w", err)
	}

	return string(raw), token, nil
}

// Deserialize decodes a wire string produced by either side's codec under
// token. Values cached by this side come back as the original Go values,
// sandbox-cached values come back as proxies. The context is needed because
// decoding a sandbox promise registers a settle watch inside the sandbox.
func (m *Marshaller) Deserialize(ctx context.Context, wire, token, parentCacheID string) (any, error) {
	var node any
	if err := json.Unmarshal([]byte(wire), &node); err != nil {
		return nil, fmt.Errorf("could not decode wire form: %w", err)
	}

	return m.decode(ctx, node, token, parentCacheID)
}

func (m *Marshaller) wrap(kind model.Kind, token string, payload any, parent string) map[string]any {
	w := map[string]any{
		model.WireTypeKey: string(kind),
		token:             payload,
	}
	if parent != "" {
		w[model.WireParentKey] = parent
	}
	return w
}

// cacheWrap parks v in the registry and emits a tagged reference to it. A
// value this side already handed an id to goes out as a hostcache
// re-reference instead of a second entry.
func (m *Marshaller) cacheWrap(kind model.Kind, v any, token, parent string) map[string]any {
	if id, ok := m.reg.IDFor(v); ok {
		return m.wrap(model.KindHostCache, token, id, "")
	}

	id := m.reg.NewID()
	m.reg.Cache(id, v)
	return m.wrap(kind, token, id, parent)
}

func (m *Marshaller) encode(v any, token, parent string) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case model.Undefined:
		return m.wrap(model.KindUndefined, token, nil, ""), nil
	case string:
		return t, nil
	case bool:
		return t, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case *big.Int:
		if t == nil {
			return nil, nil
		}
		return m.wrap(model.KindBigInt, token, t.String(), ""), nil
	case model.Symbol:
		return m.wrap(model.KindSymbol, token, string(t), ""), nil
	case time.Time:
		return m.wrap(model.KindDate, token, float64(t.UnixMilli()), ""), nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return m.wrap(model.KindDate, token, float64(t.UnixMilli()), ""), nil
	case *Future:
		if t == nil {
			return nil, nil
		}
		return m.cacheWrap(model.KindPromise, t, token, ""), nil
	case *Remote:
		if t == nil {
			return nil, nil
		}
		// A proxy goes home as a cache reference for its owning side,
		// identity intact.
		return m.wrap(t.side.CacheKind(), token, t.cacheID, ""), nil
	case structuralObject:
		out := map[string]any{}
		for k, el := range t {
			ev, err := m.encode(el, token, "")
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			ev, err := m.encode(rv.Index(i).Interface(), token, "")
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil

	case reflect.Func:
		if rv.IsNil() {
			return nil, nil
		}
		return m.cacheWrap(model.KindFunction, v, token, parent), nil

	case reflect.Map, reflect.Pointer, reflect.Struct:
		if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Pointer) && rv.IsNil() {
			return nil, nil
		}
		return m.cacheWrap(model.KindObject, v, token, ""), nil

	default:
		return nil, fmt.Errorf("%T can't cross the sandbox boundary: %w", v, model.ErrUnsupportedValue)
	}
}

func (m *Marshaller) decode(ctx context.Context, node any, token, parent string) (any, error) {
	switch n := node.(type) {
	case nil:
		return nil, nil
	case bool:
		return n, nil
	case float64:
		return n, nil
	case string:
		return n, nil

	case []any:
		out := make([]any, len(n))
		for i, el := range n {
			dv, err := m.decode(ctx, el, token, "")
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil

	case map[string]any:
		kind, payload, ok := wrapperOf(n, token)
		if !ok {
			// Bare objects cross structurally.
			out := map[string]any{}
			for k, el := range n {
				dv, err := m.decode(ctx, el, token, "")
				if err != nil {
					return nil, err
				}
				out[k] = dv
			}
			return out, nil
		}

		nodeParent, _ := n[model.WireParentKey].(string)
		if nodeParent == "" {
			nodeParent = parent
		}
		return m.decodeWrapper(ctx, kind, payload, nodeParent)

	default:
		return nil, fmt.Errorf("unexpected wire node of type %T: %w", node, model.ErrNotValid)
	}
}

// wrapperOf reports whether node is a tagged wrapper under token. It needs
// both the literal type key holding a known kind and the token key.
func wrapperOf(node map[string]any, token string) (model.Kind, any, bool) {
	t, ok := node[model.WireTypeKey].(string)
	if !ok || !model.KnownKind(t) {
		return "", nil, false
	}
	payload, ok := node[token]
	if !ok {
		return "", nil, false
	}
	return model.Kind(t), payload, true
}

func (m *Marshaller) decodeWrapper(ctx context.Context, kind model.Kind, payload any, parent string) (any, error) {
	switch kind {
	case model.KindUndefined:
		return model.Undefined{}, nil

	case model.KindNull:
		return nil, nil

	case model.KindBigInt:
		s, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("bigint payload must be a string: %w", model.ErrNotValid)
		}
		i, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("bigint payload %q is not a decimal integer: %w", s, model.ErrNotValid)
		}
		return i, nil

	case model.KindSymbol:
		s, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("symbol payload must be a string: %w", model.ErrNotValid)
		}
		return model.Symbol(s), nil

	case model.KindDate:
		f, ok := payload.(float64)
		if !ok {
			return nil, fmt.Errorf("date payload must be epoch milliseconds: %w", model.ErrNotValid)
		}
		return time.UnixMilli(int64(f)).UTC(), nil

	case model.KindHostCache:
		id, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("cache payload must be an id: %w", model.ErrNotValid)
		}
		v, ok := m.reg.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("host cache entry %q: %w", id, model.ErrDanglingReference)
		}
		return v, nil

	case model.KindVMCache:
		id, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("cache payload must be an id: %w", model.ErrNotValid)
		}
		return m.remoteFor(id, parent), nil

	case model.KindObject, model.KindFunction:
		id, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("cache payload must be an id: %w", model.ErrNotValid)
		}
		// Own side first: a round trip of a value we cached returns the
		// original, not a proxy to ourselves.
		if v, ok := m.reg.Lookup(id); ok {
			return v, nil
		}
		return m.remoteFor(id, parent), nil

	case model.KindPromise:
		id, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("cache payload must be an id: %w", model.ErrNotValid)
		}
		if v, ok := m.reg.Lookup(id); ok {
			return v, nil
		}
		return m.watchGuestPromise(ctx, id)

	default:
		return nil, fmt.Errorf("unknown wire kind %q: %w", kind, model.ErrNotValid)
	}
}
