package marshal

import (
	"context"
	"errors"
	"fmt"

	"github.com/swimmadude66/tectonica/internal/model"
)

// Remote is the host side proxy for a value cached inside the sandbox.
// Every method is one synchronous round trip: the arguments are marshalled,
// the sandbox trap entry invoked, the answer unmarshalled. Remotes stay
// valid as long as the origin cache entry exists; a dropped entry makes the
// traps fail with ErrDanglingReference, except the two that document a
// false fallback.
type Remote struct {
	m             *Marshaller
	cacheID       string
	parentCacheID string
	side          model.Side
}

// CacheID returns the sandbox cache id this proxy points at.
func (r *Remote) CacheID() string {
	return r.cacheID
}

// Side returns which heap owns the proxied value. Going home, the proxy is
// re-encoded as a cache reference for that side.
func (r *Remote) Side() model.Side {
	return r.side
}

func (r *Remote) String() string {
	return fmt.Sprintf("remote(%s)", r.cacheID)
}

func (r *Remote) trap(ctx context.Context, op string, args []any) (any, error) {
	return r.m.callGuestTrap(ctx, op, r.cacheID, r.parentCacheID, args)
}

// Get reads a property off the sandbox value.
func (r *Remote) Get(ctx context.Context, key string) (any, error) {
	return r.trap(ctx, "get", []any{key})
}

// Set writes a property on the sandbox value.
func (r *Remote) Set(ctx context.Context, key string, v any) error {
	_, err := r.trap(ctx, "set", []any{key, v})
	return err
}

// Has mirrors the `in` operator. A dangling reference answers false.
func (r *Remote) Has(ctx context.Context, key string) (bool, error) {
	v, err := r.trap(ctx, "has", []any{key})
	if err != nil {
		if errors.Is(err, model.ErrDanglingReference) {
			return false, nil
		}
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// DeleteProperty removes a property from the sandbox value.
func (r *Remote) DeleteProperty(ctx context.Context, key string) (bool, error) {
	v, err := r.trap(ctx, "deleteProperty", []any{key})
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// Apply calls the sandbox value. The receiver is the cached parent the
// function was read from, when there is one.
func (r *Remote) Apply(ctx context.Context, args []any) (any, error) {
	return r.trap(ctx, "apply", args)
}

// Construct invokes the sandbox value as a constructor.
func (r *Remote) Construct(ctx context.Context, args []any) (any, error) {
	return r.trap(ctx, "construct", args)
}

// OwnKeys lists the sandbox value's own string keys.
func (r *Remote) OwnKeys(ctx context.Context) ([]string, error) {
	v, err := r.trap(ctx, "ownKeys", nil)
	if err != nil {
		return nil, err
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("ownKeys answered %T: %w", v, model.ErrNotValid)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			keys = append(keys, s)
		}
	}
	return keys, nil
}

// GetOwnPropertyDescriptor returns the property's data descriptor, or nil
// when the property is absent.
func (r *Remote) GetOwnPropertyDescriptor(ctx context.Context, key string) (map[string]any, error) {
	v, err := r.trap(ctx, "getOwnPropertyDescriptor", []any{key})
	if err != nil {
		return nil, err
	}
	if v == nil || isUndefined(v) {
		return nil, nil
	}
	desc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("descriptor answered %T: %w", v, model.ErrNotValid)
	}
	return desc, nil
}

// DefineProperty applies a data descriptor to the sandbox value.
func (r *Remote) DefineProperty(ctx context.Context, key string, desc map[string]any) error {
	_, err := r.trap(ctx, "defineProperty", []any{key, structuralObject(desc)})
	return err
}

// GetPrototypeOf returns the sandbox value's prototype, nil for the
// universal base prototype.
func (r *Remote) GetPrototypeOf(ctx context.Context) (any, error) {
	return r.trap(ctx, "getPrototypeOf", nil)
}

// SetPrototypeOf replaces the sandbox value's prototype.
func (r *Remote) SetPrototypeOf(ctx context.Context, proto any) error {
	_, err := r.trap(ctx, "setPrototypeOf", []any{proto})
	return err
}

// IsExtensible mirrors Object.isExtensible. A dangling reference answers
// false.
func (r *Remote) IsExtensible(ctx context.Context) (bool, error) {
	v, err := r.trap(ctx, "isExtensible", nil)
	if err != nil {
		if errors.Is(err, model.ErrDanglingReference) {
			return false, nil
		}
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

// PreventExtensions seals the sandbox value against new properties.
func (r *Remote) PreventExtensions(ctx context.Context) (bool, error) {
	v, err := r.trap(ctx, "preventExtensions", nil)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}
