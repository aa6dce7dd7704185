// Package registry implements the host side value cache used by the
// marshalling layer: non primitive values that cross into the sandbox are
// parked here behind an opaque id so later references resolve back to the
// original Go value.
package registry

import (
	"crypto/rand"
	"reflect"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Registry caches host values by id and remembers the id handed to a value
// so re-serializing it reuses the same identity. Entries live until the
// registry is dropped, there is no eviction.
//
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	values   map[string]any
	identity map[uintptr]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		values:   map[string]any{},
		identity: map[uintptr]string{},
	}
}

// NewID mints a fresh cache id.
func (r *Registry) NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Cache stores v under id and tags its identity when the value supports it.
func (r *Registry) Cache(id string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[id] = v
	if key, ok := identityKey(v); ok {
		r.identity[key] = id
	}
}

// Lookup returns the value cached under id.
func (r *Registry) Lookup(id string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[id]
	return v, ok
}

// IDFor returns the id previously handed to v. Values without trackable
// identity always miss.
func (r *Registry) IDFor(v any) (string, bool) {
	key, ok := identityKey(v)
	if !ok {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.identity[key]
	return id, ok
}

// Tag records id as v's identity without caching it. Returns false when the
// value's identity can't be tracked.
func (r *Registry) Tag(v any, id string) bool {
	key, ok := identityKey(v)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.identity[key] = id
	return true
}

// Len returns how many values are cached.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.values)
}

// identityKey reduces v to a stable address when it has one. Go values take
// no property writes, so identity rides on the referenced address: pointers
// and maps qualify, funcs don't (closures share code pointers) and plain
// structs are copied on the way in. Those get a fresh id per crossing.
func identityKey(v any) (uintptr, bool) {
	if v == nil {
		return 0, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan:
		if rv.IsNil() {
			return 0, false
		}
		return rv.Pointer(), true
	}

	return 0, false
}
