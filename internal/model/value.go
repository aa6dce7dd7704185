package model

// Kind identifies how a value is encoded in the marshalling wire form.
type Kind string

const (
	// KindUndefined encodes the `undefined` value.
	KindUndefined Kind = "undefined"
	// KindNull encodes an explicit null.
	KindNull Kind = "null"
	// KindBigInt encodes an arbitrary-precision integer as its decimal string.
	KindBigInt Kind = "bigint"
	// KindSymbol encodes a registered symbol by its registry key or description.
	KindSymbol Kind = "symbol"
	// KindDate encodes a date as epoch milliseconds.
	KindDate Kind = "date"
	// KindPromise encodes a cached promise by CacheId.
	KindPromise Kind = "promise"
	// KindFunction encodes a cached function by CacheId.
	KindFunction Kind = "function"
	// KindObject encodes a cached object by CacheId.
	KindObject Kind = "object"
	// KindHostCache re-references a value already cached on the host side.
	KindHostCache Kind = "hostcache"
	// KindVMCache re-references a value already cached on the sandbox side.
	KindVMCache Kind = "vmcache"
)

// KnownKind reports whether s names one of the wire kinds.
func KnownKind(s string) bool {
	switch Kind(s) {
	case KindUndefined, KindNull, KindBigInt, KindSymbol, KindDate,
		KindPromise, KindFunction, KindObject, KindHostCache, KindVMCache:
		return true
	}
	return false
}

// Side identifies which heap owns a cached value.
type Side string

const (
	// SideHost is the embedding Go process.
	SideHost Side = "host"
	// SideVM is the sandboxed script engine.
	SideVM Side = "vm"
)

// CacheKind returns the re-reference kind for values cached on this side.
func (s Side) CacheKind() Kind {
	if s == SideVM {
		return KindVMCache
	}
	return KindHostCache
}

// Undefined is the host representation of the sandbox `undefined` value.
// It is distinct from nil, which maps to null.
type Undefined struct{}

func (Undefined) String() string { return "undefined" }

// Symbol is the host representation of a sandbox symbol. The string is the
// global symbol registry key (or the symbol description for unregistered
// symbols, which round-trip with registered-symbol semantics only).
type Symbol string

func (s Symbol) String() string { return "Symbol(" + string(s) + ")" }

// WireTypeKey is the fixed wire key naming a tagged wrapper's kind. A node is
// a wrapper only when it carries both this key and the call's magic token key.
const WireTypeKey = "type"

// WireParentKey is the wire key carrying a function's implicit receiver
// CacheId.
const WireParentKey = "parentCacheId"
