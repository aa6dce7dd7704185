// Package store implements a watchable key value store mirrored into the
// sandbox: host code sets and watches entries, sandbox code reads and writes
// the same entries through a proxied namespace object.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/swimmadude66/tectonica/internal/log"
	"github.com/swimmadude66/tectonica/internal/model"
	"github.com/swimmadude66/tectonica/internal/vm"
)

// Change describes one store mutation delivered to watchers.
type Change struct {
	Key     string
	Value   any
	Deleted bool
}

// StoreConfig is the configuration for the Store.
type StoreConfig struct {
	// VM is the sandbox the store is mirrored into. It must be ready before
	// Bind is called.
	VM *vm.VM
	// GlobalName is the sandbox global holding the store namespace.
	GlobalName string
	// WatchBuffer is the per watcher channel capacity.
	WatchBuffer int
	// Logger for logging.
	Logger log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.VM == nil {
		return fmt.Errorf("vm is required")
	}
	if c.GlobalName == "" {
		c.GlobalName = "store"
	}
	if c.WatchBuffer <= 0 {
		c.WatchBuffer = 16
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "store.Store"})

	return nil
}

// Store is a reactive key value store. A mirror of the entries crosses into
// the sandbox once, as a proxied object, so sandbox reads and writes hit the
// same entries host code sees.
//
// Safe for concurrent use: sandbox reads and writes go through the mirror
// and take the same mutex host accessors do. Mutations notify watchers no
// matter which side made them.
type Store struct {
	vmInst     *vm.VM
	globalName string
	watchBuf   int
	logger     log.Logger

	mu       sync.RWMutex
	entries  map[string]any
	watchers map[int]*watcher
	nextID   int
	closed   bool
}

type watcher struct {
	key string // Empty watches every key.
	ch  chan Change
}

// mirror is the sandbox facing view of the entries. It services the proxy
// property traps itself, so guest reads and writes take the store mutex and
// guest mutations notify watchers like host mutations do.
type mirror struct {
	s *Store
}

func (mi *mirror) GetProperty(key string) (any, bool) {
	return mi.s.Get(key)
}

func (mi *mirror) SetProperty(key string, value any) error {
	return mi.s.Set(context.Background(), key, value)
}

func (mi *mirror) DeleteProperty(key string) bool {
	return mi.s.Delete(context.Background(), key) == nil
}

func (mi *mirror) PropertyKeys() []string {
	return mi.s.Keys()
}

// NewStore creates a new store. Call Bind to mirror it into the sandbox.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		vmInst:     cfg.VM,
		globalName: cfg.GlobalName,
		watchBuf:   cfg.WatchBuffer,
		logger:     cfg.Logger,
		entries:    map[string]any{},
		watchers:   map[int]*watcher{},
	}, nil
}

// Bind registers the store's sandbox mirror on the global object. The VM
// must be ready.
func (s *Store) Bind(ctx context.Context) error {
	return s.vmInst.RegisterGlobal(ctx, s.globalName, &mirror{s: s})
}

// Set stores value under key and notifies watchers. The sandbox sees the
// new entry immediately through the mirrored namespace.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("store is closed: %w", model.ErrNotInitialized)
	}
	s.entries[key] = value
	s.mu.Unlock()

	s.notify(Change{Key: key, Value: value})

	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[key]
	return v, ok
}

// Delete removes key and notifies watchers.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("store is closed: %w", model.ErrNotInitialized)
	}
	_, existed := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if existed {
		s.notify(Change{Key: key, Deleted: true})
	}

	return nil
}

// Keys returns the stored keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Watch returns a channel delivering changes for key (every key when key is
// empty) and a cancel func releasing the watcher. Slow watchers drop
// intermediate changes instead of stalling the store owner.
func (s *Store) Watch(key string) (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	w := &watcher{key: key, ch: make(chan Change, s.watchBuf)}
	if s.closed {
		close(w.ch)
		return w.ch, func() {}
	}
	s.watchers[id] = w

	return w.ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(w.ch)
		}
	}
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.watchers {
		if w.key != "" && w.key != c.Key {
			continue
		}
		select {
		case w.ch <- c:
		default:
			s.logger.Debugf("watcher for %q is full, change dropped", c.Key)
		}
	}
}

// Close releases every watcher. The mirrored namespace stays readable
// inside the sandbox until the VM is torn down; writes to a closed store
// throw in the sandbox like they fail on the host.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	for id, w := range s.watchers {
		delete(s.watchers, id)
		close(w.ch)
	}
}
