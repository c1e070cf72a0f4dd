// Package registry keeps named backend factories so the process can pick a
// vision or speech backend from configuration at startup.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrUnknownBackend is returned by Create for names nobody registered.
var ErrUnknownBackend = errors.New("unknown backend")

// Factory builds a backend of type T from flat string settings.
type Factory[T any] func(settings map[string]string) (T, error)

// Registry maps backend names to factories. Names are case-insensitive.
type Registry[T any] struct {
	mu    sync.RWMutex
	byKey map[string]Factory[T]
}

func New[T any]() *Registry[T] {
	return &Registry[T]{byKey: make(map[string]Factory[T])}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a factory under name. Registering the same name twice is a
// programming error and panics.
func (r *Registry[T]) Register(name string, factory Factory[T]) {
	k := key(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byKey[k]; dup {
		panic(fmt.Sprintf("registry: backend %q registered twice", k))
	}
	r.byKey[k] = factory
}

// Create builds the backend registered under name. Factory errors are
// prefixed with the backend name.
func (r *Registry[T]) Create(name string, settings map[string]string) (T, error) {
	k := key(name)
	r.mu.RLock()
	factory := r.byKey[k]
	r.mu.RUnlock()

	if factory == nil {
		var zero T
		return zero, fmt.Errorf("%w %q (have %s)", ErrUnknownBackend, name, strings.Join(r.List(), ", "))
	}
	backend, err := factory(settings)
	if err != nil {
		return backend, fmt.Errorf("backend %s: %w", k, err)
	}
	return backend, nil
}

// List returns the registered names in sorted order.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.byKey))
}
