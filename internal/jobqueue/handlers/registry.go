// Package handlers maps job function names to statically typed handlers.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc runs one job. The result must be JSON-serializable.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register fails when name is empty or already taken.
func (r *Registry) Register(name string, fn HandlerFunc) error {
	if name == "" {
		return fmt.Errorf("handler name is empty")
	}
	if fn == nil {
		return fmt.Errorf("handler %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.handlers[name] = fn
	return nil
}

func (r *Registry) MustRegister(name string, fn HandlerFunc) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names returns the registered names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Typed wraps a handler taking decoded arguments. Empty args decode to the
// zero value of A.
func Typed[A any, R any](fn func(ctx context.Context, args A) (R, error)) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, &ArgumentError{Err: err}
			}
		}
		return fn(ctx, args)
	}
}

// ArgumentError reports job arguments that do not match the handler.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string {
	return "invalid job arguments: " + e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}
