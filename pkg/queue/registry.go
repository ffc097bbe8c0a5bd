package queue

import (
	"fmt"
	"reflect"
	"sync"
)

// Factory returns a new, zero-valued job of one registered type.
type Factory func() Job

// Named may be implemented by jobs that want to pick their own type name
// instead of the one they were registered under.
type Named interface {
	JobName() string
}

// Registry maps job type names to factories, so that codecs can turn a
// stored payload back into the right Go type.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	names     map[reflect.Type]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		names:     make(map[reflect.Type]string),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry used by Register and the default codec.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a job type to the default registry.
func Register(name string, factory Factory) {
	defaultRegistry.Register(name, factory)
}

// Register adds a job type under name (for PHP interop, usually the PHP class name).
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	r.names[reflect.TypeOf(factory())] = name
}

// New returns a fresh job of the named type.
func (r *Registry) New(name string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if factory, ok := r.factories[name]; ok {
		return factory(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, name)
}

// NameOf returns the type name a job is stored under.
func (r *Registry) NameOf(j Job) (string, error) {
	if n, ok := j.(Named); ok {
		return n.JobName(), nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.names[reflect.TypeOf(j)]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: %T was never registered", ErrUnknownJobType, j)
}
