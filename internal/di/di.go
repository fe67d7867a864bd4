// Package di provides a small service container with typed tokens.
// Modules register factories at wiring time; construction is lazy and
// memoized, so the registration order between modules does not matter.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get returns the service registered under name, constructing it on
	// first use. It panics if the name is unknown: a missing service is a
	// wiring bug, not a runtime condition.
	Get(name string) any
}

// Container is the write side of the container.
type Container interface {
	ServiceRegistry

	// Register stores an already-constructed service under name.
	Register(name string, service any)

	// RegisterFactory stores a lazily-invoked constructor under name.
	// Registering the same name twice panics.
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type entry struct {
	once    sync.Once
	value   any
	factory func(ServiceRegistry) any
}

type container struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{entries: make(map[string]*entry)}
}

func (c *container) Register(name string, service any) {
	c.RegisterFactory(name, func(ServiceRegistry) any { return service })
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[name]; exists {
		panic(fmt.Sprintf("di: service %q registered twice", name))
	}
	c.entries[name] = &entry{factory: factory}
}

func (c *container) Get(name string) any {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("di: unknown service %q", name))
	}
	e.once.Do(func() {
		e.value = e.factory(c)
		e.factory = nil
	})
	return e.value
}

// Token is a typed handle for a registered service.
type Token[T any] struct {
	name string
}

// NewToken creates a token with a unique name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// String returns the token name.
func (t Token[T]) String() string {
	return t.name
}

// RegisterToken registers a typed factory under the token's name.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves the token to its typed service.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	return sr.Get(token.name).(T)
}
