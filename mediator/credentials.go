package mediator

import (
	"sync"
	"sync/atomic"

	"github.com/goburrow/tlsmediator/mediator/engine"
)

var credentialIDGen atomic.Uint64

// credentials is the owned-handle wrapper around a single engine.Facade:
// the mediator equivalent of a credentials handle / security context
// pair that must be released exactly once, however many times Release
// is called and from however many goroutines.
type credentials struct {
	id       uint64
	facade   *engine.Facade
	released atomic.Bool
	once     sync.Once
}

func newCredentials(facade *engine.Facade) *credentials {
	return &credentials{
		id:     credentialIDGen.Add(1),
		facade: facade,
	}
}

// release tears down the underlying engine facade. Safe to call more
// than once and from more than one goroutine; only the first call has
// any effect.
func (c *credentials) release() {
	c.once.Do(func() {
		c.released.Store(true)
		c.facade.Close()
	})
}

// ID returns the handle's unique identifier, stable for its lifetime.
func (c *credentials) ID() uint64 {
	return c.id
}

// Released reports whether release has already run.
func (c *credentials) Released() bool {
	return c.released.Load()
}
