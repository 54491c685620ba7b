package mediator

import "github.com/goburrow/tlsmediator/mediator/engine"

// ShutdownDriver produces the close_notify alert that ends a TLS
// session. Unlike the other three drivers it has a single mandatory
// step (emit the alert) and an idempotence guarantee: calling it again
// after it has already run is a safe no-op that replays the first
// call's outcome (spec.md §4.5).
type ShutdownDriver struct {
	facade *engine.Facade
	out    []byte
	err    error
	done   bool
}

// NewShutdownDriver creates a ShutdownDriver over an already-established
// engine facade.
func NewShutdownDriver(facade *engine.Facade) *ShutdownDriver {
	return &ShutdownDriver{facade: facade}
}

// Step produces the close_notify output on first call; every later
// call returns the latched result without touching the engine again.
func (s *ShutdownDriver) Step() error {
	if s.done {
		return s.err
	}
	s.done = true
	out, err := s.facade.ShutdownStep()
	s.out = out
	if err != nil {
		s.err = newError(KindTransport, err, "failed to produce close_notify")
	}
	return s.err
}

// OutBuffer exposes the close_notify bytes pending a transport write.
func (s *ShutdownDriver) OutBuffer() []byte {
	return s.out
}

// SizeWritten commits a transport write of the shutdown output.
func (s *ShutdownDriver) SizeWritten(n int) {
	if n != len(s.out) {
		s.err = newError(KindExhaustion, nil, "partial write of close_notify (%d of %d bytes)", n, len(s.out))
	}
	s.out = nil
}

// LastError returns the driver's latched error, if any.
func (s *ShutdownDriver) LastError() error {
	return s.err
}
