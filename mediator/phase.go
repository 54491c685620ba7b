package mediator

import "sync"

// Phase is the lifecycle state of a Stream.
type Phase uint8

// Supported phases.
const (
	PhaseFresh Phase = iota
	PhaseHandshaking
	PhaseOpen
	PhaseClosing
	PhaseClosed
	PhaseFaulted
)

var phaseNames = [...]string{
	PhaseFresh:       "fresh",
	PhaseHandshaking: "handshaking",
	PhaseOpen:        "open",
	PhaseClosing:     "closing",
	PhaseClosed:      "closed",
	PhaseFaulted:     "faulted",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// PhaseState guards a Stream's phase variable. Transitions are driven
// solely by a driver reaching done or error; once Faulted or Closed the
// latched error is returned for every further operation. Exported so
// the root Stream facade can share the same bookkeeping the drivers
// rely on internally.
type PhaseState struct {
	mu    sync.Mutex
	phase Phase
	err   error
}

// NewPhaseState creates a PhaseState starting in PhaseFresh.
func NewPhaseState() *PhaseState {
	return &PhaseState{}
}

// Get returns the current phase.
func (s *PhaseState) Get() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CheckOp validates that the caller's operation is legal in the current
// phase, returning the latched error for Faulted/Closed streams.
func (s *PhaseState) CheckOp(allowed ...Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseFaulted {
		if s.err != nil {
			return s.err
		}
		return ErrFaulted
	}
	if s.phase == PhaseClosed {
		return ErrClosed
	}
	for _, p := range allowed {
		if s.phase == p {
			return nil
		}
	}
	return newError(KindMisuse, nil, "operation not permitted in phase %s", s.phase)
}

// Advance moves the phase forward. Phase never moves backwards except
// into Faulted, which is reachable from any non-Closed phase.
func (s *PhaseState) Advance(to Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed || s.phase == PhaseFaulted || to < s.phase {
		return
	}
	s.phase = to
}

// Fault latches err and moves the phase to Faulted, unless the stream is
// already Closed (destruction is the only legal operation past Closed).
func (s *PhaseState) Fault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return
	}
	s.phase = PhaseFaulted
	if s.err == nil {
		s.err = err
	}
}
