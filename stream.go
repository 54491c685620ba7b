// Package tlsmediator wraps a byte-stream transport in TLS, presenting
// an equivalent byte-stream whose bytes are transparently encrypted
// and authenticated. It composes the mediator package's four operation
// drivers (handshake, encrypt, decrypt, shutdown) the way
// boost::wintls::stream composes its sspi_handshake/encrypt/decrypt/
// shutdown members over a NextLayer.
package tlsmediator

import (
	"io"
	"net"

	"github.com/goburrow/tlsmediator/log"
	"github.com/goburrow/tlsmediator/mediator"
)

// Stream is the caller-visible TLS stream: a transport, a Context and
// one instance of each operation driver, dispatching callers to the
// blocking or async orchestrator in mediator/ (spec.md §2 "Stream
// facade").
type Stream struct {
	conn net.Conn
	ctx  *mediator.Context
	log  log.Logger

	phase *mediator.PhaseState

	handshakeDriver *mediator.HandshakeDriver
	encryptDriver   *mediator.EncryptDriver
	decryptDriver   *mediator.DecryptDriver
	shutdownDriver  *mediator.ShutdownDriver
}

// NewStream creates a Stream wrapping conn, using ctx for handshake
// configuration. ctx may be shared by any number of Streams (spec.md
// §5); conn is taken over exclusively by this Stream.
func NewStream(conn net.Conn, ctx *mediator.Context) *Stream {
	return &Stream{
		conn:            conn,
		ctx:             ctx,
		log:             log.Nop,
		phase:           mediator.NewPhaseState(),
		handshakeDriver: mediator.NewHandshakeDriver(ctx),
	}
}

// SetLogger installs l for diagnostic logging of handshake and shutdown
// progress, peer close_notify and failed operations. Must be called
// before Handshake.
func (s *Stream) SetLogger(l log.Logger) {
	if l == nil {
		l = log.Nop
	}
	s.log = l
}

// NextLayer returns the wrapped transport. Reading or writing it
// directly after Handshake has started bypasses TLS entirely and will
// corrupt the record stream; spec.md §6.3 limits this to inspection
// (deadlines, local/remote addresses) once the stream is in use.
func (s *Stream) NextLayer() net.Conn {
	return s.conn
}

// Phase reports the stream's current lifecycle state.
func (s *Stream) Phase() mediator.Phase {
	return s.phase.Get()
}

// SetServerHostname sets the SNI hostname a client handshake will
// advertise and validate against. Legal only before Handshake starts
// (spec.md §6.3); mediator.ErrHostnameAfterHandshake otherwise.
func (s *Stream) SetServerHostname(name string) error {
	return s.handshakeDriver.SetServerHostname(name)
}

// Handshake performs a blocking TLS handshake as role. On success the
// phase advances to PhaseOpen and Read/Write become legal.
func (s *Stream) Handshake(role mediator.Role) error {
	if err := s.phase.CheckOp(mediator.PhaseFresh); err != nil {
		return err
	}
	s.phase.Advance(mediator.PhaseHandshaking)
	s.log.Log(log.LevelDebug, "handshake starting role=%s", role)

	if err := mediator.BlockingHandshake(s.conn, s.handshakeDriver, role); err != nil {
		s.log.Log(log.LevelError, "handshake failed: %v", err)
		s.phase.Fault(err)
		return err
	}

	facade := s.handshakeDriver.Facade()
	s.encryptDriver = mediator.NewEncryptDriver(facade)
	s.decryptDriver = mediator.NewDecryptDriver(facade)
	s.shutdownDriver = mediator.NewShutdownDriver(facade)
	s.phase.Advance(mediator.PhaseOpen)
	s.log.Log(log.LevelDebug, "handshake complete")
	return nil
}

// Read implements io.Reader, mapping onto spec.md's read_some: it
// returns plaintext already decrypted by the peer, blocking on the
// transport only as needed to decode one more record. A zero-capacity
// p performs no transport I/O and returns (0, nil) per spec.md §4.4.
//
// A clean peer close_notify is reported as (0, err) with
// errors.Is(err, io.EOF) true, and moves the phase to PhaseClosing,
// following net.Conn's EOF convention rather than a distinct status
// code (see DESIGN.md's Open Question resolution). err is not io.EOF
// itself, so a comparison with == does not match it.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.phase.CheckOp(mediator.PhaseOpen, mediator.PhaseClosing); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, peerClosed, err := mediator.BlockingDecrypt(s.conn, s.decryptDriver, p)
	if err != nil {
		s.log.Log(log.LevelError, "read failed: %v", err)
		s.phase.Fault(err)
		return 0, err
	}
	if peerClosed {
		s.phase.Advance(mediator.PhaseClosing)
		s.log.Log(log.LevelDebug, "peer close_notify received")
		return 0, errCloseNotifyEOF{cause: s.decryptDriver.CloseError()}
	}
	return n, nil
}

// Write implements io.Writer, mapping onto spec.md's write_some: one
// call may consume less than len(p) when it exceeds a single TLS
// record's size limit; the caller must loop with the remainder
// (spec.md §4.3, §8 "large write").
func (s *Stream) Write(p []byte) (int, error) {
	if err := s.phase.CheckOp(mediator.PhaseOpen); err != nil {
		if s.phase.Get() == mediator.PhaseClosing {
			return 0, mediator.ErrWriteDuringClosing
		}
		return 0, err
	}
	n, err := mediator.BlockingEncrypt(s.conn, s.encryptDriver, p)
	if err != nil {
		s.log.Log(log.LevelError, "write failed: %v", err)
		s.phase.Fault(err)
		return 0, err
	}
	return n, nil
}

// Shutdown emits a close_notify alert and flushes it to the transport.
// Idempotent: a second call replays the first call's outcome without
// touching the engine again (spec.md §4.5, §8 "idempotence").
func (s *Stream) Shutdown() error {
	if s.phase.Get() == mediator.PhaseClosed {
		return mediator.BlockingShutdown(s.conn, s.shutdownDriver)
	}
	if err := s.phase.CheckOp(mediator.PhaseOpen, mediator.PhaseClosing); err != nil {
		return err
	}
	err := mediator.BlockingShutdown(s.conn, s.shutdownDriver)
	s.phase.Advance(mediator.PhaseClosed)
	s.handshakeDriver.Release()
	if err != nil {
		s.log.Log(log.LevelInfo, "shutdown write failed (peer may have already closed): %v", err)
		return err
	}
	s.log.Log(log.LevelDebug, "shutdown complete")
	return nil
}

// errCloseNotifyEOF is returned by Read on a clean peer close_notify.
// It satisfies errors.Is(err, io.EOF) so callers written against
// net.Conn's usual EOF convention need no mediator-specific check, and
// unwraps to the decrypt driver's closure-kind Error so
// mediator.IsCloseNotify still classifies it correctly.
type errCloseNotifyEOF struct{ cause error }

func (errCloseNotifyEOF) Error() string { return "tlsmediator: close_notify received" }

func (errCloseNotifyEOF) Is(target error) bool {
	return target == io.EOF
}

func (e errCloseNotifyEOF) Unwrap() error { return e.cause }
