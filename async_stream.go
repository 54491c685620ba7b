package tlsmediator

import (
	"context"

	"github.com/goburrow/tlsmediator/log"
	"github.com/goburrow/tlsmediator/mediator"
)

// AsyncHandshake performs the TLS handshake without blocking the
// caller; cb is invoked exactly once, never inline from within this
// call (spec.md §4.7 "executor discipline" — here, by construction,
// since mediator.AsyncHandshake always runs on a dedicated goroutine).
func (s *Stream) AsyncHandshake(ctx context.Context, role mediator.Role, cb func(error)) {
	if err := s.phase.CheckOp(mediator.PhaseFresh); err != nil {
		go cb(err)
		return
	}
	s.phase.Advance(mediator.PhaseHandshaking)
	s.log.Log(log.LevelDebug, "async handshake starting role=%s", role)

	mediator.AsyncHandshake(ctx, s.conn, s.handshakeDriver, role, func(err error) {
		if err != nil {
			s.log.Log(log.LevelError, "async handshake failed: %v", err)
			s.phase.Fault(err)
			cb(err)
			return
		}
		facade := s.handshakeDriver.Facade()
		s.encryptDriver = mediator.NewEncryptDriver(facade)
		s.decryptDriver = mediator.NewDecryptDriver(facade)
		s.shutdownDriver = mediator.NewShutdownDriver(facade)
		s.phase.Advance(mediator.PhaseOpen)
		s.log.Log(log.LevelDebug, "async handshake complete")
		cb(nil)
	})
}

// AsyncRead reads into p without blocking the caller. cb receives the
// byte count and, on a clean peer close_notify, io.EOF-compatible error
// exactly as Read does (see errCloseNotifyEOF).
func (s *Stream) AsyncRead(ctx context.Context, p []byte, cb func(int, error)) {
	if err := s.phase.CheckOp(mediator.PhaseOpen, mediator.PhaseClosing); err != nil {
		go cb(0, err)
		return
	}
	if len(p) == 0 {
		go cb(0, nil)
		return
	}
	mediator.AsyncDecrypt(ctx, s.conn, s.decryptDriver, p, func(n int, peerClosed bool, err error) {
		if err != nil {
			s.log.Log(log.LevelError, "async read failed: %v", err)
			s.phase.Fault(err)
			cb(0, err)
			return
		}
		if peerClosed {
			s.phase.Advance(mediator.PhaseClosing)
			s.log.Log(log.LevelDebug, "peer close_notify received (async)")
			cb(0, errCloseNotifyEOF{cause: s.decryptDriver.CloseError()})
			return
		}
		cb(n, nil)
	})
}

// AsyncWrite writes p without blocking the caller; cb receives the
// plaintext byte count consumed, which may be less than len(p) for a
// write larger than one TLS record.
func (s *Stream) AsyncWrite(ctx context.Context, p []byte, cb func(int, error)) {
	if err := s.phase.CheckOp(mediator.PhaseOpen); err != nil {
		if s.phase.Get() == mediator.PhaseClosing {
			err = mediator.ErrWriteDuringClosing
		}
		go cb(0, err)
		return
	}
	mediator.AsyncEncrypt(ctx, s.conn, s.encryptDriver, p, func(n int, err error) {
		if err != nil {
			s.log.Log(log.LevelError, "async write failed: %v", err)
			s.phase.Fault(err)
		}
		cb(n, err)
	})
}

// AsyncShutdown emits a close_notify without blocking the caller.
// Idempotent: a second call replays the first call's outcome without
// touching the engine again (spec.md §4.5, §8 "idempotence").
func (s *Stream) AsyncShutdown(ctx context.Context, cb func(error)) {
	if s.phase.Get() == mediator.PhaseClosed {
		mediator.AsyncShutdown(ctx, s.conn, s.shutdownDriver, cb)
		return
	}
	if err := s.phase.CheckOp(mediator.PhaseOpen, mediator.PhaseClosing); err != nil {
		go cb(err)
		return
	}
	mediator.AsyncShutdown(ctx, s.conn, s.shutdownDriver, func(err error) {
		s.phase.Advance(mediator.PhaseClosed)
		s.handshakeDriver.Release()
		if err != nil {
			s.log.Log(log.LevelInfo, "async shutdown write failed: %v", err)
		} else {
			s.log.Log(log.LevelDebug, "async shutdown complete")
		}
		cb(err)
	})
}
