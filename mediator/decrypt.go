package mediator

import (
	"errors"
	"io"

	"github.com/goburrow/tlsmediator/mediator/engine"
)

// DecryptDriver turns ciphertext records into application plaintext. A
// single transport read can contain more than one record's worth of
// ciphertext, or less; the driver stages decrypted plaintext so callers
// asking for less than a full record's output are served from the
// staging buffer without touching the engine or the transport again
// (spec.md §4.4).
type DecryptDriver struct {
	facade *engine.Facade
	in     *ioBuffer

	plainBuf  []byte
	decrypted []byte

	peerClosed bool
	closeErr   error
	err        error
}

// NewDecryptDriver creates a DecryptDriver over an already-established
// engine facade (i.e. after the handshake driver has reached Done).
func NewDecryptDriver(facade *engine.Facade) *DecryptDriver {
	return &DecryptDriver{
		facade:   facade,
		in:       newIOBuffer(),
		plainBuf: make([]byte, scratchSize),
	}
}

// HasDecrypted reports whether staged plaintext is available without
// running the engine.
func (d *DecryptDriver) HasDecrypted() bool {
	return len(d.decrypted) > 0
}

// DrainDecrypted copies as much staged plaintext into p as fits and
// returns the number of bytes copied.
func (d *DecryptDriver) DrainDecrypted(p []byte) int {
	n := copy(p, d.decrypted)
	d.decrypted = d.decrypted[n:]
	return n
}

// PeerClosed reports whether the most recent Step observed a clean
// close_notify from the peer (spec.md §4.4, §7 close_notify handling).
func (d *DecryptDriver) PeerClosed() bool {
	return d.peerClosed
}

// CloseError returns the closure-kind Error latched when PeerClosed is
// true, so callers can classify it with IsCloseNotify. It is not a
// fatal error and is never returned from Step/LastError.
func (d *DecryptDriver) CloseError() error {
	return d.closeErr
}

// Step attempts one engine decrypt using whatever ciphertext has
// already been fed via SizeRead. On Done, newly staged plaintext is
// available through DrainDecrypted; a clean close_notify also reports
// Done, with nothing staged and PeerClosed true.
func (d *DecryptDriver) Step() engine.Status {
	if d.err != nil {
		return engine.StepError
	}

	status, n, err := d.facade.DecryptStep(d.plainBuf)
	switch status {
	case engine.DataNeeded:
		return engine.DataNeeded
	case engine.Done:
		if err != nil && errors.Is(err, io.EOF) {
			d.peerClosed = true
			d.closeErr = newError(KindClosure, nil, "peer close_notify received")
			return engine.Done
		}
		d.decrypted = d.plainBuf[:n]
		return engine.Done
	default: // engine.StepError
		if errors.Is(err, io.ErrUnexpectedEOF) {
			d.err = newError(KindTransport, err, "transport closed mid-record")
		} else {
			d.err = newError(KindProtocol, err, "decrypt failed")
		}
		return engine.StepError
	}
}

// InBuffer exposes the writable tail of the input scratch buffer for
// the orchestrator's next transport read.
func (d *DecryptDriver) InBuffer() []byte {
	return d.in.tail()
}

// SizeRead commits n bytes read by the orchestrator and hands them to
// the engine facade.
func (d *DecryptDriver) SizeRead(n int) {
	d.in.commit(n)
	d.facade.FeedCiphertext(d.in.bytes())
	d.in.reset()
}

// LastError returns the driver's latched error, if any.
func (d *DecryptDriver) LastError() error {
	return d.err
}
