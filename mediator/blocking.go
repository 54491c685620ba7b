package mediator

import (
	"io"
	"net"

	"github.com/goburrow/tlsmediator/mediator/engine"
)

// writeAll ships b to conn in full. The step contract forbids partial
// writes between steps (spec.md §3), so every orchestrator uses this
// instead of a single conn.Write call.
func writeAll(conn net.Conn, b []byte) error {
	for len(b) > 0 {
		n, err := conn.Write(b)
		if err != nil {
			return newError(KindTransport, err, "transport write failed")
		}
		b = b[n:]
	}
	return nil
}

// BlockingHandshake drives d to completion using synchronous transport
// reads and writes, starting it for role on first entry.
func BlockingHandshake(conn net.Conn, d *HandshakeDriver, role Role) error {
	d.Start(role)
	for {
		switch d.Step() {
		case engine.DataAvailable:
			if err := writeAll(conn, d.OutBuffer()); err != nil {
				return err
			}
			d.SizeWritten(len(d.OutBuffer()))
			if err := d.LastError(); err != nil {
				return err
			}
		case engine.DataNeeded:
			n, err := conn.Read(d.InBuffer())
			if err != nil {
				if err == io.EOF {
					return newError(KindProtocol, ErrUnexpectedCloseDuringHandshake, "transport closed during handshake")
				}
				return newError(KindTransport, err, "transport read failed during handshake")
			}
			d.SizeRead(n)
		case engine.Done:
			return nil
		case engine.StepError:
			return d.LastError()
		}
	}
}

// BlockingEncrypt consumes up to one record's worth of plaintext and
// ships the resulting ciphertext in full before returning.
func BlockingEncrypt(conn net.Conn, d *EncryptDriver, plaintext []byte) (int, error) {
	n, err := d.Step(plaintext)
	if err != nil {
		return 0, err
	}
	if err := writeAll(conn, d.OutBuffer()); err != nil {
		return 0, err
	}
	d.SizeWritten(len(d.OutBuffer()))
	if err := d.LastError(); err != nil {
		return 0, err
	}
	return n, nil
}

// BlockingDecrypt fills p with plaintext, reading from the transport as
// needed, and reports whether the peer's close_notify was observed.
func BlockingDecrypt(conn net.Conn, d *DecryptDriver, p []byte) (n int, peerClosed bool, err error) {
	if d.HasDecrypted() {
		return d.DrainDecrypted(p), false, nil
	}
	for {
		switch d.Step() {
		case engine.DataNeeded:
			rn, rerr := conn.Read(d.InBuffer())
			if rerr != nil {
				if rerr == io.EOF {
					return 0, false, ErrTruncatedRecord
				}
				return 0, false, newError(KindTransport, rerr, "transport read failed")
			}
			d.SizeRead(rn)
		case engine.Done:
			if d.PeerClosed() {
				return 0, true, nil
			}
			return d.DrainDecrypted(p), false, nil
		case engine.StepError:
			return 0, false, d.LastError()
		}
	}
}

// BlockingShutdown produces the close_notify alert and ships it in
// full. A failure to write is reported but the caller still treats the
// stream as closed (spec.md §4.5).
func BlockingShutdown(conn net.Conn, d *ShutdownDriver) error {
	stepErr := d.Step()
	if out := d.OutBuffer(); len(out) > 0 {
		if err := writeAll(conn, out); err != nil {
			// Latch the failure so a repeated shutdown replays it
			// instead of writing the alert again.
			d.err, d.out = err, nil
			return err
		}
		d.SizeWritten(len(out))
	}
	return stepErr
}
