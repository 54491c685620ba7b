package mediator

import "github.com/goburrow/tlsmediator/mediator/engine"

// Role selects which side of the handshake a Stream performs.
type Role uint8

// Supported roles.
const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// HandshakeDriver is the restartable state machine that turns a TLS
// handshake into a sequence of transport reads and writes. It owns a
// single scratch buffer sized to the engine's largest expected record
// (spec.md §4.2).
type HandshakeDriver struct {
	ctx      *Context
	facade   *engine.Facade
	role     Role
	hostname string
	started  bool
	done     bool
	err      error
	cred     *credentials

	in  *ioBuffer
	out []byte
}

// NewHandshakeDriver creates a HandshakeDriver bound to ctx. Role and
// hostname are supplied later via Start/SetServerHostname.
func NewHandshakeDriver(ctx *Context) *HandshakeDriver {
	return &HandshakeDriver{ctx: ctx, in: newIOBuffer()}
}

// SetServerHostname records the SNI hostname to use when the handshake
// starts. Only legal before Start has been called.
func (h *HandshakeDriver) SetServerHostname(name string) error {
	if h.started {
		return ErrHostnameAfterHandshake
	}
	h.hostname = name
	return nil
}

// Start lazily creates the engine facade for role. Calling Start more
// than once is a no-op, so a driver can be re-entered safely.
func (h *HandshakeDriver) Start(role Role) {
	if h.started {
		return
	}
	h.started = true
	h.role = role
	if role == RoleClient {
		h.facade = engine.NewClient(h.ctx.tlsConfig(), h.hostname)
	} else {
		h.facade = engine.NewServer(h.ctx.tlsConfig())
	}
	h.cred = newCredentials(h.facade)
}

// Facade exposes the driver's engine facade once Start has run, so the
// Stream can hand it to the encrypt/decrypt/shutdown drivers once the
// handshake is Done.
func (h *HandshakeDriver) Facade() *engine.Facade {
	return h.facade
}

// Release tears down the credentials/security-context handle acquired
// by Start. Safe to call on a driver that never started, and more than
// once (spec.md §5 "released on stream destruction on every exit
// path").
func (h *HandshakeDriver) Release() {
	if h.cred != nil {
		h.cred.release()
	}
}

// Step advances the handshake by one state transition. It tolerates
// being re-entered after Done or after a latched error, returning the
// same terminal status idempotently (spec.md §4.2 "reentrancy").
func (h *HandshakeDriver) Step() engine.Status {
	if h.err != nil {
		return engine.StepError
	}
	if h.done {
		return engine.Done
	}

	status, out := h.facade.HandshakeStep()
	switch status {
	case engine.DataAvailable:
		h.out = out
		return engine.DataAvailable
	case engine.DataNeeded:
		return engine.DataNeeded
	case engine.Done:
		h.done = true
		if cerr := h.facade.HandshakeError(); cerr != nil {
			h.err = newError(KindProtocol, cerr, "tls handshake failed")
			return engine.StepError
		}
		if h.ctx.ValidationMode() == ValidatePeerRequired && h.role == RoleServer {
			if len(h.facade.ConnectionState().PeerCertificates) == 0 {
				h.err = newError(KindProtocol, ErrPeerCertificateRejected, "no client certificate presented")
				return engine.StepError
			}
		}
		return engine.Done
	default: // engine.StepError
		h.err = newError(KindProtocol, h.facade.HandshakeError(), "tls handshake failed")
		return engine.StepError
	}
}

// InBuffer exposes the writable tail of the input scratch buffer for
// the orchestrator's next transport read.
func (h *HandshakeDriver) InBuffer() []byte {
	return h.in.tail()
}

// SizeRead commits n bytes read by the orchestrator and hands them to
// the engine facade.
func (h *HandshakeDriver) SizeRead(n int) {
	h.in.commit(n)
	h.facade.FeedCiphertext(h.in.bytes())
	h.in.reset()
}

// OutBuffer exposes bytes the engine produced, pending a full transport
// write.
func (h *HandshakeDriver) OutBuffer() []byte {
	return h.out
}

// SizeWritten commits a transport write of the handshake output. n must
// equal len(OutBuffer()); partial writes between steps are a protocol
// violation (spec.md §3).
func (h *HandshakeDriver) SizeWritten(n int) {
	if n != len(h.out) {
		h.err = newError(KindExhaustion, nil, "partial write of handshake output (%d of %d bytes)", n, len(h.out))
	}
	h.out = nil
}

// LastError returns the driver's latched error, if any.
func (h *HandshakeDriver) LastError() error {
	return h.err
}
