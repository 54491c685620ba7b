package engine

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
)

// Status is the four-way result of a single engine step, shared by all
// four drivers.
type Status uint8

// Supported statuses.
const (
	DataNeeded Status = iota
	DataAvailable
	Done
	StepError
)

// MaxRecordPlaintext is the largest plaintext chunk Encrypt will
// consume in one step, matching TLS's own per-record limit.
const MaxRecordPlaintext = 16384

// Facade is a thin adapter presenting handshake_step / encrypt_step /
// decrypt_step / shutdown_step over a real *tls.Conn driven against an
// in-process pipe (see pipe.go). The underlying engine never sees the
// real transport; the mediator feeds it ciphertext read from the
// transport and drains ciphertext to write back to it.
type Facade struct {
	conn     *tls.Conn
	mediator *mediatorSide
	isClient bool

	mu            sync.Mutex
	handshakeOnce sync.Once
	handshakeDone chan struct{}
	handshakeErr  error
	// engineBlocked is sticky once the handshake goroutine has parked in
	// pipe.engineRead waiting for more ciphertext than is buffered. The
	// blockedSignal channel only ever carries one token per park (it is
	// consumed by whichever HandshakeStep call observes it), so once a
	// step has drained a flight and reported it as DataAvailable, later
	// steps must keep reporting DataNeeded from this flag alone until
	// FeedCiphertext wakes the goroutine back up — otherwise a step that
	// arrives after the token was already consumed waits forever for a
	// second token that will never come.
	engineBlocked bool

	decPending bool
	decBuf     []byte
	decResult  chan readResult
}

type readResult struct {
	n   int
	err error
}

// NewClient creates a facade driving a TLS client handshake. serverName,
// if non-empty, overrides cfg.ServerName (set_server_hostname).
func NewClient(cfg *tls.Config, serverName string) *Facade {
	ec, ms := newPipePair()
	c := cfg.Clone()
	if serverName != "" {
		c.ServerName = serverName
	}
	return &Facade{
		conn:          tls.Client(ec, c),
		mediator:      ms,
		isClient:      true,
		handshakeDone: make(chan struct{}),
		decResult:     make(chan readResult, 1),
	}
}

// NewServer creates a facade driving a TLS server handshake.
func NewServer(cfg *tls.Config) *Facade {
	ec, ms := newPipePair()
	return &Facade{
		conn:          tls.Server(ec, cfg),
		mediator:      ms,
		isClient:      false,
		handshakeDone: make(chan struct{}),
		decResult:     make(chan readResult, 1),
	}
}

// FeedCiphertext commits n bytes of ciphertext the orchestrator just
// read from the transport, for the engine to consume on its next step.
// Feeding always wakes a goroutine parked on input, so it clears the
// sticky engineBlocked state HandshakeStep relies on.
func (f *Facade) FeedCiphertext(b []byte) {
	f.mu.Lock()
	f.engineBlocked = false
	f.mu.Unlock()
	f.mediator.feed(b)
}

// Close releases the facade's half of the in-process pipe. It does not
// touch the real transport.
func (f *Facade) Close() {
	f.mediator.close()
}

// ConnectionState exposes the negotiated parameters once the handshake
// driver has reached Done.
func (f *Facade) ConnectionState() tls.ConnectionState {
	return f.conn.ConnectionState()
}

// HandshakeStep drives one step of the TLS handshake. On the very first
// call it starts the handshake on a background goroutine; subsequent
// calls observe its progress without ever blocking the caller beyond
// the time it takes the goroutine to either produce output or start
// waiting for more input.
func (f *Facade) HandshakeStep() (Status, []byte) {
	f.handshakeOnce.Do(func() {
		go func() {
			f.handshakeErr = f.conn.Handshake()
			close(f.handshakeDone)
		}()
	})

	if out := f.mediator.drain(); len(out) > 0 {
		return DataAvailable, out
	}

	f.mu.Lock()
	blocked := f.engineBlocked
	f.mu.Unlock()
	if blocked {
		// Already know the engine goroutine is parked in engineRead; no
		// fresh token will arrive on blockedSignal until FeedCiphertext
		// wakes it, so asking the select below to wait for one would
		// hang forever. Report data_needed straight from the sticky
		// flag instead.
		return DataNeeded, nil
	}

	select {
	case <-f.handshakeDone:
		if out := f.mediator.drain(); len(out) > 0 {
			// Engine produced trailing output (e.g. session tickets)
			// in the same step it completed; surface it first, the
			// driver will re-step and observe Done on the next call.
			return DataAvailable, out
		}
		if f.handshakeErr != nil {
			return StepError, nil
		}
		return Done, nil
	case <-f.mediator.blockedSignal():
		// The engine goroutine writes a flight in full before blocking
		// on the next read (crypto/tls.Conn.Handshake is sequential
		// within a goroutine), so by the time blocked is observed any
		// output from that flight is already sitting in the pipe.
		// Drain once more before conceding data_needed, or the first
		// ClientHello (written just before the goroutine's first
		// blocking read) can race this select and be missed for a
		// step.
		if out := f.mediator.drain(); len(out) > 0 {
			// The token we just consumed is the only signal that the
			// engine is parked waiting for input; latch it so the next
			// step (after this flight is written to the transport)
			// reports data_needed without waiting for a second token
			// that will never come.
			f.mu.Lock()
			f.engineBlocked = true
			f.mu.Unlock()
			return DataAvailable, out
		}
		return DataNeeded, nil
	}
}

// HandshakeError returns the latched handshake error, valid once
// HandshakeStep has returned Done or StepError.
func (f *Facade) HandshakeError() error {
	return f.handshakeErr
}

// EncryptStep consumes at most MaxRecordPlaintext bytes of plaintext and
// returns the ciphertext crypto/tls produced for them, which it may
// frame as more than one record. It never blocks: encryption
// needs no round trip with the peer.
func (f *Facade) EncryptStep(plaintext []byte) (consumed int, ciphertext []byte, err error) {
	if len(plaintext) > MaxRecordPlaintext {
		plaintext = plaintext[:MaxRecordPlaintext]
	}
	n, err := f.conn.Write(plaintext)
	out := f.mediator.drain()
	if err != nil {
		return n, out, err
	}
	return n, out, nil
}

// DecryptStep drives one step of record decryption using whatever
// ciphertext has been fed so far. buf is the caller-owned scratch
// buffer the driver wants the plaintext copied into.
func (f *Facade) DecryptStep(buf []byte) (Status, int, error) {
	f.mu.Lock()
	if !f.decPending {
		f.decBuf = buf
		f.decPending = true
		go func(b []byte) {
			n, err := f.conn.Read(b)
			f.decResult <- readResult{n: n, err: err}
		}(buf)
	}
	f.mu.Unlock()

	select {
	case res := <-f.decResult:
		f.mu.Lock()
		f.decPending = false
		f.mu.Unlock()
		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				return Done, 0, io.EOF
			}
			if errors.Is(res.err, io.ErrUnexpectedEOF) || errors.Is(res.err, net.ErrClosed) {
				return StepError, 0, io.ErrUnexpectedEOF
			}
			return StepError, 0, res.err
		}
		return Done, res.n, nil
	case <-f.mediator.blockedSignal():
		return DataNeeded, 0, nil
	}
}

// ShutdownStep produces (and, via the pipe, "sends") a close_notify
// alert. It is safe to call more than once: the second call observes
// the same closed engine and returns an empty, error-free output.
func (f *Facade) ShutdownStep() ([]byte, error) {
	err := f.conn.Close()
	if err == net.ErrClosed {
		// crypto/tls reports a repeated Close with the bare net.ErrClosed;
		// the close_notify was already produced by the first call.
		return nil, nil
	}
	out := f.mediator.drain()
	if err != nil && len(out) == 0 {
		return nil, err
	}
	return out, nil
}
