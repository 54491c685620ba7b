package mediator

import "github.com/goburrow/tlsmediator/mediator/engine"

// EncryptDriver turns application plaintext into ciphertext records. It
// never needs more data from the peer, so it has no data_needed state:
// every step with non-empty plaintext either produces ciphertext or
// fails outright.
type EncryptDriver struct {
	facade *engine.Facade
	out    []byte
	err    error
}

// NewEncryptDriver creates an EncryptDriver over an already-established
// engine facade (i.e. after the handshake driver has reached Done).
func NewEncryptDriver(facade *engine.Facade) *EncryptDriver {
	return &EncryptDriver{facade: facade}
}

// Step consumes up to engine.MaxRecordPlaintext bytes of plaintext and
// produces their ciphertext, which crypto/tls may frame as more than
// one record. Empty plaintext consumes nothing and produces no output.
// The caller must ship
// OutBuffer in full before calling Step again.
func (e *EncryptDriver) Step(plaintext []byte) (consumed int, err error) {
	if e.err != nil {
		return 0, e.err
	}
	if len(plaintext) == 0 {
		return 0, nil
	}
	n, out, werr := e.facade.EncryptStep(plaintext)
	if werr != nil {
		e.err = newError(KindTransport, werr, "encrypt failed")
		return 0, e.err
	}
	e.out = out
	return n, nil
}

// OutBuffer exposes the ciphertext produced by the most recent Step,
// pending a full transport write.
func (e *EncryptDriver) OutBuffer() []byte {
	return e.out
}

// SizeWritten commits a transport write of the encrypted output. n must
// equal len(OutBuffer()); partial writes between steps are a protocol
// violation (spec.md §3).
func (e *EncryptDriver) SizeWritten(n int) {
	if n != len(e.out) {
		e.err = newError(KindExhaustion, nil, "partial write of ciphertext (%d of %d bytes)", n, len(e.out))
	}
	e.out = nil
}

// LastError returns the driver's latched error, if any.
func (e *EncryptDriver) LastError() error {
	return e.err
}
