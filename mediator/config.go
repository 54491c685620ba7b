// Package mediator implements a byte-stream TLS mediator: a handshake,
// encrypt, decrypt and shutdown driver pair that turn crypto/tls into
// a restartable step machine any transport or executor can drive.
package mediator

import "crypto/tls"

// Method is the coarse protocol-version selector spec.md's context
// configuration calls for. It maps onto crypto/tls's MinVersion /
// MaxVersion pair rather than a provider-specific method table.
type Method uint8

// Supported methods.
const (
	// MethodSystemDefault leaves version selection to crypto/tls.
	MethodSystemDefault Method = iota
	// MethodTLS12Only pins both bounds to TLS 1.2.
	MethodTLS12Only
	// MethodTLS13Only pins both bounds to TLS 1.3.
	MethodTLS13Only
)

// ValidationMode controls how aggressively a Context verifies the
// peer's certificate chain, matching spec.md §6.3's three-way
// {none, peer_required, peer_optional} configuration.
type ValidationMode uint8

// Supported validation modes.
const (
	// ValidateNone disables peer certificate validation entirely. Only
	// appropriate for tests or a transport with its own authentication.
	ValidateNone ValidationMode = iota
	// ValidatePeerRequired performs standard chain/hostname validation
	// and additionally rejects a handshake in which the peer presented
	// no certificate at all.
	ValidatePeerRequired
	// ValidatePeerOptional performs standard chain/hostname validation
	// when the peer presents a certificate, but tolerates none being
	// presented.
	ValidatePeerOptional
)

// Context is the mediator's equivalent of an SSL context: a reusable,
// read-mostly bundle of credentials and verification policy shared by
// every Stream built from it. It wraps a *tls.Config rather than
// reimplementing certificate parsing or chain validation, both out of
// scope for the mediator itself.
type Context struct {
	tls    *tls.Config
	mode   ValidationMode
	method Method
}

// NewContext creates a Context around cfg. cfg is cloned, so later
// mutation by the caller has no effect on streams already built from
// this Context.
func NewContext(cfg *tls.Config) *Context {
	c := &Context{tls: cfg.Clone(), mode: ValidatePeerRequired}
	if c.tls.InsecureSkipVerify {
		c.mode = ValidateNone
	}
	return c
}

// SetMethod restricts the negotiated protocol version. Must be called
// before any Stream references this Context; spec.md §5 treats a
// Context as read-only once in use.
func (c *Context) SetMethod(m Method) {
	c.method = m
	switch m {
	case MethodTLS12Only:
		c.tls.MinVersion, c.tls.MaxVersion = tls.VersionTLS12, tls.VersionTLS12
	case MethodTLS13Only:
		c.tls.MinVersion, c.tls.MaxVersion = tls.VersionTLS13, tls.VersionTLS13
	default:
		c.tls.MinVersion, c.tls.MaxVersion = 0, 0
	}
}

// Method reports the Context's current protocol-version selector.
func (c *Context) Method() Method {
	return c.method
}

// SetValidationMode overrides how peer certificates are checked. It
// covers both roles a Context might drive: as a client it toggles
// InsecureSkipVerify, as a server it selects the corresponding
// tls.ClientAuthType. Callers needing custom chain validation should
// instead set cfg.VerifyPeerCertificate before calling NewContext.
func (c *Context) SetValidationMode(mode ValidationMode) {
	c.mode = mode
	c.tls.InsecureSkipVerify = mode == ValidateNone
	switch mode {
	case ValidatePeerRequired:
		c.tls.ClientAuth = tls.RequireAndVerifyClientCert
	case ValidatePeerOptional:
		c.tls.ClientAuth = tls.VerifyClientCertIfGiven
	default:
		c.tls.ClientAuth = tls.NoClientCert
	}
}

// ValidationMode reports the Context's current validation policy.
func (c *Context) ValidationMode() ValidationMode {
	return c.mode
}

// tlsConfig returns the Config clone this Context drives every Stream
// from. Handshake drivers may further override fields such as
// ServerName per-stream.
func (c *Context) tlsConfig() *tls.Config {
	return c.tls
}
