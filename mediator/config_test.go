package mediator

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewContextClonesConfig(t *testing.T) {
	cfg := &tls.Config{ServerName: "original.test"}
	ctx := NewContext(cfg)

	cfg.ServerName = "mutated.test"
	require.Equal(t, "original.test", ctx.tlsConfig().ServerName)
}

func TestNewContextDefaultsValidationFromInsecureSkipVerify(t *testing.T) {
	require.Equal(t, ValidatePeerRequired, NewContext(&tls.Config{}).ValidationMode())
	require.Equal(t, ValidateNone, NewContext(&tls.Config{InsecureSkipVerify: true}).ValidationMode())
}

func TestSetMethodPinsVersionBounds(t *testing.T) {
	ctx := NewContext(&tls.Config{})

	ctx.SetMethod(MethodTLS12Only)
	require.Equal(t, uint16(tls.VersionTLS12), ctx.tlsConfig().MinVersion)
	require.Equal(t, uint16(tls.VersionTLS12), ctx.tlsConfig().MaxVersion)
	require.Equal(t, MethodTLS12Only, ctx.Method())

	ctx.SetMethod(MethodTLS13Only)
	require.Equal(t, uint16(tls.VersionTLS13), ctx.tlsConfig().MinVersion)
	require.Equal(t, uint16(tls.VersionTLS13), ctx.tlsConfig().MaxVersion)

	ctx.SetMethod(MethodSystemDefault)
	require.Zero(t, ctx.tlsConfig().MinVersion)
	require.Zero(t, ctx.tlsConfig().MaxVersion)
}

func TestSetValidationModeTogglesClientAuthAndSkipVerify(t *testing.T) {
	ctx := NewContext(&tls.Config{})

	ctx.SetValidationMode(ValidateNone)
	require.True(t, ctx.tlsConfig().InsecureSkipVerify)
	require.Equal(t, tls.NoClientCert, ctx.tlsConfig().ClientAuth)

	ctx.SetValidationMode(ValidatePeerRequired)
	require.False(t, ctx.tlsConfig().InsecureSkipVerify)
	require.Equal(t, tls.RequireAndVerifyClientCert, ctx.tlsConfig().ClientAuth)

	ctx.SetValidationMode(ValidatePeerOptional)
	require.Equal(t, tls.VerifyClientCertIfGiven, ctx.tlsConfig().ClientAuth)
}
