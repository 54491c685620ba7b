package mediator

import (
	"crypto/tls"
	"crypto/x509"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goburrow/tlsmediator/mediator/engine"
)

func TestHandshakeDriverSetServerHostnameRejectedAfterStart(t *testing.T) {
	ctx, _ := clientServerContexts(t, "host.test")
	h := NewHandshakeDriver(ctx)

	require.NoError(t, h.SetServerHostname("before.test"))
	h.Start(RoleClient)
	require.ErrorIs(t, h.SetServerHostname("after.test"), ErrHostnameAfterHandshake)
}

func TestHandshakeDriverStartIsIdempotent(t *testing.T) {
	ctx, _ := clientServerContexts(t, "host.test")
	h := NewHandshakeDriver(ctx)
	h.Start(RoleClient)
	facade := h.Facade()
	h.Start(RoleServer) // no-op: role and facade must not change
	require.Same(t, facade, h.Facade())
}

func TestHandshakeDriverStepIsIdempotentAfterDone(t *testing.T) {
	client, server := tcpLoopback(t)
	clientCtx, serverCtx := clientServerContexts(t, "host.test")

	clientHS := NewHandshakeDriver(clientCtx)
	serverHS := NewHandshakeDriver(serverCtx)

	var wg sync.WaitGroup
	var clientErr, serverErr error
	wg.Add(2)
	go func() { defer wg.Done(); clientErr = BlockingHandshake(client, clientHS, RoleClient) }()
	go func() { defer wg.Done(); serverErr = BlockingHandshake(server, serverHS, RoleServer) }()
	wg.Wait()
	require.NoError(t, clientErr)
	require.NoError(t, serverErr)

	require.Equal(t, engine.Done, clientHS.Step())
	require.Equal(t, engine.Done, clientHS.Step())
	clientHS.Release()
	serverHS.Release()
}

// TestHandshakeDriverSurfacesHostnameValidationFailure is spec.md §8
// scenario 5: a client that trusts the server's CA but requests
// validation against the wrong hostname must fail the handshake with a
// certificate-validation error on both ends.
func TestHandshakeDriverSurfacesHostnameValidationFailure(t *testing.T) {
	client, server := tcpLoopback(t)

	cert := selfSignedCertPair(t, "correct.test")
	serverCtx := NewContext(&tls.Config{Certificates: []tls.Certificate{cert}})

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	clientCtx := NewContext(&tls.Config{RootCAs: pool})

	clientHS := NewHandshakeDriver(clientCtx)
	require.NoError(t, clientHS.SetServerHostname("wrong.test"))
	serverHS := NewHandshakeDriver(serverCtx)

	var wg sync.WaitGroup
	var clientErr, serverErr error
	wg.Add(2)
	go func() { defer wg.Done(); clientErr = BlockingHandshake(client, clientHS, RoleClient) }()
	go func() { defer wg.Done(); serverErr = BlockingHandshake(server, serverHS, RoleServer) }()
	wg.Wait()

	require.Error(t, clientErr)
	require.Error(t, serverErr)
}
