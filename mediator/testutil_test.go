package mediator

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// selfSignedCertPair mirrors DerAndereAndi-mash's test certificate
// helper: a fresh ECDSA leaf, self-signed, valid for commonName.
func selfSignedCertPair(t *testing.T, commonName string) tls.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	require.NoError(t, err)
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{commonName},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
}

// tcpLoopback returns two ends of a real TCP loopback connection, the
// way the blocking/async orchestrators are actually used in
// production: real partial reads/writes and real deadlines, unlike
// net.Pipe's fully synchronous rendezvous semantics.
func tcpLoopback(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	acceptedCh := make(chan net.Conn, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			acceptErrCh <- err
			return
		}
		acceptedCh <- c
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-acceptedCh:
	case err := <-acceptErrCh:
		t.Fatalf("accept failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("accept timed out")
	}
	t.Cleanup(func() { server.Close() })
	return client, server
}

// chunkedConn wraps a net.Conn, capping every Read at max bytes, used
// to simulate a transport that delivers TLS records fragmented across
// many small reads (spec.md §8 "fragmented handshake").
type chunkedConn struct {
	net.Conn
	max int
}

func (c *chunkedConn) Read(p []byte) (int, error) {
	if len(p) > c.max {
		p = p[:c.max]
	}
	return c.Conn.Read(p)
}

// clientServerContexts builds a client Context (InsecureSkipVerify) and
// a server Context (self-signed cert for commonName) ready to
// handshake against each other.
func clientServerContexts(t *testing.T, commonName string) (client, server *Context) {
	t.Helper()
	server = NewContext(&tls.Config{Certificates: []tls.Certificate{selfSignedCertPair(t, commonName)}})
	client = NewContext(&tls.Config{InsecureSkipVerify: true})
	return client, server
}

// completedHandshake wires a client and server HandshakeDriver over a
// real TCP loopback pair and drives both to Done, the fixture every
// encrypt/decrypt/shutdown driver test starts from.
func completedHandshake(t *testing.T, commonName string) (clientConn, serverConn net.Conn, clientHS, serverHS *HandshakeDriver) {
	t.Helper()
	clientConn, serverConn = tcpLoopback(t)
	clientCtx, serverCtx := clientServerContexts(t, commonName)
	clientHS = NewHandshakeDriver(clientCtx)
	serverHS = NewHandshakeDriver(serverCtx)

	var wg sync.WaitGroup
	var clientErr, serverErr error
	wg.Add(2)
	go func() { defer wg.Done(); clientErr = BlockingHandshake(clientConn, clientHS, RoleClient) }()
	go func() { defer wg.Done(); serverErr = BlockingHandshake(serverConn, serverHS, RoleServer) }()
	wg.Wait()
	require.NoError(t, clientErr)
	require.NoError(t, serverErr)
	return clientConn, serverConn, clientHS, serverHS
}
