package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"io"
	"log"
	"net"

	tlsmediator "github.com/goburrow/tlsmediator"
	"github.com/goburrow/tlsmediator/mediator"
)

type serverCommand struct{}

func (serverCommand) Name() string { return "server" }
func (serverCommand) Desc() string { return "accept TLS connections and echo what each sends" }

func (serverCommand) Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	addr := fs.String("listen", "127.0.0.1:8443", "address to listen on")
	certFile := fs.String("cert", "", "PEM certificate file (self-signed demo cert used if empty)")
	keyFile := fs.String("key", "", "PEM private key file")
	fs.Parse(args)

	var cert tls.Certificate
	var err error
	if *certFile != "" {
		cert, err = tls.LoadX509KeyPair(*certFile, *keyFile)
	} else {
		cert, err = selfSignedCert("tlsecho-demo-server")
	}
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	log.Printf("listening on %s", ln.Addr())

	ctx := mediator.NewContext(&tls.Config{Certificates: []tls.Certificate{cert}})
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go runSession(tlsmediator.NewStream(conn, ctx))
	}
}

// runSession mirrors echo_server.cpp's session class: handshake, then
// read/echo in a loop, chained through async callbacks rather than a
// blocking goroutine-per-step loop.
func runSession(s *tlsmediator.Stream) {
	bg := context.Background()
	s.AsyncHandshake(bg, mediator.RoleServer, func(err error) {
		if err != nil {
			log.Printf("handshake failed: %v", err)
			return
		}
		doRead(bg, s)
	})
}

func doRead(ctx context.Context, s *tlsmediator.Stream) {
	buf := make([]byte, 1024)
	s.AsyncRead(ctx, buf, func(n int, err error) {
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("read failed: %v", err)
			}
			return
		}
		doWrite(ctx, s, buf[:n])
	})
}

func doWrite(ctx context.Context, s *tlsmediator.Stream, data []byte) {
	s.AsyncWrite(ctx, data, func(n int, err error) {
		if err != nil {
			log.Printf("write failed: %v", err)
			return
		}
		if n < len(data) {
			doWrite(ctx, s, data[n:])
			return
		}
		doRead(ctx, s)
	})
}
