package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"net"

	tlsmediator "github.com/goburrow/tlsmediator"
	"github.com/goburrow/tlsmediator/mediator"
)

type clientCommand struct{}

func (clientCommand) Name() string { return "client" }
func (clientCommand) Desc() string { return "connect, send one line, print the echo" }

func (clientCommand) Run(args []string) error {
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	addr := fs.String("connect", "127.0.0.1:8443", "address to connect to")
	hostname := fs.String("hostname", "tlsecho-demo-server", "SNI hostname / expected certificate CN")
	insecure := fs.Bool("insecure", true, "skip certificate validation (demo cert is self-signed)")
	message := fs.String("message", "hello", "plaintext to send")
	fs.Parse(args)

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		return err
	}

	tlsCfg := &tls.Config{InsecureSkipVerify: *insecure}
	ctx := mediator.NewContext(tlsCfg)
	stream := tlsmediator.NewStream(conn, ctx)
	if err := stream.SetServerHostname(*hostname); err != nil {
		return err
	}

	if err := stream.Handshake(mediator.RoleClient); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	remaining := []byte(*message)
	for len(remaining) > 0 {
		n, err := stream.Write(remaining)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		remaining = remaining[n:]
	}

	buf := make([]byte, len(*message))
	total := 0
	for total < len(buf) {
		n, err := stream.Read(buf[total:])
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		total += n
	}
	fmt.Printf("echoed: %s\n", buf[:total])

	return stream.Shutdown()
}
