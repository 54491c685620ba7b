package mediator

import (
	"context"
	"net"
	"time"
)

// watchCancel aborts conn's pending I/O by forcing a deadline the
// instant ctx is canceled, so a blocking read or write inside fn
// unblocks with an error instead of hanging forever. It returns once fn
// has finished, regardless of which case fired first.
func watchCancel(ctx context.Context, conn net.Conn, fn func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now())
		case <-done:
		}
	}()
	fn()
	close(done)
}

// AsyncHandshake runs the handshake driver to completion on a
// dedicated goroutine and invokes cb exactly once with the outcome.
// Because the work always runs on a new goroutine, cb is never invoked
// on the caller's own call stack (spec.md §4.7 "never completes
// inline").
func AsyncHandshake(ctx context.Context, conn net.Conn, d *HandshakeDriver, role Role, cb func(error)) {
	go func() {
		var err error
		watchCancel(ctx, conn, func() {
			err = BlockingHandshake(conn, d, role)
		})
		if err != nil && ctx.Err() != nil {
			err = newError(KindMisuse, ctx.Err(), "handshake canceled")
		}
		cb(err)
	}()
}

// AsyncEncrypt runs one encrypt step and its transport write on a
// dedicated goroutine.
func AsyncEncrypt(ctx context.Context, conn net.Conn, d *EncryptDriver, plaintext []byte, cb func(int, error)) {
	go func() {
		var n int
		var err error
		watchCancel(ctx, conn, func() {
			n, err = BlockingEncrypt(conn, d, plaintext)
		})
		if err != nil && ctx.Err() != nil {
			err = newError(KindMisuse, ctx.Err(), "encrypt canceled")
		}
		cb(n, err)
	}()
}

// AsyncDecrypt runs the decrypt driver until it has plaintext (or an
// error, or a peer close) to report, on a dedicated goroutine.
func AsyncDecrypt(ctx context.Context, conn net.Conn, d *DecryptDriver, p []byte, cb func(n int, peerClosed bool, err error)) {
	go func() {
		var n int
		var peerClosed bool
		var err error
		watchCancel(ctx, conn, func() {
			n, peerClosed, err = BlockingDecrypt(conn, d, p)
		})
		if err != nil && ctx.Err() != nil {
			err = newError(KindMisuse, ctx.Err(), "read canceled")
		}
		cb(n, peerClosed, err)
	}()
}

// AsyncShutdown runs the shutdown driver and its transport write on a
// dedicated goroutine.
func AsyncShutdown(ctx context.Context, conn net.Conn, d *ShutdownDriver, cb func(error)) {
	go func() {
		var err error
		watchCancel(ctx, conn, func() {
			err = BlockingShutdown(conn, d)
		})
		if err != nil && ctx.Err() != nil {
			err = newError(KindMisuse, ctx.Err(), "shutdown canceled")
		}
		cb(err)
	}()
}
