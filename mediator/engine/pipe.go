// Package engine wraps the standard library's crypto/tls record layer
// behind a four-entrypoint step contract: feed ciphertext in, take
// ciphertext out, one record at a time, without the engine ever
// touching the real transport.
//
// The trick, generalized from the way priya-79009-ssloff's detectTLS
// peeks a ClientHello by handing a buffer-backed net.Conn to
// tls.Server, is to run a real *tls.Conn against an in-process pipe:
// the engine side blocks the driving goroutine when it needs more
// bytes than are buffered; the mediator side only ever feeds and
// drains, never blocks.
package engine

import (
	"net"
	"sync"
	"time"
)

// pipe is a unidirectional, unbounded byte queue used as one half of
// the engineConn/mediator rendezvous. Unlike net.Pipe, reads on the
// engine side block until data is available, but the mediator side can
// always feed or drain without blocking.
type pipe struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  []byte
	// blocked is signaled (non-blocking, capacity 1) the instant the
	// engine side starts waiting for more bytes than are buffered.
	blocked chan struct{}
	closed  bool
}

func newPipe() *pipe {
	p := &pipe{blocked: make(chan struct{}, 1)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// feed appends bytes for the engine side to read. Never blocks.
func (p *pipe) feed(b []byte) {
	if len(b) == 0 {
		return
	}
	p.mu.Lock()
	p.buf = append(p.buf, b...)
	p.mu.Unlock()
	p.cond.Broadcast()
}

// drain removes and returns all currently buffered bytes written by the
// engine side. Never blocks.
func (p *pipe) drain() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nil
	}
	out := p.buf
	p.buf = nil
	return out
}

func (p *pipe) closePipe() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// engineRead blocks until at least one byte is available or the pipe is
// closed, signaling blocked the instant it has to wait.
func (p *pipe) engineRead(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.buf) == 0 {
		if p.closed {
			return 0, net.ErrClosed
		}
		select {
		case p.blocked <- struct{}{}:
		default:
		}
		p.cond.Wait()
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

// engineWrite appends bytes for the mediator side to drain. Never blocks.
func (p *pipe) engineWrite(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, net.ErrClosed
	}
	p.buf = append(p.buf, b...)
	p.mu.Unlock()
	p.cond.Broadcast()
	return len(b), nil
}

// engineConn implements net.Conn as seen from the real *tls.Conn: it
// reads from the pipe the mediator feeds and writes to the pipe the
// mediator drains, so one engineConn covers both directions.
type engineConn struct {
	read  *pipe // bytes for the engine to consume (fed by the mediator)
	write *pipe // bytes produced by the engine (drained by the mediator)
}

var _ net.Conn = (*engineConn)(nil)

func (c *engineConn) Read(b []byte) (int, error)  { return c.read.engineRead(b) }
func (c *engineConn) Write(b []byte) (int, error) { return c.write.engineWrite(b) }
func (c *engineConn) Close() error {
	c.read.closePipe()
	return nil
}
func (c *engineConn) LocalAddr() net.Addr           { return pipeAddr{} }
func (c *engineConn) RemoteAddr() net.Addr          { return pipeAddr{} }
func (c *engineConn) SetDeadline(time.Time) error   { return nil }
func (c *engineConn) SetReadDeadline(time.Time) error  { return nil }
func (c *engineConn) SetWriteDeadline(time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "tlsmediator-engine-pipe" }

// mediatorSide is the facade's handle onto the pipe: feed supplies
// ciphertext read from the real transport, drain removes ciphertext the
// engine produced, blockedSignal fires once the engine goroutine is waiting
// for more input than is currently buffered.
type mediatorSide struct {
	toEngine   *pipe
	fromEngine *pipe
}

func (m *mediatorSide) feed(b []byte) { m.toEngine.feed(b) }
func (m *mediatorSide) drain() []byte { return m.fromEngine.drain() }
func (m *mediatorSide) blockedSignal() <-chan struct{} {
	return m.toEngine.blocked
}
func (m *mediatorSide) close() {
	m.toEngine.closePipe()
	m.fromEngine.closePipe()
}

// newPipePair builds the engine-facing net.Conn and the mediator-facing
// handle onto the same two underlying byte queues.
func newPipePair() (*engineConn, *mediatorSide) {
	toEngine := newPipe()
	fromEngine := newPipe()
	ec := &engineConn{read: toEngine, write: fromEngine}
	ms := &mediatorSide{toEngine: toEngine, fromEngine: fromEngine}
	return ec, ms
}
