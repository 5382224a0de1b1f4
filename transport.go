package fins

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// udpTransport owns the single UDP socket used to talk to one PLC.
// Exchanges must not overlap; Client serializes them. Close may be called
// concurrently with an exchange and aborts it.
type udpTransport struct {
	local    *net.UDPAddr
	remote   *net.UDPAddr
	endpoint string
	logger   *zap.Logger

	mu     sync.Mutex // guards conn, closed and stale
	conn   *net.UDPConn
	closed bool
	stale  bool // conn replaced one on the same pinned port

	buf []byte // receive buffer, only touched inside exchange
}

func newUDPTransport(local, remote *net.UDPAddr, logger *zap.Logger) *udpTransport {
	return &udpTransport{
		local:    local,
		remote:   remote,
		endpoint: remote.String(),
		logger:   logger,
		buf:      make([]byte, READ_BUFFER_SIZE),
	}
}

// pinned reports whether every socket is bound to the same local port.
func (t *udpTransport) pinned() bool {
	return t.local != nil && t.local.Port != 0
}

// acquire returns the live socket, dialling one if none exists yet. stale is
// true once after the socket was replaced on a pinned port.
func (t *udpTransport) acquire() (conn *net.UDPConn, stale bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, false, ClientClosedError{}
	}
	if t.conn != nil {
		stale, t.stale = t.stale, false
		return t.conn, stale, nil
	}
	conn, err = net.DialUDP("udp", t.local, t.remote)
	if err != nil {
		return nil, false, &TransportError{Endpoint: t.endpoint, Op: "dial", Err: err}
	}
	t.conn = conn
	stale, t.stale = t.stale, false
	t.logger.Debug("socket opened", zap.Stringer("local", conn.LocalAddr()))
	return conn, stale, nil
}

// discard closes conn and, unless the transport is closed, dials its
// replacement. With an ephemeral local port the replacement gets a new port,
// so late replies to the aborted request never reach it. With a pinned port
// they do: the replacement is marked stale and drained before its first send,
// and exchange drops datagrams that do not fit the request.
func (t *udpTransport) discard(conn *net.UDPConn, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = conn.Close()
	if t.conn != conn {
		return
	}
	t.conn = nil
	if t.closed {
		return
	}
	t.stale = t.pinned()
	fresh, err := net.DialUDP("udp", t.local, t.remote)
	if err != nil {
		// acquire will try again on the next exchange.
		t.logger.Warn("socket replacement failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	t.conn = fresh
	t.logger.Debug("socket replaced", zap.String("reason", reason), zap.Stringer("local", fresh.LocalAddr()))
}

// exchange sends frame and waits for the datagram answering it, expected
// bytes long. The wait ends at now+timeout or at the context deadline,
// whichever comes first; cancelling ctx aborts it as well.
func (t *udpTransport) exchange(ctx context.Context, frame []byte, expected int, timeout time.Duration) ([]byte, error) {
	conn, stale, err := t.acquire()
	if err != nil {
		return nil, err
	}
	if stale {
		t.drain(conn)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	wait := time.Until(deadline)

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, t.fail(ctx, conn, "set deadline", err, wait, len(frame))
	}

	// The abort must not land on a later exchange that reuses conn.
	var (
		abortMu  sync.Mutex
		finished bool
	)
	stop := context.AfterFunc(ctx, func() {
		abortMu.Lock()
		defer abortMu.Unlock()
		if !finished {
			_ = conn.SetReadDeadline(time.Now())
		}
	})
	defer func() {
		stop()
		abortMu.Lock()
		finished = true
		abortMu.Unlock()
	}()

	if _, err := conn.Write(frame); err != nil {
		return nil, t.fail(ctx, conn, "send", err, wait, len(frame))
	}

	for {
		n, err := conn.Read(t.buf)
		if err != nil {
			return nil, t.fail(ctx, conn, "receive", err, wait, len(frame))
		}
		if !answers(frame, t.buf[:n], expected) {
			t.logger.Debug("discarded unmatched datagram", zap.Int("bytes", n), zap.Int("expected", expected))
			continue
		}
		resp := make([]byte, n)
		copy(resp, t.buf[:n])
		return resp, nil
	}
}

// drain discards datagrams already queued on conn.
func (t *udpTransport) drain(conn *net.UDPConn) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(DRAIN_WAIT)); err != nil {
			return
		}
		n, err := conn.Read(t.buf)
		if err != nil {
			return
		}
		t.logger.Debug("discarded stale datagram", zap.Int("bytes", n))
	}
}

// fail replaces the socket and classifies err.
func (t *udpTransport) fail(ctx context.Context, conn *net.UDPConn, op string, err error, wait time.Duration, sent int) error {
	var ne net.Error
	timedOut := errors.As(err, &ne) && ne.Timeout()

	reason := op + " failed"
	if timedOut {
		reason = "timeout"
	}
	t.discard(conn, reason)

	if t.isClosed() {
		return ClientClosedError{}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return &TransportError{Endpoint: t.endpoint, Op: op, Err: ctx.Err()}
	}
	if timedOut {
		return &TimeoutError{Endpoint: t.endpoint, Wait: wait, Sent: sent}
	}
	return &TransportError{Endpoint: t.endpoint, Op: op, Err: err}
}

func (t *udpTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close releases the socket. Safe to call more than once.
func (t *udpTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// LocalAddr returns the local address of the live socket, or nil.
func (t *udpTransport) LocalAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}
