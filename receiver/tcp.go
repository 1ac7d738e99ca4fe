package receiver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TCP listens on a stream socket and reads records from one accepted peer at
// a time. When the peer disconnects the next Receive accepts a new one.
type TCP struct {
	ln  *net.TCPListener
	log *zap.Logger

	recv sync.Mutex // serializes Accept and Receive

	mu   sync.Mutex // guards conn
	conn *net.TCPConn
}

var _ Receiver = (*TCP)(nil)

// ListenTCP binds a TCP listener on address, e.g. ":10240".
func ListenTCP(ctx context.Context, address string, log *zap.Logger) (*TCP, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCP{ln: ln.(*net.TCPListener), log: log}, nil
}

// Addr returns the bound listener address.
func (t *TCP) Addr() net.Addr { return t.ln.Addr() }

// Connected reports whether a peer is currently attached.
func (t *TCP) Connected() bool { return t.peer() != nil }

func (t *TCP) peer() *net.TCPConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// Accept waits for a peer unless one is already attached.
func (t *TCP) Accept(ctx context.Context) error {
	t.recv.Lock()
	defer t.recv.Unlock()
	_, err := t.accept(ctx)
	return err
}

func (t *TCP) accept(ctx context.Context) (*net.TCPConn, error) {
	if conn := t.peer(); conn != nil {
		return conn, nil
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = t.ln.SetDeadline(dl)
	} else {
		_ = t.ln.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() { _ = t.ln.SetDeadline(time.Now()) })
	defer stop()

	conn, err := t.ln.AcceptTCP()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, contextError(ctx, err)
	}
	// short records should not wait for coalescing
	_ = conn.SetNoDelay(true)

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	t.log.Info("tcp peer connected", zap.Stringer("remote", conn.RemoteAddr()))
	return conn, nil
}

func (t *TCP) drop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.log.Info("tcp peer disconnected", zap.Stringer("remote", t.conn.RemoteAddr()))
		_ = t.conn.Close()
		t.conn = nil
	}
}

// Receive reads exactly n bytes from the attached peer, accepting one first if
// needed. A peer that disconnects mid-record yields ErrShortReceive; one that
// disconnects between records yields io.EOF.
func (t *TCP) Receive(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidSize
	}
	t.recv.Lock()
	defer t.recv.Unlock()

	conn, err := t.accept(ctx)
	if err != nil {
		return nil, err
	}

	stop := bindContext(ctx, conn)
	defer stop()

	buf := make([]byte, n)
	got, err := io.ReadFull(conn, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF):
		t.drop()
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		t.drop()
		return buf[:got], short(got, n, err)
	}

	// a cancelled read leaves the peer attached
	if err = contextError(ctx, err); !isContextError(err) {
		t.drop()
	}
	if got > 0 {
		return buf[:got], short(got, n, err)
	}
	return nil, err
}

// Close closes the listener and the peer connection, unblocking a pending Receive.
func (t *TCP) Close() error {
	err := t.ln.Close()
	t.drop()
	return err
}
