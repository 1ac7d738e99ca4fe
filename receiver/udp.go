package receiver

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// maxDatagram is the largest UDP payload.
const maxDatagram = 64 * 1024

// UDP reads records from datagrams arriving on a bound socket. Datagrams are
// treated as a byte stream: a record may span datagrams, and bytes beyond the
// requested size are kept for the next Receive.
type UDP struct {
	conn *net.UDPConn
	log  *zap.Logger

	mu      sync.Mutex
	pending []byte
	packet  []byte
}

var _ Receiver = (*UDP)(nil)

// ListenUDP binds a UDP socket on address, e.g. ":10240".
func ListenUDP(ctx context.Context, address string, log *zap.Logger) (*UDP, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", address)
	if err != nil {
		return nil, err
	}
	return &UDP{conn: pc.(*net.UDPConn), log: log, packet: make([]byte, maxDatagram)}, nil
}

// Addr returns the bound socket address.
func (u *UDP) Addr() net.Addr { return u.conn.LocalAddr() }

// Receive collects n bytes from one or more datagrams.
func (u *UDP) Receive(ctx context.Context, n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidSize
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	stop := bindContext(ctx, u.conn)
	defer stop()

	buf := make([]byte, 0, n)
	for len(buf) < n {
		if len(u.pending) > 0 {
			take := min(n-len(buf), len(u.pending))
			buf = append(buf, u.pending[:take]...)
			u.pending = u.pending[take:]
			continue
		}

		got, from, err := u.conn.ReadFromUDP(u.packet)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				err = ErrClosed
			}
			err = contextError(ctx, err)
			if len(buf) > 0 {
				return buf, short(len(buf), n, err)
			}
			return nil, err
		}
		u.log.Debug("udp datagram", zap.Int("bytes", got), zap.Stringer("from", from))
		u.pending = append(u.pending[:0], u.packet[:got]...)
	}
	return buf, nil
}

// Close closes the socket, unblocking a pending Receive.
func (u *UDP) Close() error {
	return u.conn.Close()
}
