// Package receiver acquires fixed-size chunks of raw record bytes from a
// network socket or a capture file.
//
// A Receiver either returns exactly n bytes or fails. A chunk that ended early
// is reported with ErrShortReceive together with the bytes that did arrive, so
// the caller can drop or keep it.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrShortReceive indicates fewer bytes arrived than were requested.
	ErrShortReceive = errors.New("receiver: short receive")

	// ErrInvalidSize indicates a non-positive receive size.
	ErrInvalidSize = errors.New("receiver: receive size must be positive")

	// ErrClosed indicates the receiver was closed.
	ErrClosed = errors.New("receiver: closed")
)

// Receiver delivers fixed-size chunks.
type Receiver interface {
	// Receive blocks until n bytes are available, ctx is done, or the source fails.
	Receive(ctx context.Context, n int) ([]byte, error)
	Close() error
}

func short(got, want int, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: got %d of %d bytes: %w", ErrShortReceive, got, want, cause)
	}
	return fmt.Errorf("%w: got %d of %d bytes", ErrShortReceive, got, want)
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// bindContext applies the deadline of ctx to conn and interrupts blocked reads
// when ctx is done. The returned stop function must be called once the read ends.
func bindContext(ctx context.Context, conn deadliner) (stop func()) {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}
	cancel := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	return func() { cancel() }
}

// contextError reports a read timeout caused by ctx as the context error.
func contextError(ctx context.Context, err error) error {
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return context.DeadlineExceeded
	}
	return err
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
