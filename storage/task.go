package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oy3o/binparse/capture"
	"github.com/oy3o/binparse/receiver"
)

// TaskOptions configures a capture Task.
type TaskOptions struct {
	// Schema is the path of the schema document; it fixes the record width.
	Schema string
	// Output is the capture file to create; .zst and .lz4 files are compressed.
	Output string
	// Period is the acquisition interval. Zero or less receives back to back.
	Period time.Duration
	// StopOnEOF ends Run when the receiver reports io.EOF. Otherwise EOF is a
	// disconnected peer and acquisition continues.
	StopOnEOF bool
	Logger    *zap.Logger
}

// Task periodically receives one record from a receiver and appends it to a
// capture file. Short receives are dropped.
type Task struct {
	recv   receiver.Receiver
	out    *capture.Writer
	width  int
	period time.Duration
	eof    bool
	log    *zap.Logger

	stored  atomic.Int64
	dropped atomic.Int64
}

// NewTask compiles the schema to learn the record width and creates the output.
func NewTask(recv receiver.Receiver, opts TaskOptions) (*Task, error) {
	if recv == nil {
		return nil, errors.New("storage: nil receiver")
	}
	seq, err := CompileSchema(opts.Schema)
	if err != nil {
		return nil, err
	}
	out, err := capture.Create(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("creating capture file: %w", err)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Task{
		recv:   recv,
		out:    out,
		width:  seq.Size(),
		period: opts.Period,
		eof:    opts.StopOnEOF,
		log:    log,
	}, nil
}

// Width returns the record width in bytes.
func (t *Task) Width() int { return t.width }

// Stats returns the number of stored and dropped records.
func (t *Task) Stats() (stored, dropped int64) {
	return t.stored.Load(), t.dropped.Load()
}

// RunOnce receives and stores a single record. A short receive is counted as
// dropped and is not an error.
func (t *Task) RunOnce(ctx context.Context) error {
	buf, err := t.recv.Receive(ctx, t.width)
	if err != nil {
		if errors.Is(err, receiver.ErrShortReceive) {
			t.dropped.Add(1)
			t.log.Warn("dropping short record", zap.Int("bytes", len(buf)), zap.Error(err))
			return nil
		}
		return err
	}
	if _, err := t.out.Write(buf); err != nil {
		return fmt.Errorf("writing capture file: %w", err)
	}
	t.stored.Add(1)
	return nil
}

// Run acquires records until ctx is done or the receiver fails.
func (t *Task) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if t.period > 0 {
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		tick = ticker.C
	}

	t.log.Info("capture started", zap.Int("record_bytes", t.width), zap.Duration("period", t.period))
	defer func() {
		stored, dropped := t.Stats()
		t.log.Info("capture stopped", zap.Int64("stored", stored), zap.Int64("dropped", dropped))
	}()

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
		if err := t.RunOnce(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF) && t.eof:
				return nil
			case errors.Is(err, io.EOF):
				t.log.Info("peer disconnected, waiting for the next one")
			default:
				return err
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close flushes and closes the capture file. The receiver is owned by the caller.
func (t *Task) Close() error { return t.out.Close() }
