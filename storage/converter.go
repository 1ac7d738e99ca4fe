package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/oy3o/binparse"
	"github.com/oy3o/binparse/capture"
)

// ErrNotPrepared is returned when a Converter is used before Prepare succeeded.
var ErrNotPrepared = errors.New("storage: converter is not prepared")

// ConverterOptions configures a Converter.
type ConverterOptions struct {
	// Schema is the path of the schema document describing one record.
	Schema string
	// Source is the capture file; .zst and .lz4 files are decompressed.
	Source string
	// Target is the CSV file to create.
	Target string
	// Format controls the specifiers and the delimiter; nil means the defaults.
	Format *binparse.Format
	// Header writes the qualified field names as the first line in Run.
	Header bool
	// ProgressEvery logs progress after this many records; zero disables it.
	ProgressEvery int64
	Logger        *zap.Logger
}

// Converter decodes every record of a capture file into one CSV line.
//
// Usage mirrors a batch job: Prepare, optionally StoreHeaders, then
// ConvertAndStore while HasNext, and Close. Run does all of it.
type Converter struct {
	opts ConverterOptions
	log  *zap.Logger

	seq     *binparse.Sequence
	source  *capture.Reader
	records *binparse.RecordReader
	target  *os.File
	sink    *binparse.Sink
	line    bytes.Buffer

	total   int64
	skipped int64
}

// NewConverter returns an unprepared Converter.
func NewConverter(opts ConverterOptions) *Converter {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{opts: opts, log: log, total: -1}
}

// Prepare compiles the schema, opens the source and creates the target.
func (c *Converter) Prepare() error {
	seq, err := CompileSchema(c.opts.Schema)
	if err != nil {
		return err
	}
	width := seq.Size()

	source, err := capture.Open(c.opts.Source)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	records, err := binparse.NewRecordReader(source, width)
	if err != nil {
		source.Close()
		return err
	}

	target, err := os.Create(c.opts.Target)
	if err != nil {
		source.Close()
		return fmt.Errorf("creating target: %w", err)
	}
	sink, err := binparse.NewSink(target)
	if err != nil {
		source.Close()
		target.Close()
		return err
	}

	c.seq, c.source, c.records, c.target, c.sink = seq, source, records, target, sink
	if size := source.Size(); size >= 0 {
		c.total = size / int64(width)
		if rest := size % int64(width); rest != 0 {
			c.log.Warn("source has a trailing partial record",
				zap.String("source", c.opts.Source), zap.Int64("bytes", rest))
		}
	}
	c.log.Info("converter prepared",
		zap.String("source", c.opts.Source),
		zap.String("target", c.opts.Target),
		zap.Int("record_bytes", width),
		zap.Int64("total_items", c.total))
	return nil
}

// Sequence returns the compiled record decoder, or nil before Prepare.
func (c *Converter) Sequence() *binparse.Sequence { return c.seq }

// TotalItems returns the number of whole records in the source, or -1 when it
// is compressed and the count is unknown until the end.
func (c *Converter) TotalItems() int64 { return c.total }

// CurrentItem returns the number of records consumed so far.
func (c *Converter) CurrentItem() int64 {
	if c.records == nil {
		return 0
	}
	return c.records.Count()
}

// Skipped returns the number of records that failed to decode.
func (c *Converter) Skipped() int64 { return c.skipped }

// HasNext reports whether another record remains.
func (c *Converter) HasNext() bool {
	if c.records == nil {
		return false
	}
	if c.total >= 0 {
		return c.records.Count() < c.total
	}
	return c.records.More()
}

// StoreHeaders writes every leaf qualified name joined by the delimiter.
func (c *Converter) StoreHeaders() error {
	if c.sink == nil {
		return ErrNotPrepared
	}
	c.sink.WriteJoined(c.seq.Names(""), c.opts.Format.Delimiter())
	c.sink.WriteString("\n")
	return c.sink.Err()
}

// ConvertAndStore decodes the next record and writes it as one line. A record
// that fails to decode is skipped and logged; it is not an error.
func (c *Converter) ConvertAndStore() error {
	if c.records == nil {
		return ErrNotPrepared
	}
	record, err := c.records.Next()
	if err != nil {
		return err
	}
	if _, err := c.sink.WriteRecord(c.seq, c.opts.Format, record, &c.line); err != nil {
		if !errors.Is(err, binparse.ErrShortBuffer) {
			return err
		}
		c.skipped++
		c.log.Warn("skipping undecodable record", zap.Int64("item", c.records.Count()), zap.Error(err))
	}
	return nil
}

// Run converts the whole source. It stops early when ctx is done.
func (c *Converter) Run(ctx context.Context) error {
	if c.sink == nil {
		return ErrNotPrepared
	}
	if c.opts.Header {
		if err := c.StoreHeaders(); err != nil {
			return err
		}
	}
	for c.HasNext() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.ConvertAndStore(); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				c.log.Warn("dropping trailing partial record")
				break
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if every := c.opts.ProgressEvery; every > 0 && c.CurrentItem()%every == 0 {
			c.log.Info("processed items", zap.Int64("current", c.CurrentItem()), zap.Int64("total", c.total))
		}
	}
	if _, err := c.sink.Result(); err != nil {
		return err
	}
	c.log.Info("conversion finished", zap.Int64("items", c.CurrentItem()), zap.Int64("skipped", c.skipped))
	return nil
}

// Close flushes the target and releases both files.
func (c *Converter) Close() error {
	var errs []error
	if c.sink != nil {
		errs = append(errs, c.sink.Flush())
	}
	if c.target != nil {
		errs = append(errs, c.target.Close())
	}
	if c.source != nil {
		errs = append(errs, c.source.Close())
	}
	return errors.Join(errs...)
}
