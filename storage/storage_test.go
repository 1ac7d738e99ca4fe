package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oy3o/binparse"
	"github.com/oy3o/binparse/capture"
	"github.com/oy3o/binparse/receiver"
)

const sampleSchema = `{
	"TypeDescription": [
		{"name": "seq", "type": "uint16_t"},
		{"name": "pos", "type": "struct", "concreteType": "Vec2"},
		{"name": "flags", "type": "uint8_t[2]"}
	],
	"Vec2": [
		{"name": "x", "type": "float"},
		{"name": "y", "type": "float"}
	]
}`

const sampleWidth = 2 + 8 + 2

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func sampleRecord(seq uint16, x, y float32, f0, f1 uint8) []byte {
	b := binparse.Append(nil, seq)
	b = binparse.Append(b, x)
	b = binparse.Append(b, y)
	return append(b, f0, f1)
}

func writeCapture(t *testing.T, path string, chunks ...[]byte) {
	t.Helper()
	w, err := capture.Create(path)
	require.NoError(t, err)
	for _, c := range chunks {
		_, err := w.Write(c)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestCompileSchema(t *testing.T) {
	dir := t.TempDir()
	seq, err := CompileSchema(writeFile(t, dir, "type.json", sampleSchema))
	require.NoError(t, err)
	assert.Equal(t, sampleWidth, seq.Size())

	_, err = CompileSchema(writeFile(t, dir, "empty.json", `{"TypeDescription": []}`))
	assert.ErrorIs(t, err, binparse.ErrSchemaInvalid)

	_, err = CompileSchema(filepath.Join(dir, "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	yamlPath := writeFile(t, dir, "type.yaml", "TypeDescription:\n  - {name: v, type: double}\n")
	seq, err = CompileSchema(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 8, seq.Size())
}

func TestConverterRun(t *testing.T) {
	for _, name := range []string{"type.dat", "type.dat.zst", "type.dat.lz4"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			source := filepath.Join(dir, name)
			writeCapture(t, source,
				sampleRecord(1, 0.5, -1, 3, 4),
				sampleRecord(2, 2, 2.25, 255, 0),
			)

			format := binparse.NewFormat()
			format.SetDelimiter(",")
			require.NoError(t, format.SetSpecifier(binparse.Float, "%.2f"))

			c := NewConverter(ConverterOptions{
				Schema: writeFile(t, dir, "type.json", sampleSchema),
				Source: source,
				Target: filepath.Join(dir, "type.csv"),
				Format: format,
				Header: true,
			})
			require.NoError(t, c.Prepare())
			if capture.CompressionOf(name) == capture.None {
				assert.EqualValues(t, 2, c.TotalItems())
			} else {
				assert.EqualValues(t, -1, c.TotalItems())
			}

			require.NoError(t, c.Run(context.Background()))
			assert.EqualValues(t, 2, c.CurrentItem())
			assert.Zero(t, c.Skipped())
			require.NoError(t, c.Close())

			data, err := os.ReadFile(filepath.Join(dir, "type.csv"))
			require.NoError(t, err)
			assert.Equal(t,
				"seq,pos.x,pos.y,flags[0],flags[1]\n"+
					"1,0.50,-1.00,3,4\n"+
					"2,2.00,2.25,255,0\n",
				string(data))
		})
	}
}

func TestConverterStepwise(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "type.dat")
	// two whole records and a trailing partial one
	writeCapture(t, source, sampleRecord(7, 1, 1, 0, 0), sampleRecord(8, 1, 1, 0, 0), []byte{1, 2, 3})

	c := NewConverter(ConverterOptions{
		Schema: writeFile(t, dir, "type.json", sampleSchema),
		Source: source,
		Target: filepath.Join(dir, "type.csv"),
	})
	assert.ErrorIs(t, c.StoreHeaders(), ErrNotPrepared)
	assert.ErrorIs(t, c.ConvertAndStore(), ErrNotPrepared)
	assert.False(t, c.HasNext())

	require.NoError(t, c.Prepare())
	assert.EqualValues(t, 2, c.TotalItems())
	assert.Equal(t, sampleWidth, c.Sequence().Size())

	var n int
	for c.HasNext() {
		require.NoError(t, c.ConvertAndStore())
		n++
	}
	assert.Equal(t, 2, n)
	require.NoError(t, c.Close())

	data, err := os.ReadFile(filepath.Join(dir, "type.csv"))
	require.NoError(t, err)
	assert.Equal(t, "7, 1.000000, 1.000000, 0, 0\n8, 1.000000, 1.000000, 0, 0\n", string(data))
}

func TestConverterCompressedTrailingPartial(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "type.dat.zst")
	writeCapture(t, source, sampleRecord(1, 0, 0, 0, 0), []byte{9})

	c := NewConverter(ConverterOptions{
		Schema: writeFile(t, dir, "type.json", sampleSchema),
		Source: source,
		Target: filepath.Join(dir, "type.csv"),
	})
	require.NoError(t, c.Prepare())
	require.NoError(t, c.Run(context.Background()))
	assert.EqualValues(t, 1, c.CurrentItem())
	require.NoError(t, c.Close())
}

func TestConverterSkipsUndecodable(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "type.json", `{"TypeDescription": [{"name": "v", "type": "uint8_t"}]}`)

	r := binparse.NewPrimitiveRegistry()
	r.Register("tag", binparse.NewString())
	seq, err := binparse.NewCompilerFromText([]byte(`{"TypeDescription": [{"name": "t", "type": "tag"}, {"name": "v", "type": "uint8_t"}]}`),
		binparse.WithRegistry(r)).Compile()
	require.NoError(t, err)
	assert.Equal(t, 1, seq.Size())

	source := filepath.Join(dir, "type.dat")
	writeCapture(t, source, []byte{5, 6})

	c := NewConverter(ConverterOptions{Schema: schema, Source: source, Target: filepath.Join(dir, "type.csv")})
	require.NoError(t, c.Prepare())
	// swap in a layout whose string never terminates within one record
	c.seq = seq
	require.NoError(t, c.Run(context.Background()))
	assert.EqualValues(t, 2, c.Skipped())
	require.NoError(t, c.Close())

	data, err := os.ReadFile(filepath.Join(dir, "type.csv"))
	require.NoError(t, err)
	assert.Empty(t, string(data))
}

func TestConverterPrepareErrors(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "type.json", sampleSchema)

	c := NewConverter(ConverterOptions{Schema: schema, Source: filepath.Join(dir, "absent.dat"), Target: filepath.Join(dir, "type.csv")})
	assert.ErrorIs(t, c.Prepare(), os.ErrNotExist)
	assert.NoError(t, c.Close())

	c = NewConverter(ConverterOptions{Schema: filepath.Join(dir, "absent.json")})
	assert.Error(t, c.Prepare())
	assert.ErrorIs(t, c.Run(context.Background()), ErrNotPrepared)
}

// scriptedReceiver replays canned results, then blocks until ctx is done.
type scriptedReceiver struct {
	mu      sync.Mutex
	results []result
}

type result struct {
	data []byte
	err  error
}

func (r *scriptedReceiver) Receive(ctx context.Context, n int) ([]byte, error) {
	r.mu.Lock()
	if len(r.results) > 0 {
		next := r.results[0]
		r.results = r.results[1:]
		r.mu.Unlock()
		return next.data, next.err
	}
	r.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (r *scriptedReceiver) Close() error { return nil }

func TestTaskRun(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "captures", "type.dat")
	recv := &scriptedReceiver{results: []result{
		{data: sampleRecord(1, 0, 0, 0, 0)},
		{data: []byte{1, 2}, err: receiver.ErrShortReceive},
		{err: io.EOF},
		{data: sampleRecord(2, 0, 0, 0, 0)},
	}}

	task, err := NewTask(recv, TaskOptions{
		Schema: writeFile(t, dir, "type.json", sampleSchema),
		Output: output,
		Period: time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, sampleWidth, task.Width())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, task.Run(ctx))
	require.NoError(t, task.Close())

	stored, dropped := task.Stats()
	assert.EqualValues(t, 2, stored)
	assert.EqualValues(t, 1, dropped)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, append(sampleRecord(1, 0, 0, 0, 0), sampleRecord(2, 0, 0, 0, 0)...), data)
}

func TestTaskStopOnEOF(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.dat.lz4")
	writeCapture(t, source, sampleRecord(1, 1, 1, 1, 1), sampleRecord(2, 2, 2, 2, 2))

	recv, err := receiver.OpenFile(source)
	require.NoError(t, err)
	defer recv.Close()

	output := filepath.Join(dir, "out.dat.zst")
	task, err := NewTask(recv, TaskOptions{
		Schema:    writeFile(t, dir, "type.json", sampleSchema),
		Output:    output,
		StopOnEOF: true,
	})
	require.NoError(t, err)
	require.NoError(t, task.Run(context.Background()))
	require.NoError(t, task.Close())

	stored, _ := task.Stats()
	assert.EqualValues(t, 2, stored)

	r, err := capture.Open(output)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, data, 2*sampleWidth)
}

func TestTaskReceiverFailure(t *testing.T) {
	dir := t.TempDir()
	recv := &scriptedReceiver{results: []result{{err: receiver.ErrClosed}}}
	task, err := NewTask(recv, TaskOptions{
		Schema: writeFile(t, dir, "type.json", sampleSchema),
		Output: filepath.Join(dir, "type.dat"),
	})
	require.NoError(t, err)
	defer task.Close()

	assert.ErrorIs(t, task.Run(context.Background()), receiver.ErrClosed)

	_, err = NewTask(nil, TaskOptions{})
	assert.Error(t, err)
}
