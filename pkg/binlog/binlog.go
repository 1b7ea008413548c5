// Package binlog records raw protocol traffic as tagged binary records and
// reads it back.
//
// A record is a little-endian uint32 tag, a little-endian uint32 length and
// length bytes of data.
package binlog

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Tag marks the direction of a record.
type Tag uint32

const (
	Incoming Tag = 0
	Outgoing Tag = 1
)

// Arrow is ">" for outgoing records and "<" for incoming ones.
func (t Tag) Arrow() string {
	if t > 0 {
		return ">"
	}
	return "<"
}

const headerSize = 8

// Writer appends records to a stream.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

// Create truncates or creates the log file at path.
func Create(fs afero.Fs, path string) (*Writer, error) {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "binlog")
	}
	return NewWriter(f), nil
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Add writes data as one record. Records added after Close are dropped.
func (w *Writer) Add(data []byte, tag Tag) error {
	block := make([]byte, headerSize+len(data))
	binary.LittleEndian.PutUint32(block[0:], uint32(tag))
	binary.LittleEndian.PutUint32(block[4:], uint32(len(data)))
	copy(block[headerSize:], data)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	_, err := w.w.Write(block)
	if err == nil {
		if s, ok := w.w.(interface{ Sync() error }); ok {
			err = s.Sync()
		}
	}
	if err != nil {
		err = errors.Wrap(err, "binlog")
		if w.err == nil {
			w.err = err
		}
	}
	return err
}

// Err is the first error Add ran into. Taps drop their Add errors, this is
// where they surface.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close closes the underlying stream if it is a closer. Calling it again
// does nothing.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	out := w.w
	w.w = nil
	if c, ok := out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// TapReader records every chunk read from r under tag.
func (w *Writer) TapReader(r io.Reader, tag Tag) io.Reader {
	return &tapReader{r: r, log: w, tag: tag}
}

// TapWriter records every chunk written to out under tag.
func (w *Writer) TapWriter(out io.Writer, tag Tag) io.Writer {
	return &tapWriter{w: out, log: w, tag: tag}
}

type tapReader struct {
	r   io.Reader
	log *Writer
	tag Tag
}

func (t *tapReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		t.log.Add(p[:n], t.tag)
	}
	return n, err
}

func (t *tapReader) Close() error {
	if c, ok := t.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type tapWriter struct {
	w   io.Writer
	log *Writer
	tag Tag
}

func (t *tapWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.log.Add(p[:n], t.tag)
	}
	return n, err
}

func (t *tapWriter) Close() error {
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
