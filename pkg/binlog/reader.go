package binlog

import (
	"bytes"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/manifold/lsptrace/pkg/jsonrpc"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// prettyJSON sorts keys and keeps numbers as written.
var prettyJSON = sonic.Config{SortMapKeys: true, CopyString: true, UseNumber: true}.Froze()

var (
	ErrShortHeader = errors.New("failed to read header")
	ErrShortRecord = errors.New("failed to read record data")
)

// Record is one entry of a log. Offset is the position of its header.
type Record struct {
	Offset int64
	Tag    Tag
	Data   []byte
}

// Reader reads records in order.
type Reader struct {
	r   io.Reader
	off int64
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next record, or io.EOF at a clean end.
func (r *Reader) Next() (*Record, error) {
	var header [headerSize]byte
	n, err := io.ReadFull(r.r, header[:])
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrapf(ErrShortHeader, "offset %d: %d bytes", r.off, n)
	}

	rec := &Record{
		Offset: r.off,
		Tag:    Tag(binary.LittleEndian.Uint32(header[0:])),
	}
	size := binary.LittleEndian.Uint32(header[4:])
	// the buffer grows with what is actually read, a bogus size from a
	// corrupt header does not allocate up front
	var data bytes.Buffer
	if _, err := io.CopyN(&data, r.r, int64(size)); err != nil {
		return nil, errors.Wrapf(ErrShortRecord, "offset %d: want %d bytes, got %d", r.off, size, data.Len())
	}
	rec.Data = data.Bytes()
	r.off += headerSize + int64(size)
	return rec, nil
}

// ReadAll reads every record of r. Records read before an error are
// returned with it.
func ReadAll(r io.Reader) ([]*Record, error) {
	reader := NewReader(r)
	var records []*Record
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// Open reads all records of the log at path.
func Open(fs afero.Fs, path string) ([]*Record, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "binlog")
	}
	defer f.Close()
	return ReadAll(f)
}

// Item is a single framed message found in a log.
type Item struct {
	Index  int
	Tag    Tag
	Offset int64
	Frame  []byte
}

// Label is the direction arrow and index, e.g. "> 3".
func (i Item) Label() string {
	return i.Tag.Arrow() + " " + strconv.Itoa(i.Index)
}

// Items splits records into framed messages, numbered in log order. A
// message may span several records of the same tag; records of the other
// direction may sit in between.
func Items(records []*Record) ([]Item, error) {
	var items []Item
	pending := make(map[Tag][]byte)
	offsets := make(map[Tag]int64)
	for _, rec := range records {
		buf := pending[rec.Tag]
		if len(buf) == 0 {
			offsets[rec.Tag] = rec.Offset
		}
		buf = append(buf, rec.Data...)
		for len(buf) > 0 {
			frame, rest, err := jsonrpc.NextFrame(buf)
			if errors.Cause(err) == jsonrpc.ErrTruncated {
				break
			}
			if err != nil {
				return items, errors.Wrapf(err, "record at offset %d", rec.Offset)
			}
			items = append(items, Item{
				Index:  len(items),
				Tag:    rec.Tag,
				Offset: offsets[rec.Tag],
				Frame:  frame,
			})
			buf = rest
			offsets[rec.Tag] = rec.Offset
		}
		pending[rec.Tag] = buf
	}
	for tag, buf := range pending {
		if len(buf) > 0 {
			return items, errors.Wrapf(jsonrpc.ErrTruncated, "%s stream ends mid-message", tag.Arrow())
		}
	}
	return items, nil
}

// Pretty renders the payload as indented JSON with sorted keys. When the
// frame does not match its header the raw frame text is returned with the
// error.
func (i Item) Pretty() (string, error) {
	_, payload, err := jsonrpc.ParseFrame(i.Frame)
	if err != nil {
		return string(i.Frame), err
	}
	var v interface{}
	if err := prettyJSON.Unmarshal(payload, &v); err != nil {
		return string(i.Frame), errors.Wrap(err, "payload")
	}
	out, err := prettyJSON.MarshalIndent(v, "", "    ")
	if err != nil {
		return string(i.Frame), err
	}
	return string(out), nil
}
