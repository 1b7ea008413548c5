package jsonrpc

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

var (
	ErrInvalidHeader = errors.New("invalid data")
	ErrTruncated     = errors.New("item size does not match header")
	ErrSizeMismatch  = errors.New("frame size does not match header")
)

var (
	contentLength    = []byte("Content-Length:")
	headerTerminator = []byte("\r\n\r\n")
)

// Encode marshals v as compact JSON and frames it with a Content-Length
// header.
func Encode(v interface{}) ([]byte, error) {
	payload, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	return Frame(payload), nil
}

// Frame prefixes payload with its header.
func Frame(payload []byte) []byte {
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	frame := make([]byte, 0, len(header)+len(payload))
	frame = append(frame, header...)
	return append(frame, payload...)
}

// parseHeader reads the header block at the start of data. It returns the
// header size including the terminator and the declared payload length.
// ok is false when the terminator has not arrived yet.
func parseHeader(data []byte) (size, length int, ok bool, err error) {
	end := bytes.Index(data, headerTerminator)
	if end < 0 {
		return 0, 0, false, nil
	}
	length = -1
	for _, line := range bytes.Split(data[:end], []byte("\r\n")) {
		if !bytes.HasPrefix(line, contentLength) {
			continue
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(line[len(contentLength):])))
		if err != nil || n < 0 {
			return 0, 0, false, errors.Wrapf(ErrInvalidHeader, "content length %q", line)
		}
		length = n
	}
	if length < 0 {
		return 0, 0, false, errors.Wrap(ErrInvalidHeader, "missing content length")
	}
	return end + len(headerTerminator), length, true, nil
}

// ScanFrames is a bufio.SplitFunc yielding message payloads. Bytes before the
// first Content-Length header are skipped.
func ScanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	pos := bytes.Index(data, contentLength)
	if pos < 0 {
		if atEOF && len(bytes.TrimSpace(data)) > 0 {
			return 0, nil, ErrTruncated
		}
		if atEOF {
			return len(data), nil, nil
		}
		// keep a possible partial header prefix
		if keep := len(contentLength) - 1; len(data) > keep {
			return len(data) - keep, nil, nil
		}
		return 0, nil, nil
	}

	size, length, ok, err := parseHeader(data[pos:])
	if err != nil {
		return 0, nil, err
	}
	if !ok || len(data) < pos+size+length {
		if atEOF {
			return 0, nil, ErrTruncated
		}
		return pos, nil, nil
	}
	start := pos + size
	return start + length, data[start : start+length], nil
}

// NextFrame cuts the first whole frame, header included, off data. It
// returns ErrTruncated when data holds only part of a frame and
// ErrInvalidHeader when data does not start with a header.
func NextFrame(data []byte) (frame, rest []byte, err error) {
	if !bytes.HasPrefix(data, contentLength) {
		if len(data) < len(contentLength) && bytes.HasPrefix(contentLength, data) {
			return nil, data, ErrTruncated
		}
		return nil, data, ErrInvalidHeader
	}
	size, length, ok, err := parseHeader(data)
	if err != nil {
		return nil, data, err
	}
	if !ok || len(data) < size+length {
		return nil, data, ErrTruncated
	}
	return data[:size+length], data[size+length:], nil
}

// SplitFrames splits data made of back-to-back frames into whole frames,
// headers included.
func SplitFrames(data []byte) ([][]byte, error) {
	var frames [][]byte
	for len(data) > 0 {
		frame, rest, err := NextFrame(data)
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
		data = rest
	}
	return frames, nil
}

// ParseFrame returns the declared payload length and the payload of frame.
// When the frame size disagrees with its header ErrSizeMismatch is returned
// along with whatever follows the header.
func ParseFrame(frame []byte) (int, []byte, error) {
	if !bytes.HasPrefix(frame, contentLength) {
		return 0, nil, ErrInvalidHeader
	}
	size, length, ok, err := parseHeader(frame)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return 0, nil, ErrInvalidHeader
	}
	payload := frame[size:]
	if len(payload) != length {
		return length, payload, errors.Wrapf(ErrSizeMismatch, "item size (%d) does not match header %d", len(frame), size+length)
	}
	return length, payload, nil
}
