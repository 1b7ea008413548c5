package jsonrpc

import (
	"bufio"
	"io"
	"sync"

	"github.com/manifold/lsptrace/pkg/misc/logging"
	"github.com/pkg/errors"
)

// MaxFrameSize bounds a single message payload.
const MaxFrameSize = 64 * 1024 * 1024

// ErrClosed is returned by Send after the connection was closed.
var ErrClosed = errors.New("jsonrpc: connection closed")

// Conn exchanges framed messages over a pair of streams.
type Conn struct {
	r   io.Reader
	w   io.Writer
	log logging.Logger

	in   chan *Inbound
	done chan struct{}
	err  error

	wmu       sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewConn starts reading messages from r. Messages are written to w.
// log may be nil.
func NewConn(r io.Reader, w io.Writer, log logging.Logger) *Conn {
	c := &Conn{
		r:    r,
		w:    w,
		log:  log,
		in:   make(chan *Inbound, 64),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Incoming yields decoded messages. It is closed when the read side ends.
func (c *Conn) Incoming() <-chan *Inbound {
	return c.in
}

// Done is closed when the read side ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err is the reason the read side ended, nil for a clean EOF. Only valid
// after Done is closed.
func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// Send frames v and writes it with a single Write.
func (c *Conn) Send(v interface{}) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_, err = c.w.Write(frame)
	return errors.Wrap(err, "send")
}

// Close closes both streams when they are closers.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		c.closed = true
		c.wmu.Unlock()

		if wc, ok := c.w.(io.Closer); ok {
			err = wc.Close()
		}
		if rc, ok := c.r.(io.Closer); ok {
			if rerr := rc.Close(); err == nil {
				err = rerr
			}
		}
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.in)

	scanner := bufio.NewScanner(c.r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)
	scanner.Split(ScanFrames)
	for scanner.Scan() {
		msg, err := Decode(scanner.Bytes())
		if err != nil {
			logging.Error(c.log, "jsonrpc: dropping message:", err)
			continue
		}
		c.in <- msg
	}
	c.err = scanner.Err()
}
