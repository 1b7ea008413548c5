package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	ct "github.com/daviddengcn/go-colortext"
)

// LineWriter interleaves named line streams on a single output, one
// `name | line` row per line.
type LineWriter struct {
	Output  io.Writer
	Padding int

	wg sync.WaitGroup
	mu sync.Mutex
}

var colors = []ct.Color{
	ct.Cyan,
	ct.Yellow,
	ct.Green,
	ct.Magenta,
	ct.Red,
	ct.Blue,
}

// Color picks the name colour for a stream index. -1 is reserved for the
// process' own output.
func Color(index int) ct.Color {
	if index < 0 {
		return ct.White
	}
	return colors[index%len(colors)]
}

// Wait blocks until every LineReader has returned.
func (lw *LineWriter) Wait() {
	lw.wg.Wait()
}

// Pad widens the name column to at least n.
func (lw *LineWriter) Pad(n int) {
	lw.mu.Lock()
	if n > lw.Padding {
		lw.Padding = n
	}
	lw.mu.Unlock()
}

// Go runs LineReader in a goroutine that Wait accounts for.
func (lw *LineWriter) Go(name string, index int, r io.Reader, isError bool) {
	lw.wg.Add(1)
	go func() {
		defer lw.wg.Done()
		lw.LineReader(name, index, r, isError)
	}()
}

// LineReader copies r line by line until it ends. Lines have no length
// limit. A trailing line without a newline is written when r ends.
func (lw *LineWriter) LineReader(name string, index int, r io.Reader, isError bool) {
	if rc, ok := r.(io.ReadCloser); ok {
		defer rc.Close()
	}

	color := Color(index)
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			lw.WriteLine(name, strings.TrimRight(line, "\r\n"), color, ct.None, isError)
		}
		if err != nil {
			return
		}
	}
}

// WriteLine writes out a single coloured line.
func (lw *LineWriter) WriteLine(left, right string, leftC, rightC ct.Color, isError bool) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	ct.ChangeColor(leftC, true, ct.None, false)
	fmt.Fprintf(lw.Output, "%-*s | ", lw.Padding, left)

	switch {
	case isError:
		ct.ChangeColor(ct.Red, true, ct.None, false)
	case rightC != ct.None:
		ct.ChangeColor(rightC, false, ct.None, false)
	default:
		ct.ResetColor()
	}
	fmt.Fprintln(lw.Output, right)
	if isError || rightC != ct.None {
		ct.ResetColor()
	}
}
