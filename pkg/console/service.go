package console

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/manifold/lsptrace/pkg/misc/logging"
	"github.com/manifold/lsptrace/pkg/misc/logging/zap"
)

// Output lets you redirect the output the console is set up with.
var Output io.Writer = os.Stderr

// Service provides a logging service and console output for child processes.
type Service struct {
	logging.Logger

	logwriter io.WriteCloser
	console   *LineWriter
	pipes     []io.WriteCloser
	mu        sync.Mutex
	idx       int
}

// New sets up a console service. Its own log lines are written under name,
// debug lines only when debug is set.
func New(name string, debug bool) *Service {
	s := &Service{
		console: &LineWriter{
			Output:  Output,
			Padding: len(name),
		},
	}
	logreader, logwriter := io.Pipe()
	s.logwriter = logwriter
	s.Logger = zap.NewLogger(logwriter, debug)
	s.console.Go(name, -1, logreader, false)
	return s
}

// Serve waits for every stream to finish.
func (s *Service) Serve(ctx context.Context) {
	s.console.Wait()
}

// TerminateDaemon closes the log stream and every pipe handed out, which
// lets Serve return.
func (s *Service) TerminateDaemon() error {
	s.mu.Lock()
	pipes := s.pipes
	s.pipes = nil
	s.mu.Unlock()

	for _, p := range pipes {
		p.Close()
	}
	return s.logwriter.Close()
}

// NewReader shows every line of reader under name.
func (s *Service) NewReader(name string, reader io.Reader, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.idx
	s.idx++
	s.console.Pad(len(name))

	s.console.Go(name, current, reader, isError)
}

// NewPipe returns a writer whose lines show under name. The pipe is closed
// when the service terminates.
func (s *Service) NewPipe(name string, isError bool) io.WriteCloser {
	pr, pw := io.Pipe()
	s.mu.Lock()
	s.pipes = append(s.pipes, pw)
	s.mu.Unlock()
	s.NewReader(name, pr, isError)
	return pw
}
