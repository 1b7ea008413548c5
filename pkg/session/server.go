package session

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/armon/circbuf"
	"github.com/manifold/lsptrace/pkg/console"
	"github.com/manifold/lsptrace/pkg/daemon"
	"github.com/manifold/lsptrace/pkg/jsonrpc"
	"github.com/manifold/lsptrace/pkg/lsp"
	"github.com/manifold/lsptrace/pkg/misc/logging"
	"github.com/manifold/lsptrace/pkg/misc/subcmd"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const stderrTail = 4096

// shutdownTimeout bounds each step of stopping the server.
var shutdownTimeout = 2 * time.Second

// Server runs the language server process and the client talking to it.
type Server struct {
	Config  *Config
	Fs      afero.Fs
	Log     logging.Logger
	Console *console.Service
	Trace   *Trace
	Daemon  *daemon.Daemon

	proc   *subcmd.Subcmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	childW io.Closer
	stderr *tail
	conn   *jsonrpc.Conn
	client *lsp.Client
}

func (s *Server) InitializeDaemon() error {
	if s.Fs == nil {
		s.Fs = afero.NewOsFs()
	}
	buf, err := circbuf.NewBuffer(stderrTail)
	if err != nil {
		return err
	}
	s.stderr = &tail{buf: buf}

	s.proc = subcmd.New(s.Config.Server, s.Config.ServerArgs...)
	s.proc.MaxRestarts = 0
	s.proc.Dir = s.Config.RootDir
	if len(s.Config.ServerEnv) > 0 {
		s.proc.Env = append(os.Environ(), s.Config.ServerEnv...)
	}
	s.proc.Setup = s.setup
	s.proc.Observe(func(_ *subcmd.Subcmd, status subcmd.Status) {
		logging.Debug(s.Log, "[server]", filepath.Base(s.Config.Server), status)
	})
	err = s.proc.Start()
	if s.childW != nil {
		// the child holds its own copy; ours would keep stdout from ending
		s.childW.Close()
	}
	if err != nil {
		if s.stdout != nil {
			s.stdout.Close()
		}
		return errors.Wrapf(err, "start %s", s.Config.Server)
	}

	s.conn = jsonrpc.NewConn(s.Trace.Reader(s.stdout), s.Trace.Writer(s.stdin), s.Log)
	s.client = lsp.NewClient(s.conn, lsp.NewStore(s.Fs),
		lsp.WithLogger(s.Log),
		lsp.WithLanguageID(s.Config.LanguageID))

	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()
	if err := s.client.Initialize(ctx, s.Config.RootDir); err != nil {
		s.conn.Close()
		s.proc.Stop()
		return errors.Wrapf(err, "initialize %s", s.Config.Server)
	}
	logging.Info(s.Log, "[server] initialized, pid", s.proc.Pid())
	return nil
}

func (s *Server) setup(cmd *exec.Cmd) (err error) {
	if s.stdin, err = cmd.StdinPipe(); err != nil {
		return err
	}
	// an os.Pipe instead of StdoutPipe: exec closes StdoutPipe on Wait,
	// which would race the connection still reading the last messages
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	s.stdout, s.childW = r, w
	cmd.Stdout = w
	cmd.Stderr = s.stderr
	if s.Console != nil {
		cmd.Stderr = io.MultiWriter(s.stderr, s.Console.NewPipe(filepath.Base(s.Config.Server), true))
	}
	return nil
}

func (s *Server) Serve(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.client.Done():
		if ctx.Err() != nil {
			return
		}
		logging.Error(s.Log, "[server] connection lost:", s.conn.Err())
		if out := s.StderrTail(); out != "" {
			logging.Error(s.Log, "[server] last output:\n"+out)
		}
		s.Daemon.Terminate()
	}
}

func (s *Server) TerminateDaemon() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.client.Shutdown(ctx); err != nil {
		logging.Debug(s.Log, "[server] shutdown:", err)
	}

	exited := make(chan struct{})
	go func() {
		s.proc.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(shutdownTimeout):
		logging.Info(s.Log, "[server] still running, sending SIGTERM")
		s.proc.Signal(syscall.SIGTERM)
		select {
		case <-exited:
		case <-time.After(shutdownTimeout):
			logging.Info(s.Log, "[server] still running, stopping process group")
			s.proc.Stop()
		}
	}

	// stdout ends once the process is gone; read what it wrote last
	select {
	case <-s.conn.Done():
	case <-time.After(shutdownTimeout):
	}
	s.conn.Close()
	if code := s.proc.ExitStatus(); code != 0 {
		logging.Debug(s.Log, "[server] exit status", code)
	}
	return nil
}

// Client is the client connected to the running server.
func (s *Server) Client() *lsp.Client {
	return s.client
}

// StderrTail is the end of what the server wrote to stderr.
func (s *Server) StderrTail() string {
	if s.stderr == nil {
		return ""
	}
	return s.stderr.String()
}

// tail keeps the last bytes written, safe for the exec copy goroutine and
// readers.
type tail struct {
	mu  sync.Mutex
	buf *circbuf.Buffer
}

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Write(p)
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
