package subcmd

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

type Status string

const (
	StatusStarting Status = "Starting"
	StatusStarted  Status = "Started"
	StatusExited   Status = "Exited"
	StatusStopped  Status = "Stopped"
)

func (s Status) String() string {
	return string(s)
}

// Running reports whether c is starting or started.
func Running(c *Subcmd) bool {
	if c == nil {
		return false
	}
	s := c.Status()
	return s == StatusStarting || s == StatusStarted
}

// Observer is called with every status change.
type Observer func(*Subcmd, Status)

// Subcmd runs a command in its own process group and restarts it after it
// exits cleanly, up to MaxRestarts times (-1 for no limit).
type Subcmd struct {
	Path string
	Args []string
	Dir  string
	Env  []string

	// Setup is called with every fresh exec.Cmd before it is started.
	Setup       func(*exec.Cmd) error
	MaxRestarts int

	status    Status
	observers []Observer
	current   *exec.Cmd
	exited    chan struct{}

	lastErr    error
	lastStatus int
	restarts   int

	mu    sync.Mutex
	obsMu sync.Mutex
}

func New(name string, arg ...string) *Subcmd {
	cmd := exec.Command(name, arg...)
	return &Subcmd{
		Path:        cmd.Path,
		Args:        cmd.Args,
		MaxRestarts: -1,
		status:      StatusStopped,
	}
}

// Observe registers cb for status changes.
func (sc *Subcmd) Observe(cb Observer) {
	sc.obsMu.Lock()
	sc.observers = append(sc.observers, cb)
	sc.obsMu.Unlock()
}

func (sc *Subcmd) Status() Status {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.status
}

// Pid is the process id of the running process, or 0.
func (sc *Subcmd) Pid() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.current == nil || sc.current.Process == nil {
		return 0
	}
	return sc.current.Process.Pid
}

func (sc *Subcmd) Start() error {
	if Running(sc) {
		return errors.New("already started")
	}
	return sc.start()
}

func (sc *Subcmd) Restart() error {
	if sc.Status() == StatusStarting {
		return errors.New("already starting")
	}
	sc.setStatus(StatusStopped)
	if exited := sc.kill(syscall.SIGTERM); exited != nil {
		<-exited
	}
	return sc.start()
}

func (sc *Subcmd) Stop() error {
	sc.mu.Lock()
	running := sc.current != nil
	sc.mu.Unlock()
	if !running {
		return errors.New("not running")
	}
	sc.setStatus(StatusStopped)
	if exited := sc.kill(syscall.SIGTERM); exited != nil {
		<-exited
	}
	return nil
}

// Signal sends sig to the running process.
func (sc *Subcmd) Signal(sig os.Signal) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.current == nil || sc.current.Process == nil {
		return errors.New("not running")
	}
	return sc.current.Process.Signal(sig)
}

// Wait blocks until the current run exits and returns its error.
func (sc *Subcmd) Wait() error {
	sc.mu.Lock()
	exited := sc.exited
	sc.mu.Unlock()
	if exited == nil {
		return errors.New("not started")
	}
	<-exited
	return sc.Error()
}

// Error is the result of the last run.
func (sc *Subcmd) Error() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastErr
}

// ExitStatus is the exit code of the last run.
func (sc *Subcmd) ExitStatus() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastStatus
}

// kill signals the whole process group and returns the channel closed when
// the process is reaped, or nil when nothing is running.
func (sc *Subcmd) kill(sig syscall.Signal) chan struct{} {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.current == nil || sc.current.Process == nil {
		return nil
	}
	syscall.Kill(-sc.current.Process.Pid, sig)
	return sc.exited
}

func (sc *Subcmd) setStatus(s Status) {
	sc.mu.Lock()
	if sc.status == s {
		sc.mu.Unlock()
		return
	}
	sc.status = s
	sc.mu.Unlock()

	sc.obsMu.Lock()
	defer sc.obsMu.Unlock()
	for _, cb := range sc.observers {
		cb(sc, s)
	}
}

func (sc *Subcmd) start() error {
	sc.setStatus(StatusStarting)

	cmd := &exec.Cmd{
		Path:        sc.Path,
		Args:        sc.Args,
		Env:         sc.Env,
		Dir:         sc.Dir,
		SysProcAttr: &syscall.SysProcAttr{Setpgid: true},
	}

	if sc.Setup != nil {
		if err := sc.Setup(cmd); err != nil {
			sc.setStatus(StatusStopped)
			return err
		}
	}

	if err := cmd.Start(); err != nil {
		sc.setStatus(StatusStopped)
		return err
	}

	exited := make(chan struct{})
	sc.mu.Lock()
	sc.current = cmd
	sc.exited = exited
	sc.mu.Unlock()

	sc.setStatus(StatusStarted)

	go func() {
		err := cmd.Wait()

		sc.mu.Lock()
		sc.lastErr = err
		sc.lastStatus = exitStatus(err)
		sc.current = nil
		stopped := sc.status == StatusStopped
		restart := !stopped && err == nil &&
			(sc.MaxRestarts < 0 || sc.restarts < sc.MaxRestarts)
		if restart {
			sc.restarts++
		}
		sc.mu.Unlock()

		if !stopped {
			sc.setStatus(StatusExited)
		}
		close(exited)

		if restart {
			if err := sc.start(); err != nil {
				sc.mu.Lock()
				sc.lastErr = err
				sc.mu.Unlock()
			}
		}
	}()

	return nil
}

func exitStatus(err error) int {
	if exiterr, ok := err.(*exec.ExitError); ok {
		// WaitStatus is defined for both Unix and Windows and in both cases
		// has an ExitStatus() method with the same signature.
		if status, ok := exiterr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
	}
	return 0
}
