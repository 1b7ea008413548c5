// Package daemon runs a set of services through a shared lifecycle:
// initialize all, serve concurrently, terminate in reverse order.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/manifold/lsptrace/pkg/misc/logging"
	"github.com/manifold/lsptrace/pkg/registry"
	"github.com/pkg/errors"
)

// Initializer is initialized before services are started. Returning
// an error will cancel the start of daemon services; the ones already
// initialized are terminated.
type Initializer interface {
	InitializeDaemon() error
}

// Terminator is terminated when the daemon gets a stop signal.
type Terminator interface {
	TerminateDaemon() error
}

// Service is run after the daemon is initialized.
type Service interface {
	Serve(ctx context.Context)
}

const (
	stateIdle int32 = iota
	stateRunning
	stateTerminated
)

// Daemon runs the services given to it and owns their lifecycle.
type Daemon struct {
	Initializers []Initializer
	Services     []Service
	Terminators  []Terminator
	Logger       logging.Logger
	Context      context.Context

	state  int32
	cancel context.CancelFunc
	errs   chan []error
}

// New builds a daemon for services. Services are populated with each other
// and the daemon wherever they have zero fields one of them fits.
func New(services ...Service) *Daemon {
	d := &Daemon{}
	r, _ := registry.New(d)
	for _, s := range services {
		r.Register(registry.Ref(s))
	}
	r.SelfPopulate()
	return d
}

// Run initializes every Initializer, serves every Service and returns once
// all of them have returned. The first Terminator error is returned.
func (d *Daemon) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&d.state, stateIdle, stateRunning) {
		return errors.New("already running")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.Context, d.cancel = context.WithCancel(ctx)
	d.errs = make(chan []error, 1)

	if err := d.initialize(); err != nil {
		d.reset()
		return err
	}
	if len(d.Services) == 0 {
		d.reset()
		return errors.New("no services to run")
	}

	go TerminateOnSignal(d)
	go TerminateOnContextDone(d)

	var wg sync.WaitGroup
	for _, service := range d.Services {
		wg.Add(1)
		go func(s Service) {
			defer wg.Done()
			s.Serve(d.Context)
		}(service)
	}
	wg.Wait()

	if errs := <-d.errs; len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (d *Daemon) initialize() error {
	for n, i := range d.Initializers {
		logging.Debugf(d.Logger, "[daemon] initializing %T", i)
		if err := i.InitializeDaemon(); err != nil {
			d.unwind(d.Initializers[:n])
			return err
		}
	}
	return nil
}

// unwind terminates the initialized services that are also Terminators,
// in reverse order.
func (d *Daemon) unwind(initialized []Initializer) {
	for n := len(initialized) - 1; n >= 0; n-- {
		t, ok := initialized[n].(Terminator)
		if !ok {
			continue
		}
		if err := t.TerminateDaemon(); err != nil {
			logging.Error(d.Logger, "[daemon] terminate:", err)
		}
	}
}

func (d *Daemon) reset() {
	d.cancel()
	atomic.StoreInt32(&d.state, stateIdle)
}

// Terminate cancels the daemon context and calls Terminators in reverse
// order. It does not wait for services, so a service may call it from Serve.
func (d *Daemon) Terminate() {
	if d == nil || !atomic.CompareAndSwapInt32(&d.state, stateRunning, stateTerminated) {
		return
	}
	d.cancel()

	var errs []error
	for i := len(d.Terminators) - 1; i >= 0; i-- {
		t := d.Terminators[i]
		logging.Debugf(d.Logger, "[daemon] terminating %T", t)
		if err := t.TerminateDaemon(); err != nil {
			logging.Error(d.Logger, "[daemon] terminate:", err)
			errs = append(errs, err)
		}
	}
	d.errs <- errs
}

// TerminateOnSignal terminates the daemon on SIGINT, SIGTERM or SIGHUP.
func TerminateOnSignal(d *Daemon) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)
	select {
	case sig := <-sigs:
		logging.Info(d.Logger, "[daemon] got", sig)
		d.Terminate()
	case <-d.Context.Done():
	}
}

// TerminateOnContextDone terminates the daemon once its context is canceled.
func TerminateOnContextDone(d *Daemon) {
	<-d.Context.Done()
	d.Terminate()
}
