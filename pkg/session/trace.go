package session

import (
	"context"
	"io"

	"github.com/manifold/lsptrace/pkg/binlog"
	"github.com/manifold/lsptrace/pkg/misc/logging"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Trace records the language server's stdio traffic to a binary log.
type Trace struct {
	Config *Config
	Fs     afero.Fs
	Log    logging.Logger

	writer *binlog.Writer
}

func (t *Trace) InitializeDaemon() (err error) {
	if t.Config.TracePath == "" {
		return nil
	}
	if t.Fs == nil {
		t.Fs = afero.NewOsFs()
	}
	if t.writer, err = binlog.Create(t.Fs, t.Config.TracePath); err != nil {
		return err
	}
	logging.Info(t.Log, "[trace] writing", t.Config.TracePath)
	return nil
}

func (t *Trace) Serve(ctx context.Context) {
	<-ctx.Done()
}

func (t *Trace) TerminateDaemon() error {
	if t.writer == nil {
		return nil
	}
	closeErr := t.writer.Close()
	if err := t.writer.Err(); err != nil {
		return errors.Wrapf(err, "trace %s incomplete", t.Config.TracePath)
	}
	return closeErr
}

// Reader taps r as the server's output. Without a log r is returned as is.
func (t *Trace) Reader(r io.Reader) io.Reader {
	if t == nil || t.writer == nil {
		return r
	}
	return t.writer.TapReader(r, binlog.Incoming)
}

// Writer taps w as the server's input. Without a log w is returned as is.
func (t *Trace) Writer(w io.Writer) io.Writer {
	if t == nil || t.writer == nil {
		return w
	}
	return t.writer.TapWriter(w, binlog.Outgoing)
}
