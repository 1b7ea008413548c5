package session

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/manifold/lsptrace/pkg/misc/debouncer"
	"github.com/manifold/lsptrace/pkg/misc/logging"
)

const watchDelay = 50 * time.Millisecond

// Watcher resends the open document whenever its file changes on disk.
type Watcher struct {
	Config *Config
	Server *Server
	Log    logging.Logger

	path    string
	watcher *fsnotify.Watcher
}

func (w *Watcher) InitializeDaemon() (err error) {
	if !w.Config.Watch {
		return nil
	}
	if w.path, err = filepath.Abs(w.Config.OpenPath()); err != nil {
		return err
	}
	if w.watcher, err = fsnotify.NewWatcher(); err != nil {
		return err
	}
	// the directory is watched so editors replacing the file keep it tracked
	return w.watcher.Add(filepath.Dir(w.path))
}

func (w *Watcher) Serve(ctx context.Context) {
	if w.watcher == nil {
		return
	}
	debounce := debouncer.New(watchDelay)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce(w.sync)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error(w.Log, "[watcher]", err)
		}
	}
}

func (w *Watcher) TerminateDaemon() error {
	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}

func (w *Watcher) sync() {
	client := w.Server.Client()
	doc, ok := client.Documents().Lookup(w.path)
	if !ok {
		return
	}
	changed, err := doc.Reload()
	if err != nil {
		logging.Error(w.Log, "[watcher]", err)
		return
	}
	if !changed {
		return
	}
	logging.Debug(w.Log, "[watcher] sending version", doc.Version())
	if err := client.SendChange(doc); err != nil {
		logging.Error(w.Log, "[watcher]", err)
	}
}
