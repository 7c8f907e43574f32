package agent

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// walWatcher wakes the sync loop when the WAL file changes so pushes
// start promptly instead of waiting out the poll interval. It watches
// the parent directory because SQLite deletes and recreates the -wal
// file across checkpoints.
type walWatcher struct {
	fw      *fsnotify.Watcher
	walPath string
	events  chan struct{}
	done    chan struct{}
}

func newWALWatcher(walPath string) (*walWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(walPath)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &walWatcher{
		fw:      fw,
		walPath: filepath.Clean(walPath),
		events:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *walWatcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.walPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Coalesce; the loop re-reads the frame count anyway.
			select {
			case w.events <- struct{}{}:
			default:
			}
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

// C returns a channel that receives when the WAL file is written.
func (w *walWatcher) C() <-chan struct{} { return w.events }

func (w *walWatcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
