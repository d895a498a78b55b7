package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/db4dd/db4dd/pkg/service/source"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultDebounce is how long a file must stay quiet before it is reported
const DefaultDebounce = 2 * time.Second

// Watcher reports meeting text files that were created or modified in a directory.
// Bursts of writes to one file are collapsed into a single report.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

func New(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create file watcher")
	}
	w := &Watcher{fs: fw, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch emits the path of every settled text file under dir, including subdirectories
// created later, until ctx is done. The returned channel is closed when watching stops.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.addTree(dir); err != nil {
		return nil, err
	}

	out := make(chan string, 64)
	ready := make(chan string, 64)

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}
	stopTimers := func() {
		mu.Lock()
		defer mu.Unlock()
		for path, t := range timers {
			t.Stop()
			delete(timers, path)
		}
	}

	go func() {
		defer close(out)
		defer stopTimers()
		logger := logging.From(ctx)

		for {
			select {
			case <-ctx.Done():
				return

			case path := <-ready:
				select {
				case out <- path:
				case <-ctx.Done():
					return
				}

			case event, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) && isVisibleDir(event.Name) {
					// files may land in the new directory before it is watched
					if err := w.addTree(event.Name); err != nil {
						logger.Warn("failed to watch new directory", "error", err.Error(), "dir", event.Name)
						continue
					}
					files, err := source.Find(event.Name)
					if err != nil {
						logger.Warn("failed to list new directory", "error", err.Error(), "dir", event.Name)
						continue
					}
					for _, path := range files {
						schedule(path)
					}
					continue
				}
				if !source.IsText(event.Name) {
					continue
				}
				if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
					schedule(event.Name)
				}

			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", "error", err.Error(), "dir", dir)
			}
		}
	}()

	return out, nil
}

// addTree watches root and the directories below it
func (w *Watcher) addTree(root string) error {
	dirs, err := source.Dirs(root)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		// root is a single file
		dirs = []string{root}
	}
	for _, d := range dirs {
		if err := w.fs.Add(d); err != nil {
			return goerr.Wrap(err, "failed to watch directory", goerr.V("dir", d))
		}
	}
	return nil
}

func isVisibleDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) Close() error {
	if err := w.fs.Close(); err != nil {
		return goerr.Wrap(err, "failed to close file watcher")
	}
	return nil
}
