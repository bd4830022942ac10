package recordstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchRetryDuration = time.Second

type dirWatcher struct {
	watcher  *fsnotify.Watcher
	logger   *zap.SugaredLogger
	dir      string
	names    map[string]bool
	onChange func(name string)
}

// Watch reloads collections whose files in dir are changed by something
// other than this process (an editor, a deploy script, another instance).
// onChange is called with the collection name; pass Store.Invalidate.
// Watching stops when closeCh is closed.
func Watch(dir string, names []string, logger *zap.SugaredLogger, onChange func(name string), closeCh <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	dw := &dirWatcher{
		watcher:  watcher,
		logger:   logger,
		dir:      dir,
		names:    make(map[string]bool, len(names)),
		onChange: onChange,
	}
	for _, n := range names {
		dw.names[n] = true
	}
	go dw.run(closeCh)
	return nil
}

func (dw *dirWatcher) run(closeCh <-chan struct{}) {
	retryCh := make(chan struct{}, 1)
	scheduleRetry := func() {
		time.AfterFunc(watchRetryDuration, func() {
			select {
			case retryCh <- struct{}{}:
			default:
			}
		})
	}

	watching := false
	for {
		if !watching {
			if err := dw.setup(); err != nil {
				dw.logger.Warnw("data dir watch failed, retrying", "dir", dw.dir, "error", err)
				scheduleRetry()
			} else {
				watching = true
			}
		}

		changed, quit := dw.waitForEvents(closeCh, retryCh)
		if quit {
			return
		}
		for name := range changed {
			dw.logger.Debugw("collection file changed", "collection", name)
			dw.onChange(name)
		}
	}
}

func (dw *dirWatcher) setup() error {
	realDir, err := filepath.EvalSymlinks(dw.dir)
	if err != nil {
		return fmt.Errorf("unable to evaluate symlinks for %q: %w", dw.dir, err)
	}
	if err := dw.watcher.Add(realDir); err != nil {
		return fmt.Errorf("unable to watch %q: %w", realDir, err)
	}
	return nil
}

// collectionFor maps an event path to a watched collection name.
func (dw *dirWatcher) collectionFor(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".json") || strings.HasPrefix(base, ".") {
		return "", false
	}
	name := strings.TrimSuffix(base, ".json")
	return name, dw.names[name]
}

func (dw *dirWatcher) waitForEvents(closeCh <-chan struct{}, retryCh <-chan struct{}) (map[string]bool, bool) {
	changed := map[string]bool{}
	for {
		select {
		case <-closeCh:
			if err := dw.watcher.Close(); err != nil {
				dw.logger.Errorw("error closing data dir watcher", "error", err)
			}
			return nil, true
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return nil, true
			}
			if name, ok := dw.collectionFor(event.Name); ok {
				changed[name] = true
				dw.drainEvents(changed)
				return changed, false
			}
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return nil, true
			}
			dw.logger.Errorw("data dir watcher error", "error", err)
		case <-retryCh:
			return changed, false
		}
	}
}

// drainEvents folds any burst of pending events into changed.
func (dw *dirWatcher) drainEvents(changed map[string]bool) {
	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if name, ok := dw.collectionFor(event.Name); ok {
				changed[name] = true
			}
		default:
			return
		}
	}
}
