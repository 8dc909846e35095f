package opengl

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"ssr-engine/core"
)

// ShaderWatcher flags when anything under the shader directory changes. It
// never touches GL; the render loop polls TakePending and only then asks the
// cache to compare modification times.
type ShaderWatcher struct {
	watcher *fsnotify.Watcher
	pending atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewShaderWatcher watches dir and its subdirectories. The first
// TakePending always reports true so the initial load happens.
func NewShaderWatcher(dir string) (*ShaderWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}

	sw := &ShaderWatcher{watcher: w, done: make(chan struct{})}
	sw.pending.Store(true)
	sw.wg.Add(1)
	go sw.run()
	return sw, nil
}

func (sw *ShaderWatcher) run() {
	defer sw.wg.Done()
	for {
		select {
		case <-sw.done:
			return
		case ev, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = sw.watcher.Add(ev.Name)
				}
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
				ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
				sw.pending.Store(true)
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			core.Logger().Warn("shader watcher", "err", err)
			// Events may have been dropped.
			sw.pending.Store(true)
		}
	}
}

// TakePending reports whether a change was seen since the last call and
// clears the flag.
func (sw *ShaderWatcher) TakePending() bool {
	return sw.pending.Swap(false)
}

// Close stops the watcher goroutine. It is safe to call more than once.
func (sw *ShaderWatcher) Close() error {
	select {
	case <-sw.done:
		return nil
	default:
	}
	close(sw.done)
	err := sw.watcher.Close()
	sw.wg.Wait()
	return err
}
