// Package watcher triggers a library file scan when video files appear
// under the library root.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/JustinTDCT/AnimeVault/internal/parser"
)

const DefaultDebounce = 5 * time.Second

// OnChange is called once per quiet period after one or more video files
// were created or moved in under root.
type OnChange func(root string)

// Watcher monitors the library tree for filesystem changes.
type Watcher struct {
	root     string
	callback OnChange
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]bool
	timer   *time.Timer
	pending []string
	stop    chan struct{}
}

// New creates a filesystem watcher for root.
func New(root string, debounce time.Duration, cb OnChange) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     filepath.Clean(root),
		callback: cb,
		debounce: debounce,
		watcher:  fw,
		watched:  make(map[string]bool),
		stop:     make(chan struct{}),
	}, nil
}

// Start adds every directory under root and begins processing events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	err := w.addRecursive(w.root)
	n := len(w.watched)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	go w.eventLoop()
	log.Info().Str("component", "watcher").Str("root", w.root).Int("dirs", n).Msg("filesystem watcher started")
	return nil
}

// Stop stops the watcher. A pending callback is dropped.
func (w *Watcher) Stop() {
	close(w.stop)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}

// addRecursive must be called with mu held.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Warn().Str("component", "watcher").Str("path", path).Err(err).Msg("cannot watch directory")
			return nil
		}
		w.watched[path] = true
		return nil
	})
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Str("component", "watcher").Err(err).Msg("watch error")
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".!qB") {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.watched, event.Name)
		w.mu.Unlock()
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		w.mu.Lock()
		if err := w.addRecursive(event.Name); err != nil {
			log.Warn().Str("component", "watcher").Str("path", event.Name).Err(err).Msg("cannot watch new directory")
		}
		w.mu.Unlock()
		// A moved-in directory may already hold episodes.
		w.schedule(event.Name)
		return
	}

	if !parser.IsVideoFile(event.Name) {
		return
	}
	w.schedule(event.Name)
}

// schedule restarts the quiet-period timer so a burst of files yields one
// callback.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, path)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	n := len(w.pending)
	w.pending = nil
	w.timer = nil
	w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}
	log.Info().Str("component", "watcher").Int("changes", n).Msg("library changed, requesting scan")
	w.callback(w.root)
}
