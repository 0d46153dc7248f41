// Package ingest watches drop folders and hands settled documents to a
// processing function.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must stay unchanged before it is processed.
const DefaultSettle = 500 * time.Millisecond

// ProcessFunc ingests one document. Errors are logged; the watcher keeps going.
type ProcessFunc func(ctx context.Context, path string) error

type Watcher struct {
	Dir        string
	Extensions []string
	Settle     time.Duration
	Process    ProcessFunc
	Logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingFile
	done    map[string]time.Time
	wg      sync.WaitGroup

	// busy serialises Process: settled files are ingested one at a time.
	busy sync.Mutex
}

func New(dir string, extensions []string, process ProcessFunc) *Watcher {
	return &Watcher{Dir: dir, Extensions: extensions, Settle: DefaultSettle, Process: process}
}

// Accepts reports whether name has one of the watched extensions.
func (w *Watcher) Accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range w.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Run watches Dir until ctx is done. Files already present are not processed.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", w.Dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}
	w.mu.Lock()
	w.pending = map[string]*pendingFile{}
	if w.done == nil {
		w.done = map[string]time.Time{}
	}
	w.mu.Unlock()
	w.logger().Info("watching for documents", "dir", w.Dir, "extensions", w.Extensions)

	defer w.wg.Wait()
	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.Accepts(event.Name) {
				w.logger().Debug("ignored file", "file", event.Name, "op", event.Op.String())
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger().Error("fsnotify error", "error", err)
		}
	}
}

type pendingFile struct {
	timer *time.Timer
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	settle := w.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		p.timer.Reset(settle)
		return
	}
	p := &pendingFile{}
	w.wg.Add(1)
	p.timer = time.AfterFunc(settle, func() {
		defer w.wg.Done()
		w.fire(ctx, path, p)
	})
	w.pending[path] = p
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) fire(ctx context.Context, path string, p *pendingFile) {
	w.mu.Lock()
	if w.pending[path] == p {
		delete(w.pending, path)
	}
	w.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.mu.Lock()
	last, seen := w.done[path]
	if seen && !info.ModTime().After(last) {
		w.mu.Unlock()
		return
	}
	w.done[path] = info.ModTime()
	w.mu.Unlock()

	w.busy.Lock()
	defer w.busy.Unlock()
	if ctx.Err() != nil {
		return
	}
	w.logger().Info("processing document", "file", path)
	if err := w.Process(ctx, path); err != nil {
		w.logger().Error("process document", "file", path, "error", err)
	}
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
