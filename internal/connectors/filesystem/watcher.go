package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.CorpusWatcher = (*Watcher)(nil)

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("watcher is closed")

// Watcher reports changes to files in a corpus directory using fsnotify.
type Watcher struct {
	root string

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

// New creates a watcher for the given corpus directory.
func New(root string) *Watcher {
	return &Watcher{root: root}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Watch starts watching the root directory.
func (w *Watcher) Watch(ctx context.Context) (<-chan domain.CorpusChange, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWatcherClosed
	}

	info, err := os.Stat(w.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", w.root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(w.root); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", w.root, err)
	}
	w.watchers = append(w.watchers, fw)

	changes := make(chan domain.CorpusChange, 16)
	go w.loop(ctx, fw, changes)
	return changes, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, changes chan<- domain.CorpusChange) {
	defer close(changes)
	defer func() { _ = fw.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			change := w.handleFsEvent(event)
			if change == nil {
				continue
			}
			select {
			case changes <- *change:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logger.Warn("Corpus watcher error: %v", err)
		}
	}
}

// handleFsEvent maps an fsnotify event to a corpus change.
// Directories, hidden files and chmod-only events yield nil.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *domain.CorpusChange {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		rel = event.Name
	}
	if isHidden(rel) {
		return nil
	}

	switch {
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		return &domain.CorpusChange{Type: domain.ChangeDeleted, Path: event.Name}
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		changeType := domain.ChangeUpdated
		if event.Op.Has(fsnotify.Create) {
			changeType = domain.ChangeCreated
		}
		return &domain.CorpusChange{Type: changeType, Path: event.Name}
	default:
		return nil
	}
}

// Close stops every active watch. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	for _, fw := range w.watchers {
		if err := fw.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	w.watchers = nil
	return errors.Join(errs...)
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
