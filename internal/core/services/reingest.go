package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/core/ports/driving"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// DefaultDebounce is the quiet period after the last corpus change before
// ingestion runs again.
const DefaultDebounce = 2 * time.Second

// CorpusSync re-runs ingestion whenever the corpus directory changes.
// Bursts of changes within the debounce window trigger a single run.
type CorpusSync struct {
	watcher   driven.CorpusWatcher
	ingester  driving.IngestService
	corpusDir string
	debounce  time.Duration
	onRun     func(*domain.IngestReport, error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewCorpusSync creates a corpus sync. A non-positive debounce uses DefaultDebounce.
func NewCorpusSync(
	watcher driven.CorpusWatcher,
	ingester driving.IngestService,
	corpusDir string,
	debounce time.Duration,
) *CorpusSync {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &CorpusSync{
		watcher:   watcher,
		ingester:  ingester,
		corpusDir: corpusDir,
		debounce:  debounce,
	}
}

// OnRun registers a callback invoked after every ingestion run.
func (s *CorpusSync) OnRun(fn func(*domain.IngestReport, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRun = fn
}

// Start watches the corpus and blocks until ctx is cancelled, Stop is
// called or the watcher's channel closes.
func (s *CorpusSync) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	changes, err := s.watcher.Watch(ctx)
	if err != nil {
		return err
	}
	return s.run(ctx, changes, stopCh)
}

// Stop ends a running Start.
func (s *CorpusSync) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	return nil
}

func (s *CorpusSync) run(ctx context.Context, changes <-chan domain.CorpusChange, stopCh <-chan struct{}) error {
	timer := time.NewTimer(s.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			logger.Debug("Corpus %s: %s", change.Type, change.Path)
			pending++
			timer.Reset(s.debounce)
		case <-timer.C:
			logger.Info("Re-ingesting %s after %d change(s)", s.corpusDir, pending)
			pending = 0
			report, err := s.ingester.Ingest(ctx, s.corpusDir)
			if err != nil {
				logger.Error("Re-ingest failed: %v", err)
			} else if len(report.Removed) > 0 {
				logger.Info("Dropped %d removed file(s) from the index", len(report.Removed))
			}
			s.mu.Lock()
			onRun := s.onRun
			s.mu.Unlock()
			if onRun != nil {
				onRun(report, err)
			}
		}
	}
}
