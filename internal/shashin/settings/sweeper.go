package settings

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper evicts idle sessions from a Store on a periodic timer.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
	onSweep  func(removed int)

	stopMu sync.Mutex
	stopCh chan struct{}
}

// NewSweeper creates a sweeper for store. If interval is zero, it defaults
// to one minute. If logger is nil, the default slog logger is used.
func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// OnSweep registers a callback invoked after every sweep with the number of
// evicted sessions.
func (w *Sweeper) OnSweep(fn func(removed int)) {
	w.onSweep = fn
}

// Run starts the sweep loop. It blocks until ctx is cancelled or Stop is
// called.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case now := <-ticker.C:
			w.sweep(now)
		}
	}
}

func (w *Sweeper) sweep(now time.Time) {
	removed := w.store.Sweep(now)
	if removed > 0 {
		w.logger.Debug("session sweeper: evicted idle sessions", "count", removed, "remaining", w.store.Len())
	}
	if w.onSweep != nil {
		w.onSweep(removed)
	}
}

// Stop signals the sweeper to stop. Safe to call multiple times.
func (w *Sweeper) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()

	select {
	case <-w.stopCh:
		// Already closed.
	default:
		close(w.stopCh)
	}
}
