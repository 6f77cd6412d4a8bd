package autosync

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"bookarr/internal/catalog"
	"bookarr/internal/config"
	"bookarr/internal/logging"
	"bookarr/internal/notifications"
	"bookarr/internal/reconcile"
	"bookarr/internal/services"

	"github.com/google/uuid"
)

// tickInterval is how often the loop wakes to check whether a run is due.
// Runs fire relative to the previous run's start, not on tick boundaries.
const tickInterval = 30 * time.Second

// Syncer is the reconciliation surface the scheduler drives.
type Syncer interface {
	Sync(ctx context.Context, dryRun bool) (reconcile.Summary, error)
}

// Result records the outcome of one sync run.
type Result struct {
	Summary    reconcile.Summary `json:"summary"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

// State is the scheduler's externally visible state.
type State struct {
	Enabled       bool      `json:"enabled"`
	IntervalHours int       `json:"intervalHours"`
	Running       bool      `json:"running"`
	LastRun       time.Time `json:"lastRun,omitzero"`
	LastResult    *Result   `json:"lastResult,omitempty"`
}

// Scheduler triggers library syncs on a timer and on demand.
type Scheduler struct {
	store    *catalog.Store
	cfg      *config.Config
	syncer   Syncer
	notifier notifications.Service
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time

	// runLock is the process-wide sync run lock.
	runLock sync.Mutex

	mu           sync.Mutex
	enabled      bool
	interval     time.Duration
	running      bool
	lastRunStart time.Time
	lastResult   *Result

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Scheduler with the config section's defaults. Persisted
// state, when present, is applied by LoadState.
func New(store *catalog.Store, syncer Syncer, cfg *config.Config, notifier notifications.Service, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		store:    store,
		cfg:      cfg,
		syncer:   syncer,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "autosync")),
		now:      time.Now,
		enabled:  cfg.Autosync.Enabled,
		interval: time.Duration(cfg.Autosync.IntervalHours) * time.Hour,
	}
	return s
}

// LoadState applies persisted scheduler settings from the catalog. Called
// once at daemon startup, before Start.
func (s *Scheduler) LoadState(ctx context.Context) error {
	values, err := s.store.Settings(ctx, s.cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if raw, ok := values[catalog.SettingAutosyncEnabled]; ok && raw != "" {
		s.enabled = raw == "true"
	}
	if raw, ok := values[catalog.SettingAutosyncInterval]; ok && raw != "" {
		if hours, err := strconv.Atoi(raw); err == nil && config.ValidAutosyncInterval(hours) {
			s.interval = time.Duration(hours) * time.Hour
		}
	}
	return nil
}

// Start launches the tick loop. Stop cancels it.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(runCtx)
}

// Stop cancels the pending tick and waits for the loop to exit. An
// in-flight run finishes normally.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maybeRun(ctx, s.now())
		}
	}
}

// maybeRun starts a sync when the scheduler is enabled and the interval has
// elapsed since the previous run's start. Reports whether a run happened.
func (s *Scheduler) maybeRun(ctx context.Context, now time.Time) bool {
	s.mu.Lock()
	due := s.enabled && (s.lastRunStart.IsZero() || now.Sub(s.lastRunStart) >= s.interval)
	s.mu.Unlock()
	if !due {
		return false
	}

	if !s.runLock.TryLock() {
		// A manual run is in flight; the next tick reevaluates.
		return false
	}
	defer s.runLock.Unlock()
	s.run(ctx, now)
	return true
}

// SyncNow triggers a run immediately, sharing the run lock with scheduled
// ticks. A run already in flight is a conflict, not a queue.
func (s *Scheduler) SyncNow(ctx context.Context) (reconcile.Summary, error) {
	if !s.runLock.TryLock() {
		return reconcile.Summary{}, services.Wrap(services.ErrConflict, "autosync", "sync now", "sync already running", nil)
	}
	defer s.runLock.Unlock()

	result := s.run(ctx, s.now())
	if result.Error != "" {
		return result.Summary, services.Wrap(services.ErrUpstream, "autosync", "sync now", result.Error, nil)
	}
	return result.Summary, nil
}

// run executes one sync under the held run lock. Failures are recorded in
// the result, never propagated to the loop.
func (s *Scheduler) run(ctx context.Context, startedAt time.Time) Result {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)

	s.mu.Lock()
	s.lastRunStart = startedAt
	s.running = true
	s.mu.Unlock()

	s.logger.Info("sync run started", logging.String(logging.FieldRunID, runID))
	summary, err := s.syncer.Sync(ctx, false)

	result := Result{
		Summary:    summary,
		StartedAt:  startedAt,
		FinishedAt: s.now(),
	}
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn("sync run failed", logging.String(logging.FieldRunID, runID), logging.Error(err))
		if s.notifier != nil {
			s.notifier.NotifyError(ctx, err, "library sync")
		}
	} else {
		s.logger.Info("sync run finished",
			logging.String(logging.FieldRunID, runID),
			logging.Int("authors_added", summary.AuthorsAdded),
			logging.Int("books_added", summary.BooksAdded))
		if s.notifier != nil {
			s.notifier.NotifySyncCompleted(ctx, summary.AuthorsAdded, summary.BooksAdded)
		}
	}

	s.mu.Lock()
	s.running = false
	s.lastResult = &result
	s.mu.Unlock()
	return result
}

// Configure updates the schedule and persists it. Disabling halts future
// ticks immediately; an in-flight run finishes normally.
func (s *Scheduler) Configure(ctx context.Context, enabled bool, intervalHours int) (State, error) {
	if enabled && !config.ValidAutosyncInterval(intervalHours) {
		return State{}, services.Wrap(services.ErrValidation, "autosync", "configure",
			"interval must be one of "+config.AutosyncIntervalList(), nil)
	}

	s.mu.Lock()
	s.enabled = enabled
	if intervalHours > 0 && config.ValidAutosyncInterval(intervalHours) {
		s.interval = time.Duration(intervalHours) * time.Hour
	}
	intervalValue := strconv.Itoa(int(s.interval / time.Hour))
	s.mu.Unlock()

	err := s.store.UpdateSettings(ctx, s.cfg, map[string]string{
		catalog.SettingAutosyncEnabled:  strconv.FormatBool(enabled),
		catalog.SettingAutosyncInterval: intervalValue,
	})
	if err != nil {
		return State{}, err
	}
	return s.Status(), nil
}

// Status snapshots the scheduler state.
func (s *Scheduler) Status() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Enabled:       s.enabled,
		IntervalHours: int(s.interval / time.Hour),
		Running:       s.running,
		LastRun:       s.lastRunStart,
		LastResult:    s.lastResult,
	}
}
