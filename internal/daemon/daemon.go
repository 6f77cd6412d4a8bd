package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"bookarr/internal/api"
	"bookarr/internal/autosync"
	"bookarr/internal/catalog"
	"bookarr/internal/config"
	"bookarr/internal/covers"
	"bookarr/internal/dispatch"
	"bookarr/internal/importer"
	"bookarr/internal/logging"
	"bookarr/internal/missing"
	"bookarr/internal/notifications"
	"bookarr/internal/reconcile"
	"bookarr/internal/services/audiobookshelf"
	"bookarr/internal/services/deluge"
	"bookarr/internal/services/itunes"
	"bookarr/internal/services/openlibrary"
	"bookarr/internal/services/torznab"
)

// Daemon coordinates the background services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *catalog.Store
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	scheduler *autosync.Scheduler
	api       *apiServer

	// mu guards the service set, which is rebuilt when runtime settings
	// change.
	mu           sync.Mutex
	library      *audiobookshelf.Client
	bibliography *openlibrary.Client
	transfers    *deluge.Client
	engine       *reconcile.Engine
	detector     *missing.Detector
	dispatcher   *dispatch.Dispatcher
	importer     *importer.Importer
	delugeLabel  string

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// engineProxy lets the scheduler keep driving the current engine across
// settings-triggered rebuilds.
type engineProxy struct {
	daemon *Daemon
}

func (p engineProxy) Sync(ctx context.Context, dryRun bool) (reconcile.Summary, error) {
	return p.daemon.Engine().Sync(ctx, dryRun)
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "bookarr.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.scheduler = autosync.New(store, engineProxy{daemon: d}, cfg, d.notifier, logger)
	return d, nil
}

// Start acquires the daemon lock, builds the service set from config plus
// persisted settings, and launches the scheduler and import poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another bookarr instance is already running")
	}

	if err := d.store.EnsureSettingDefaults(ctx, d.cfg); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("seed settings: %w", err)
	}
	if err := d.rebuildServices(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if err := d.scheduler.LoadState(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("load autosync state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.scheduler.Start(runCtx)
	go d.importLoop(runCtx)

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil && srv != nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		cancel()
		d.scheduler.Stop()
		<-d.done
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}
	d.api = srv

	d.running.Store(true)
	d.logger.Info("bookarr daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background processing and releases the daemon lock. In-flight
// work finishes before Stop returns.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.api = nil
	d.scheduler.Stop()
	<-d.done
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("bookarr daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

func (d *Daemon) importLoop(ctx context.Context) {
	defer close(d.done)

	interval := time.Duration(d.cfg.Workflow.ImportPollInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Importer().CheckAndImport(ctx); err != nil {
				d.logger.Warn("import poll failed", logging.Error(err))
			}
		}
	}
}

// rebuildServices constructs the external clients and domain services from
// the TOML config overlaid with persisted runtime settings.
func (d *Daemon) rebuildServices(ctx context.Context) error {
	eff, err := d.effectiveConfig(ctx)
	if err != nil {
		return err
	}

	library := audiobookshelf.NewFromConfig(eff)
	bibliography := openlibrary.NewFromConfig(eff)
	candidates := itunes.NewFromConfig(eff)
	indexer := torznab.NewFromConfig(eff)
	transfers := deluge.NewFromConfig(eff)
	coverCache := covers.NewCacheFromConfig(eff)
	coverCache.Authorize = libraryAuthorizer(eff.Audiobookshelf.BaseURL, eff.Audiobookshelf.APIKey)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.library = library
	d.bibliography = bibliography
	d.transfers = transfers
	d.delugeLabel = eff.Deluge.Label
	d.engine = reconcile.New(d.store, library, coverCache, d.logger)
	d.detector = missing.New(d.store, bibliography, candidates, d.logger)
	d.dispatcher = dispatch.New(d.store, indexer, transfers, dispatch.PolicyFromConfig(eff), eff.Deluge.Label, d.notifier, d.logger)
	d.importer = importer.New(d.store, transfers, library, eff, d.notifier, d.logger)
	return nil
}

// libraryAuthorizer returns a request decorator that attaches the
// Audiobookshelf bearer token to cover fetches aimed at the library server.
// Requests to any other host, such as bibliography cover URLs, are left
// untouched so the token never travels off-server.
func libraryAuthorizer(baseURL, apiKey string) func(*http.Request) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" || apiKey == "" {
		return nil
	}
	return func(req *http.Request) {
		if strings.HasPrefix(req.URL.String(), base) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
	}
}

// effectiveConfig overlays persisted settings on a copy of the TOML config.
func (d *Daemon) effectiveConfig(ctx context.Context) (*config.Config, error) {
	values, err := d.store.Settings(ctx, d.cfg)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	eff := *d.cfg
	if v := values[catalog.SettingDelugeHost]; v != "" {
		eff.Deluge.Host = v
	}
	if v := values[catalog.SettingDelugePort]; v != "" {
		if port, convErr := strconv.Atoi(v); convErr == nil && port > 0 {
			eff.Deluge.Port = port
		}
	}
	if v := values[catalog.SettingDelugePassword]; v != "" {
		eff.Deluge.Password = v
	}
	if v := values[catalog.SettingDelugeURL]; v != "" {
		eff.Deluge.URL = v
	}
	if v := values[catalog.SettingDelugeLabel]; v != "" {
		eff.Deluge.Label = v
	}
	if v := values[catalog.SettingIndexerURL]; v != "" {
		eff.Indexer.URL = v
	}
	if v := values[catalog.SettingIndexerAPIKey]; v != "" {
		eff.Indexer.APIKey = v
	}
	if v := values[catalog.SettingABSBaseURL]; v != "" {
		eff.Audiobookshelf.BaseURL = v
	}
	if v := values[catalog.SettingABSAPIKey]; v != "" {
		eff.Audiobookshelf.APIKey = v
	}
	return &eff, nil
}

// Engine returns the current reconciliation engine.
func (d *Daemon) Engine() *reconcile.Engine {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine
}

// Detector returns the current missing-work detector.
func (d *Daemon) Detector() *missing.Detector {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detector
}

// Dispatcher returns the current download dispatcher.
func (d *Daemon) Dispatcher() *dispatch.Dispatcher {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatcher
}

// Importer returns the current import reconciler.
func (d *Daemon) Importer() *importer.Importer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.importer
}

// Bibliography returns the current bibliography provider client.
func (d *Daemon) Bibliography() *openlibrary.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bibliography
}

// Scheduler returns the autosync scheduler.
func (d *Daemon) Scheduler() *autosync.Scheduler {
	return d.scheduler
}

// Store returns the catalog store.
func (d *Daemon) Store() *catalog.Store {
	return d.store
}

// APIAddr returns the bound API listen address, or empty when the API
// server is disabled or not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// AddMagnet submits a raw magnet link to the download client.
func (d *Daemon) AddMagnet(ctx context.Context, magnetURL, label string) (string, string, error) {
	d.mu.Lock()
	transfers := d.transfers
	if label == "" {
		label = d.delugeLabel
	}
	d.mu.Unlock()

	transferID, err := transfers.AddMagnet(ctx, magnetURL, label)
	if err != nil {
		return "", "", err
	}
	d.logger.Info("magnet queued", logging.String("transfer_id", transferID), logging.String("label", label))
	return transferID, label, nil
}

// UpdateSettings persists the provided settings and rebuilds the service set
// so the new values take effect without a restart.
func (d *Daemon) UpdateSettings(ctx context.Context, partial map[string]string) error {
	if err := d.store.UpdateSettings(ctx, d.cfg, partial); err != nil {
		return err
	}
	if err := d.rebuildServices(ctx); err != nil {
		return err
	}
	// Autosync keys flow through the scheduler's own state.
	return d.scheduler.LoadState(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	stats, err := d.store.JobStats(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		JobCounts:    api.FromJobStats(stats),
		Autosync:     d.scheduler.Status(),
	}, nil
}
