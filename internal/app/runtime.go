package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/skobkin/simlink/internal/acquisition"
	"github.com/skobkin/simlink/internal/bus"
	"github.com/skobkin/simlink/internal/config"
	"github.com/skobkin/simlink/internal/connectors"
	"github.com/skobkin/simlink/internal/domain"
	"github.com/skobkin/simlink/internal/logging"
	"github.com/skobkin/simlink/internal/notifications"
	"github.com/skobkin/simlink/internal/persistence"
	"github.com/skobkin/simlink/internal/platform"
)

const (
	writerQueueCapacity = 512
	closeFlushTimeout   = 2 * time.Second
)

// Options tweaks Initialize. The zero value resolves everything from the user
// config directory.
type Options struct {
	// Paths overrides the resolved runtime locations when RootDir is set.
	Paths Paths
	// ConfigFile overrides only the config file location.
	ConfigFile string
	// Override runs after the config file and environment are applied.
	Override func(*config.AppConfig)
	// Sender replaces the desktop notification backend.
	Sender notifications.Sender
	// Autostart replaces the platform login registration backend.
	Autostart platform.AutostartManager
	// ReleaseEndpoint replaces the forge releases API URL.
	ReleaseEndpoint string
}

// Runtime owns every long-lived component of the daemon.
type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	SessionRepo *persistence.SessionRepo
	WeatherRepo *persistence.WeatherRepo
	WriterQueue *persistence.WriterQueue

	Notifications       *NotificationService
	ConnectionTransport *SwitchableTransport
	AutostartManager    platform.AutostartManager

	acqMu       sync.Mutex
	acquisition *acquisition.Service

	scheduler         *gocron.Scheduler
	maintenanceCancel context.CancelFunc
	releaseEndpoint   string

	connStatusMu sync.RWMutex
	connStatus   connectors.ConnectionStatus
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths := opts.Paths
	if paths.RootDir == "" {
		resolved, err := ResolvePaths()
		if err != nil {
			return nil, err
		}
		paths = resolved
	}
	paths = paths.WithConfigFile(opts.ConfigFile)

	cfg, err := loadConfig(paths, opts.Override)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:        ctx,
		cancel:     cancel,
		Paths:      paths,
		Config:     cfg,
		connStatus: ConnectionStatusFromConfig(cfg),

		releaseEndpoint: opts.ReleaseEndpoint,
	}
	rt.AutostartManager = opts.Autostart
	if rt.AutostartManager == nil {
		rt.AutostartManager = platform.NewAutostartManager()
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()

		return nil, fmt.Errorf("configure logging: %w", err)
	}
	logMgr.SetVerbose(cfg.Acquisition.Verbose)
	rt.LogManager = logMgr
	slog.Info("starting simlink runtime", "version", BuildVersion(), "revision", BuildRevision(), "build_date", BuildDateYMD())
	if err := rt.syncAutostart(cfg, "startup"); err != nil {
		slog.Warn("sync autostart on startup", "error", err)
	}

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()

		return nil, err
	}
	rt.DB = db
	if pruned, err := persistence.PruneSessions(ctx, db, KeepSessions); err != nil {
		slog.Warn("prune replay sessions", "error", err)
	} else if pruned > 0 {
		slog.Info("pruned replay sessions", "count", pruned)
	}

	rt.SessionRepo = persistence.NewSessionRepo(db)
	rt.WeatherRepo = persistence.NewWeatherRepo(db)

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	connSub := b.Subscribe(connectors.TopicConnStatus)
	go bus.Dispatch(ctx, b, connSub, func(raw any) {
		if status, ok := raw.(connectors.ConnectionStatus); ok {
			rt.setConnStatus(status)
		}
	})

	writerQueue := persistence.NewWriterQueue(logMgr.Logger("persistence"), writerQueueCapacity)
	writerQueue.Start(ctx)
	rt.WriterQueue = writerQueue
	persistence.StartProjection(ctx, b, writerQueue, rt.SessionRepo, rt.WeatherRepo)

	sender := opts.Sender
	if sender == nil {
		sender = notifications.NewDesktopSender(logMgr.Logger("notifications"), Name, nil)
	}
	rt.Notifications = NewNotificationService(b, rt.CurrentConfig, sender, logMgr.Logger("app.notifications"))
	rt.Notifications.Start(ctx)

	connTransport, err := NewConnectionTransport(cfg.Connection)
	if err != nil {
		_ = rt.Close()

		return nil, fmt.Errorf("initialize transport: %w", err)
	}
	rt.ConnectionTransport = connTransport
	rt.acquisition = rt.newAcquisition(cfg)

	return rt, nil
}

func loadConfig(paths Paths, override func(*config.AppConfig)) (config.AppConfig, error) {
	if err := config.LoadEnvFile(paths.EnvFile); err != nil {
		return config.AppConfig{}, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return config.AppConfig{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.AppConfig{}, err
	}
	if override != nil {
		override(&cfg)
	}
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return config.AppConfig{}, err
	}

	return cfg, nil
}

func (r *Runtime) newAcquisition(cfg config.AppConfig) *acquisition.Service {
	adapter := NewAdapter(nil, cfg.Connection, r.ConnectionTransport)

	return acquisition.New(nil, r.Bus, adapter, acquisitionOptions(cfg))
}

func acquisitionOptions(cfg config.AppConfig) acquisition.Options {
	return acquisition.Options{
		UpdateRate:     cfg.Acquisition.UpdateRate(),
		ReconnectRate:  cfg.Acquisition.ReconnectRate(),
		SearchRadiusKm: cfg.Acquisition.SearchRadiusKm,
		RecordPath:     cfg.Acquisition.RecordPath,
		ReplayPath:     cfg.Acquisition.ReplayPath,
		ReplaySpeed:    cfg.Acquisition.ReplaySpeed,
		Verbose:        cfg.Acquisition.Verbose,
		Source:         SourceNameFromConnector(cfg.Connection.Connector),
		Target:         ConnectionTarget(cfg.Connection),
	}
}

// Acquisition returns the current worker. It is replaced when the connection
// or file settings change.
func (r *Runtime) Acquisition() *acquisition.Service {
	r.acqMu.Lock()
	defer r.acqMu.Unlock()

	return r.acquisition
}

func (r *Runtime) StartAcquisition() bool {
	return r.Acquisition().Start(r.Ctx)
}

func (r *Runtime) StopAcquisition() bool {
	return r.Acquisition().Stop()
}

func (r *Runtime) SubmitWeatherRequest(req domain.WeatherRequest) {
	r.Acquisition().SubmitWeatherRequest(req)
}

func (r *Runtime) CurrentConfig() config.AppConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.Config
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() connectors.ConnectionStatus {
	r.connStatusMu.RLock()
	defer r.connStatusMu.RUnlock()

	return r.connStatus
}

// SaveAndApplyConfig persists cfg and applies it. Rate and speed changes are
// pushed into the running worker; connection or file changes rebuild it and
// restart it when it was running.
func (r *Runtime) SaveAndApplyConfig(cfg config.AppConfig) error {
	cfg.FillMissingDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	prev := r.Config
	if err := config.Save(r.Paths.ConfigFile, cfg); err != nil {
		r.mu.Unlock()

		return err
	}
	r.Config = cfg
	r.mu.Unlock()

	if err := r.LogManager.Configure(cfg.Logging, r.Paths.LogFile); err != nil {
		return err
	}
	r.LogManager.SetVerbose(cfg.Acquisition.Verbose)

	var autostartErr error
	if prev.Autostart != cfg.Autostart {
		if err := r.syncAutostart(cfg, "settings_save"); err != nil {
			slog.Warn("sync autostart after save", "error", err)
			autostartErr = &AutostartSyncWarning{Err: err}
		}
	}

	if prev.Connection == cfg.Connection && onlyTunablesChanged(prev.Acquisition, cfg.Acquisition) {
		svc := r.Acquisition()
		svc.SetUpdateRate(cfg.Acquisition.UpdateRate())
		svc.SetReconnectRate(cfg.Acquisition.ReconnectRate())
		svc.SetReplaySpeed(cfg.Acquisition.ReplaySpeed)

		return autostartErr
	}
	if err := r.rebuildAcquisition(cfg); err != nil {
		return err
	}

	return autostartErr
}

func (r *Runtime) rebuildAcquisition(cfg config.AppConfig) error {
	r.acqMu.Lock()
	defer r.acqMu.Unlock()

	wasRunning := r.acquisition.IsRunning()
	if wasRunning {
		r.acquisition.Stop()
	}
	if err := r.ConnectionTransport.Apply(cfg.Connection); err != nil {
		return fmt.Errorf("apply connection: %w", err)
	}
	r.acquisition = r.newAcquisition(cfg)
	r.setConnStatus(ConnectionStatusFromConfig(cfg))
	if wasRunning {
		r.acquisition.Start(r.Ctx)
	}

	return nil
}

func onlyTunablesChanged(prev, next config.AcquisitionConfig) bool {
	prev.UpdateRateMs, next.UpdateRateMs = 0, 0
	prev.ReconnectRateSec, next.ReconnectRateSec = 0, 0
	prev.ReplaySpeed, next.ReplaySpeed = 0, 0

	return prev == next
}

func (r *Runtime) RecentSessions(ctx context.Context, limit int) ([]domain.ReplaySession, error) {
	if r.SessionRepo == nil {
		return nil, persistence.ErrNoDatabase
	}

	return r.SessionRepo.ListRecent(ctx, limit)
}

func (r *Runtime) LatestWeather(ctx context.Context, station string) (domain.WeatherReport, bool, error) {
	if r.WeatherRepo == nil {
		return domain.WeatherReport{}, false, persistence.ErrNoDatabase
	}

	return r.WeatherRepo.Latest(ctx, station)
}

func (r *Runtime) ClearDatabase() error {
	if r.DB == nil {
		return persistence.ErrNoDatabase
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := persistence.ClearDatabase(ctx, r.DB); err != nil {
		return err
	}
	slog.Info("database cleared")

	return nil
}

// Close stops the worker, gives queued writes a moment to land and releases
// everything in reverse order of creation.
func (r *Runtime) Close() error {
	r.stopMaintenance()

	r.acqMu.Lock()
	if r.acquisition != nil && r.acquisition.IsRunning() {
		r.acquisition.Stop()
	}
	r.acqMu.Unlock()

	if r.WriterQueue != nil {
		r.flushWrites(closeFlushTimeout)
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.ConnectionTransport != nil {
		_ = r.ConnectionTransport.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}

func (r *Runtime) flushWrites(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		r.WriterQueue.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("pending database writes dropped on close", "timeout", timeout)
	}
}
