package daemon

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/relay/internal/api"
	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/config"
	"github.com/matheus3301/relay/internal/contact"
	"github.com/matheus3301/relay/internal/delivery"
	"github.com/matheus3301/relay/internal/lock"
	"github.com/matheus3301/relay/internal/logging"
	"github.com/matheus3301/relay/internal/notify"
	"github.com/matheus3301/relay/internal/status"
	"github.com/matheus3301/relay/internal/store"
	"github.com/matheus3301/relay/internal/user"
)

// Params holds command-line overrides passed to the fx module. Empty fields
// keep the value from the config file.
type Params struct {
	ConfigPath string // empty = config.DefaultPath()
	DataDir    string
	HTTPAddr   string
	SocketPath string
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideDirectory,
			provideContactService,
			provideTransport,
			provideDispatcher,
			providePipeline,
			provideWorker,
			provideSweeper,
			provideRouter,
			NewHTTPServer,
			NewControlServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Resolve(path)
	if err != nil {
		return nil, err
	}
	if p.DataDir != "" {
		cfg.DataDir = p.DataDir
	}
	if p.HTTPAddr != "" {
		cfg.HTTP.Addr = p.HTTPAddr
	}
	if p.SocketPath != "" {
		cfg.Control.Socket = p.SocketPath
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath(), cfg.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("data_dir", cfg.DataDir))
	l, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired", zap.String("path", l.Path()))
	return l, nil
}

// provideStore takes the lock so the database is only opened by its owner.
func provideStore(cfg *config.Config, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*store.DB, error) {
	dbPath := cfg.DBPath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db.WithFeed(b), nil
}

func provideDirectory(db *store.DB) *user.Directory {
	return user.NewDirectory(db)
}

func provideContactService(dir *user.Directory, logger *zap.Logger) *contact.Service {
	return contact.NewService(dir, logger.With(zap.String("component", "contacts")))
}

func provideTransport(cfg *config.Config, logger *zap.Logger) (notify.Transport, error) {
	switch cfg.Push.Transport {
	case config.TransportFCM:
		t, err := notify.NewFCMTransport(context.Background(), notify.FCMConfig{
			ProjectID:       cfg.Push.ProjectID,
			CredentialsFile: cfg.Push.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("push transport ready", zap.String("transport", config.TransportFCM))
		return t, nil
	default:
		logger.Info("push transport ready", zap.String("transport", config.TransportLog))
		return notify.NewLogTransport(logger.With(zap.String("component", "push"))), nil
	}
}

func provideDispatcher(t notify.Transport, logger *zap.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(t, logger.With(zap.String("component", "dispatcher")))
}

func providePipeline(cfg *config.Config, db *store.DB, dir *user.Directory, d *notify.Dispatcher, logger *zap.Logger) *delivery.Pipeline {
	var opts []delivery.Option
	if cfg.Delivery.DedupeNotifications {
		opts = append(opts, delivery.WithLedger(db))
	}
	return delivery.NewPipeline(db, dir, d, logger.With(zap.String("component", "pipeline")), opts...)
}

func provideWorker(cfg *config.Config, b *bus.Bus, p *delivery.Pipeline, logger *zap.Logger) *delivery.Worker {
	return delivery.NewWorker(b, p, logger.With(zap.String("component", "delivery")), delivery.WorkerConfig{
		Workers: cfg.Delivery.Workers,
		Buffer:  cfg.Delivery.Buffer,
	})
}

func provideSweeper(cfg *config.Config, db *store.DB, p *delivery.Pipeline, logger *zap.Logger) *delivery.Sweeper {
	return delivery.NewSweeper(db, p, logger.With(zap.String("component", "sweeper")), delivery.SweeperConfig{
		Interval:    cfg.Delivery.SweepInterval,
		Grace:       cfg.Delivery.SweepGrace,
		Batch:       cfg.Delivery.SweepBatch,
		MaxAttempts: cfg.Delivery.SweepMaxAttempts,
	})
}

func provideRouter(db *store.DB, dir *user.Directory, svc *contact.Service, logger *zap.Logger) *echo.Echo {
	return api.NewRouter(logger.With(zap.String("component", "http")),
		api.NewPingHandler(),
		api.NewContactsHandler(svc, logger),
		api.NewMessagesHandler(db, logger),
		api.NewUsersHandler(dir),
	)
}

func registerLifecycle(
	lc fx.Lifecycle,
	httpSrv *HTTPServer,
	ctrl *ControlServer,
	worker *delivery.Worker,
	sweeper *delivery.Sweeper,
	machine *status.Machine,
	db *store.DB,
	lk *lock.Lock,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start delivery worker (subscribes to doc.* bus events).
			worker.Start(context.Background())
			sweeper.Start(context.Background())

			ctrl.Watch(machine)
			go func() {
				if err := ctrl.Start(); err != nil {
					logger.Error("control server error", zap.Error(err))
				}
			}()

			go func() {
				if err := httpSrv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
					_ = machine.Transition(status.Error)
				}
			}()

			if err := machine.Transition(status.Serving); err != nil {
				return err
			}
			logger.Info("relayd serving",
				zap.String("http", httpSrv.Addr()),
				zap.String("control", ctrl.SocketPath()),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Draining)
			if err := httpSrv.Stop(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			sweeper.Stop()
			worker.Stop()
			stats := worker.Stats()
			logger.Info("delivery worker stopped",
				zap.Uint64("processed", stats.Processed),
				zap.Uint64("failed", stats.Failed),
			)
			_ = machine.Transition(status.Stopped)
			ctrl.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
