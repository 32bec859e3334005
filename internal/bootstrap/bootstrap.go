// Package bootstrap assembles the console from configuration: the storage
// driver, session storage, event bus, services and the checkout sweeper.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dormdesk/internal/api"
	"dormdesk/internal/auth"
	"dormdesk/internal/config"
	"dormdesk/internal/domain"
	"dormdesk/internal/events"
	"dormdesk/internal/logging"
	"dormdesk/internal/metrics"
	"dormdesk/internal/repository"
	"dormdesk/internal/service"
	"dormdesk/internal/store"
	"dormdesk/internal/store/baas"
	"dormdesk/internal/store/mongodb"
	"dormdesk/internal/store/sqlite"
	"dormdesk/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds every long-lived component of a running console.
type App struct {
	Config *config.Config

	Docs       store.Documents
	Files      store.Files
	FileReader store.FileReader
	Events     *events.EventBus
	Sessions   domain.SessionRepository
	Locker     domain.Locker

	Auth       *auth.Service
	Rooms      *service.RoomService
	Compliance *service.ComplianceService
	Catalog    *service.CatalogService
	Checkout   *service.CheckoutService
	Users      *service.UserService
	Dashboard  *service.DashboardService
	Sweeper    *worker.CheckoutSweeper
	// Backups is set only for the sqlite driver.
	Backups    *sqlite.BackupService

	redis   *redis.Client
	pingers []func(ctx context.Context) error
	closers []func() error
	logger  *zerolog.Logger
}

// backend is what a storage driver contributes to the app.
type backend struct {
	docs       store.Documents
	files      store.Files
	reader     store.FileReader
	accounts   store.Accounts
	identities domain.IdentityProvisioner
	backups    *sqlite.BackupService
	ping       func(ctx context.Context) error
	close      func() error
}

// Build wires the app. Callers must Close it.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	app := &App{Config: cfg, logger: logger}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if be.close != nil {
		app.closers = append(app.closers, be.close)
	}
	if be.ping != nil {
		app.pingers = append(app.pingers, be.ping)
	}

	app.Docs = store.Instrument(be.docs, metrics.ObserveStore)
	app.Files = be.files
	app.FileReader = be.reader
	app.Backups = be.backups

	accounts, identities := be.accounts, be.identities
	if accounts == nil {
		accounts = auth.NewLocalAccounts(app.Docs, cfg.Collections.Credentials, cfg.API.Auth.SessionTTL)
	}
	if identities == nil {
		identities = auth.NewLocalProvisioner(app.Docs, cfg.Collections.Credentials, 0)
	}

	app.initSessions(ctx)

	app.Events = events.NewEventBus()
	events.AuditLog(app.Events, logger, metrics.IncEvent)

	cols, buckets := cfg.Collections, cfg.Buckets
	app.Rooms = service.NewRoomService(app.Docs, cols, app.Events, logger)
	app.Compliance = service.NewComplianceService(app.Docs, app.Files, cols, buckets, app.Events, logger)
	app.Catalog = service.NewCatalogService(app.Docs, app.Files, cols, buckets, app.Events, logger)
	app.Checkout = service.NewCheckoutService(app.Docs, cols, app.Events, logger)
	app.Users = service.NewUserService(app.Docs, identities, cols, app.Events, logger)
	app.Dashboard = service.NewDashboardService(app.Docs, cols, cfg.Dashboard, logger)

	tokens := auth.NewTokenService(cfg.API.Auth.JWTSecret, cfg.API.Auth.SessionTTL)
	app.Auth = auth.NewService(accounts, app.Users, app.Sessions, tokens, app.Events, logger)

	app.Sweeper = worker.NewCheckoutSweeper(app.Checkout, app.Locker, cfg.Checkout.SweepInterval, worker.DefaultRetryPolicy, logging.Component(logger, "checkout-sweeper"))
	app.Sweeper.OnCompleted(metrics.AddCheckoutAutoCompleted)

	logger.Info().
		Str("driver", cfg.Store.Driver).
		Bool("redis", app.redis != nil).
		Msg("console assembled")
	return app, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverBaaS:
		client := baas.NewClient(cfg.BaaS, logger)
		return &backend{
			docs:       client,
			files:      client,
			accounts:   client,
			identities: service.NewFunctionProvisioner(client, cfg.Functions.CreateUser, cfg.Functions.ManageUser),
			ping:       client.Ping,
		}, nil

	case config.DriverMongo:
		client, err := mongodb.Connect(ctx, cfg.Store.Mongo.URI)
		if err != nil {
			return nil, err
		}
		st := mongodb.New(client.Database(cfg.Store.Mongo.Database), cfg.Store.PublicURL)
		return &backend{
			docs:   st,
			files:  st,
			reader: st,
			ping:   st.Ping,
			close: func() error {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return client.Disconnect(shutdownCtx)
			},
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.NewDB(cfg.Store.SQLite.Path, cfg.Store.PublicURL, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			docs:    db,
			files:   db,
			reader:  db,
			backups: sqlite.NewBackupService(db, cfg.Store.SQLite.Backup, logging.Component(logger, "sqlite-backup")),
			ping:    db.PingContext,
			close:   db.Close,
		}, nil

	case config.DriverMemory:
		mem := store.NewMemory(cfg.Store.PublicURL)
		return &backend{docs: mem, files: mem, reader: mem}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// initSessions keeps sessions in Redis when it answers, with an in-memory
// fallback; without Redis everything stays in process.
func (a *App) initSessions(ctx context.Context) {
	memory := repository.NewMemorySessionRepository()
	a.Sessions = memory
	a.Locker = repository.NewMemoryLocker()

	if a.Config.Redis.Address == "" {
		return
	}

	client := repository.NewRedisClient(a.Config.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		a.logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return
	}

	a.logger.Info().Str("addr", a.Config.Redis.Address).Msg("redis connected")
	a.redis = client
	a.Sessions = repository.NewFailoverSessionRepository(repository.NewRedisSessionRepository(client), memory, a.logger)
	a.Locker = repository.NewRedisLocker(client)
	a.closers = append(a.closers, client.Close)
}

// Ready pings the storage backend. Redis is optional, so its outage only
// degrades sessions and is logged instead of failing readiness.
func (a *App) Ready(ctx context.Context) error {
	for _, ping := range a.pingers {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("store unreachable: %w", err)
		}
	}
	if a.redis != nil {
		if err := repository.Ping(ctx, a.redis); err != nil {
			a.logger.Warn().Err(err).Msg("redis unreachable, sessions served from memory")
		}
	}
	return nil
}

// APIDeps exposes the app to the HTTP layer.
func (a *App) APIDeps() api.Deps {
	return api.Deps{
		Auth:       a.Auth,
		Rooms:      a.Rooms,
		Compliance: a.Compliance,
		Catalog:    a.Catalog,
		Checkout:   a.Checkout,
		Users:      a.Users,
		Dashboard:  a.Dashboard,
		Files:      a.FileReader,
		Ready:      a.Ready,
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
