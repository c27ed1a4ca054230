// Package app builds the clinic services from the configuration. The bot,
// the HTTP API and the admin CLI share it.
package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/napryag/clinic_booking_bot/pkg/config"
	"github.com/napryag/clinic_booking_bot/pkg/domain/appointments"
	"github.com/napryag/clinic_booking_bot/pkg/domain/booking"
	"github.com/napryag/clinic_booking_bot/pkg/domain/bot/sender"
	"github.com/napryag/clinic_booking_bot/pkg/domain/catalog"
	"github.com/napryag/clinic_booking_bot/pkg/repository/memstore"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/repository/pgstore"
	"github.com/napryag/clinic_booking_bot/pkg/repository/sessions"
	"github.com/napryag/clinic_booking_bot/pkg/repository/tables"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/napryag/clinic_booking_bot/pkg/utils/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config       *config.Config
	Records      model.RecordStore
	Sessions     sessions.Store
	Catalog      *catalog.Service
	Appointments *appointments.Service
	Wizard       *booking.Wizard
	Registry     *prometheus.Registry

	logger  zerolog.Logger
	pool    *pgxpool.Pool
	closers []func()
}

// New connects the configured stores. notifier may be nil.
func New(ctx context.Context, cfg *config.Config, notifier appointments.Notifier, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	var err error
	if a.Records, err = a.records(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.Sessions, err = a.sessions(ctx); err != nil {
		a.Close()
		return nil, err
	}

	m := metrics.NewBookingMetrics(a.Registry)
	a.Catalog = catalog.New(a.Records, logger)
	a.Appointments = appointments.New(a.Records, notifier, m, appointments.Config{
		SupportPhone: cfg.Clinic.SupportPhone,
		Location:     cfg.Location(),
	}, logger)
	a.Wizard = booking.NewWizard(booking.NewMachine(cfg.Window()), a.Catalog, a.Appointments, logger, m)

	logger.Info().
		Str("records", cfg.Store.Driver).
		Str("sessions", cfg.Sessions.Driver).
		Str("timezone", cfg.Clinic.Timezone).
		Msg("services ready")
	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) records(ctx context.Context) (model.RecordStore, error) {
	cfg := a.Config.Store
	switch cfg.Driver {
	case config.DriverTables:
		return tables.New(cfg.TablesURL, cfg.Timeout, a.logger), nil

	case config.DriverPostgres:
		pool, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		repo := pgstore.NewRepo(pool)
		if err = repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case config.DriverMemory:
		store := memstore.New()
		if cfg.SeedPath != "" {
			if err := store.LoadSeed(cfg.SeedPath); err != nil {
				return nil, err
			}
		}
		return store, nil
	}
	return nil, errs.Validation("unknown store driver").Arg("driver", cfg.Driver)
}

func (a *App) sessions(ctx context.Context) (sessions.Store, error) {
	cfg := a.Config.Sessions
	switch cfg.Driver {
	case config.DriverMemory:
		return sessions.NewMemoryStore(), nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: a.Config.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, errs.Transport("failed to ping redis").Arg("addr", cfg.RedisAddr).Wrap(err)
		}
		return sessions.NewRedisStore(client, "", cfg.TTL), nil

	case config.DriverPostgres:
		pool, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		store := sessions.NewPostgresStore(pool)
		if err = store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, errs.Validation("unknown sessions driver").Arg("driver", cfg.Driver)
}

// postgres opens the pool once for both stores.
func (a *App) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := pgstore.Connect(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	return pool, nil
}

// Notifier returns the staff channel notifier, or nil when no channel is
// configured.
func Notifier(cfg *config.Config, api sender.BotAPI, logger zerolog.Logger) appointments.Notifier {
	if api == nil || cfg.ChannelID == "" {
		logger.Info().Msg("staff notifications disabled")
		return nil
	}
	return sender.New(sender.ProcessorConfig{ChannelID: cfg.ChannelID}, logger, api, cfg.Location())
}
