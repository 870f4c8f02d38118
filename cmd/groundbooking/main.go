package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/ground-booking/internal/application"
	"github.com/example/ground-booking/internal/config"
	"github.com/example/ground-booking/internal/events"
	httptransport "github.com/example/ground-booking/internal/http"
	"github.com/example/ground-booking/internal/jobs"
	"github.com/example/ground-booking/internal/logging"
	"github.com/example/ground-booking/internal/persistence"
	"github.com/example/ground-booking/internal/persistence/memory"
	"github.com/example/ground-booking/internal/persistence/postgres"
	"github.com/example/ground-booking/internal/persistence/sqlite"
	"github.com/example/ground-booking/internal/persistence/sqlite/migration"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fallback := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg, err := config.Load()
	if err != nil {
		fallback.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fallback.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ground booking service stopped", "error", err)
		os.Exit(1)
	}
}

// app holds the wired components of the service.
type app struct {
	store      persistence.Store
	service    *application.BookingService
	catalog    *application.CachedCatalog
	dispatcher *events.Dispatcher
	sweeper    *jobs.Sweeper
	consumer   *events.PaymentConsumer
	handler    http.Handler
	closers    []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to release resources", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.dispatcher.Run(gctx) })
	if a.sweeper != nil {
		g.Go(func() error { return a.sweeper.Run(gctx) })
	}
	if a.consumer != nil {
		g.Go(func() error {
			if err := a.consumer.Run(gctx); err != nil {
				return fmt.Errorf("payment consumer: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("ground booking API listening", "addr", server.Addr, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	store, locker, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return a, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if err = seedCatalog(ctx, store, cfg.Seed); err != nil {
		return a, err
	}

	sinks := []events.Sink{events.NewLogSink(logger)}
	if cfg.AMQP.URL != "" {
		publisher, perr := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if perr != nil {
			err = fmt.Errorf("connect event broker: %w", perr)
			return a, err
		}
		a.closers = append(a.closers, publisher.Close)
		sinks = append(sinks, publisher)
	}
	a.dispatcher = events.NewDispatcher(cfg.Events.Workers, cfg.Events.Buffer, logger, sinks...)

	a.catalog = application.NewCachedCatalog(newResourceCatalogAdapter(store), cfg.Catalog.CacheTTL)
	a.service = application.NewBookingService(application.BookingServiceDeps{
		Bookings:    newBookingRepositoryAdapter(store),
		Catalog:     a.catalog,
		Customers:   newCustomerDirectoryAdapter(store),
		Locker:      locker,
		Events:      a.dispatcher,
		LeadTime:    cfg.Booking.LeadTime,
		Increment:   cfg.Booking.Increment,
		Location:    cfg.Booking.Location(),
		IDGenerator: uuid.NewString,
		Now:         time.Now,
		Logger:      logger,
	})

	if cfg.Sweeper.Enabled {
		if a.sweeper, err = jobs.NewSweeper(cfg.Sweeper.Schedule, a.service, logger); err != nil {
			return a, err
		}
	}

	if cfg.AMQP.URL != "" && cfg.AMQP.PaymentQueue != "" {
		consumer := events.NewPaymentConsumer(events.ConsumerConfig{
			URL:      cfg.AMQP.URL,
			Exchange: cfg.AMQP.Exchange,
			Queue:    cfg.AMQP.PaymentQueue,
		}, a.service, logger)
		if err = consumer.Connect(); err != nil {
			return a, err
		}
		a.closers = append(a.closers, func() error { consumer.Close(); return nil })
		a.consumer = consumer
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Availability: httptransport.NewAvailabilityHandler(application.NewAvailabilityProbe(a.service), logger),
		Bookings:     httptransport.NewBookingHandler(a.service, logger),
		Grounds:      httptransport.NewGroundHandler(a.service, logger),
		Health:       httptransport.NewHealthHandler(store, logger),
		ProbeLimiter: httptransport.NewRateLimiter(cfg.HTTP.ProbeRate, cfg.HTTP.ProbeBurst, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recover(logger),
			httptransport.Timeout(cfg.HTTP.RequestTimeout),
		},
	})
	return a, nil
}

// openStore opens and migrates the configured driver. The returned locker is
// nil unless the driver coordinates across processes.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (persistence.Store, application.Locker, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		store, err := sqlite.OpenWithConfig(migration.DefaultSQLiteConfig(cfg.SQLitePath), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return store, nil, nil
	case "postgres":
		store, err := postgres.Open(ctx, postgres.Config{DSN: cfg.PostgresDSN}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
		return store, postgres.NewAdvisoryLocker(store.DB(), logger), nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func seedCatalog(ctx context.Context, store persistence.Store, seed config.SeedConfig) error {
	for _, ground := range seed.Grounds {
		currency := ground.Currency
		if currency == "" {
			currency = "INR"
		}
		name := ground.Name
		if name == "" {
			name = ground.ID
		}
		if err := store.UpsertGround(ctx, persistence.Ground{
			ID:               ground.ID,
			Name:             name,
			SlotCount:        ground.SlotCount,
			PricePerSlotHour: ground.PricePerSlotHour,
			Currency:         currency,
		}); err != nil {
			return fmt.Errorf("seed ground %s: %w", ground.ID, err)
		}
	}
	for _, customer := range seed.Customers {
		if err := store.UpsertCustomer(ctx, persistence.Customer{
			ID:    customer.ID,
			Name:  customer.Name,
			Email: customer.Email,
		}); err != nil {
			return fmt.Errorf("seed customer %s: %w", customer.ID, err)
		}
	}
	return nil
}
