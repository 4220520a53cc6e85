package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/database"
	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/inventory"
	"github.com/iliyamo/bus-seat-reservation/internal/ledger"
	"github.com/iliyamo/bus-seat-reservation/internal/logging"
	"github.com/iliyamo/bus-seat-reservation/internal/metrics"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/router"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := config.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}
	inv, err := inventory.New(catalog)
	if err != nil {
		return err
	}

	// Redis backs the rate limiter and the catalog cache, and optionally
	// the ledger itself.  Without it the middleware degrades to no-ops.
	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		if cfg.StoreDriver == config.StoreRedis {
			return err
		}
		log.Warn("redis unavailable, rate limiting and caching disabled", "err", err)
	} else {
		defer rdb.Close()
	}

	store, closeStore, err := openStore(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer closeStore()

	led := ledger.New(inv, store,
		ledger.WithLogger(log),
		ledger.WithPersistTimeout(cfg.PersistTimeout),
	)
	if err := led.Restore(ctx); err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	opts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, log)
		defer pub.Close()
		opts = append(opts, service.WithPublisher(pub))

		if cfg.AuditConsumer {
			consumer := queue.NewAuditConsumer(cfg.AMQPURL, cfg.AuditLogDir, log)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit consumer stopped", "err", err)
				}
			}()
		}
	}
	svc := service.New(led, inv, opts...)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))
	e.Use(m.Middleware())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e, promhttp.Handler())
	router.RegisterBuses(e, handler.NewBusHandler(svc), middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterReservations(e, handler.NewReservationHandler(svc))
	router.RegisterAdmin(e, handler.NewAdminHandler(svc, cfg.JWTSecret, cfg.AdminPasswordHash,
		time.Duration(cfg.AccessTTLMin)*time.Minute), cfg.JWTSecret)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", srv.Addr, "env", cfg.Env, "store", cfg.StoreDriver,
			"buses", len(catalog), "reservations", led.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

// openStore builds the ledger store selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg config.Config, rdb *redis.Client) (ledger.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMySQL:
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repository.NewMySQLStore(db), func() { _ = db.Close() }, nil
	case config.StoreRedis:
		return repository.NewRedisStore(rdb, cfg.RedisLedgerKey), func() {}, nil
	default:
		return repository.NewFileStore(cfg.DataFile, repository.WithLogger(slog.Default())), func() {}, nil
	}
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method, "uri", v.URI, "status", v.Status,
				"latency_ms", v.Latency.Milliseconds(), "request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Warn("request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	})
}
