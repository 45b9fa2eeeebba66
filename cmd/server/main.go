package main // Entry point package

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/training-portal/internal/config"
	"github.com/iliyamo/training-portal/internal/database"
	"github.com/iliyamo/training-portal/internal/handler"
	"github.com/iliyamo/training-portal/internal/logging"
	"github.com/iliyamo/training-portal/internal/metrics"
	"github.com/iliyamo/training-portal/internal/middleware"
	"github.com/iliyamo/training-portal/internal/queue"
	"github.com/iliyamo/training-portal/internal/repository"
	"github.com/iliyamo/training-portal/internal/router"
	"github.com/iliyamo/training-portal/internal/service"
	"github.com/iliyamo/training-portal/internal/utils"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash of the given password and exit")
	flag.Parse()

	_ = godotenv.Load() // a missing .env file is fine; the environment wins

	if *hashPassword != "" {
		cost := config.DefaultBcryptCost
		if cfg, err := config.Parse(os.LookupEnv); err == nil {
			cost = cfg.BcryptCost
		}
		hash, err := utils.HashPassword(*hashPassword, cost)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat, nil)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied")
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	m := metrics.New()
	opts := service.Options{Log: log, Metrics: m, Timeout: cfg.DBTimeout}

	// Auth events are optional; without a broker the services skip them.
	if cfg.RabbitURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pub, err := queue.NewPublisher(dialCtx, cfg.RabbitURL, cfg.EventsQueue, log)
		cancel()
		if err != nil {
			log.WithError(err).Warn("auth events disabled: broker unavailable")
		} else {
			defer pub.Close()
			events := queue.NewDispatcher(pub, 256, 3*time.Second, log)
			defer func() {
				drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := events.Close(drainCtx); err != nil {
					log.WithError(err).Warn("auth events still buffered at shutdown")
				}
			}()
			opts.Events = events
			consumer := &queue.AuditConsumer{URL: cfg.RabbitURL, Queue: cfg.EventsQueue, Path: cfg.AuditLogPath, Log: log}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("audit consumer stopped")
				}
			}()
		}
	}

	accounts := repository.NewAccountRepo(db)
	tokens := repository.NewTokenRepo(db)
	notifications := repository.NewNotificationStore(rdb, cfg.NotifyPrefix, cfg.NotifyTTL)

	verifier, err := service.NewVerifier(accounts, cfg.BcryptCost, opts)
	if err != nil {
		return err
	}
	issuer := utils.NewIssuer(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	sessions := service.NewSessionService(verifier, accounts, tokens, issuer, opts)
	temp := service.NewTempPasswordService(accounts, repository.NewTempPasswordRepo(db), notifications, cfg.TempPasswordLocation, opts)

	c := cron.New()
	if _, err := c.AddFunc(cfg.CleanupSchedule, func() { cleanup(ctx, log, sessions, temp) }); err != nil {
		return fmt.Errorf("cleanup schedule %q: %w", cfg.CleanupSchedule, err)
	}
	c.Start()
	defer c.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(m.Middleware())

	health := handler.NewHealthHandler(map[string]handler.Check{
		"mysql": db.PingContext,
		"redis": notifications.Ping,
	})
	router.RegisterRoutes(e, health, m.Handler())
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	router.RegisterAuth(e, handler.NewAuthHandler(sessions), issuer, limit)
	router.RegisterRemote(e, handler.NewRemoteHandler(temp), issuer)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// cleanup removes expired refresh tokens and stale temporary passwords.
func cleanup(ctx context.Context, log logrus.FieldLogger, sessions *service.SessionService, temp *service.TempPasswordService) {
	if n, err := sessions.PurgeExpired(ctx); err != nil {
		log.WithError(err).Warn("purge expired refresh tokens failed")
	} else if n > 0 {
		log.WithField("removed", n).Info("expired refresh tokens purged")
	}
	if n, err := temp.PurgeStale(ctx); err != nil {
		log.WithError(err).Warn("purge stale temporary passwords failed")
	} else if n > 0 {
		log.WithField("removed", n).Info("stale temporary passwords purged")
	}
}
