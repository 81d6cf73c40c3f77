package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invites.fest2.fun/configs"
	"invites.fest2.fun/configs/configsdatabase"
	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/database/seeders"
	dashboard_handlers "invites.fest2.fun/handlers/dashboard"
	link_handlers "invites.fest2.fun/handlers/link"
	panel_handlers "invites.fest2.fun/handlers/panel"
	"invites.fest2.fun/pkg/keylock"
	"invites.fest2.fun/pkg/mailer"
	"invites.fest2.fun/pkg/metrics"
	"invites.fest2.fun/pkg/notify"
	"invites.fest2.fun/pkg/objectstore"
	"invites.fest2.fun/pkg/qr"
	"invites.fest2.fun/pkg/renderer"
	"invites.fest2.fun/pkg/workerpool"
	"invites.fest2.fun/repositories"
	"invites.fest2.fun/routes"
	"invites.fest2.fun/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configslog.InitLogger()
	defer configslog.SyncLogger()

	cfg, err := configs.Load()
	if err != nil {
		configslog.Log.Fatal("Configuration could not be loaded", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checks := map[string]dashboard_handlers.HealthCheck{}

	items, err := openItems(ctx, cfg, checks)
	if err != nil {
		configslog.Log.Fatal("Item store could not be opened", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer configsdatabase.CloseDB()
	events := repositories.NewEventRepository(items)

	store, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		configslog.Log.Fatal("Object store could not be opened", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	objects := objectstore.NewClient(store, objectstore.Options{
		MaxAttempts: cfg.Storage.MaxAttempts,
		BaseDelay:   cfg.Storage.BaseDelay,
		PresignTTL:  cfg.Storage.PresignTTL,
		OnAttempt:   func(int) { m.UploadAttempts.Inc() },
		OnRetry:     func(error, time.Duration) { m.UploadRetries.Inc() },
	})

	mail, err := openMailer(cfg.Mail)
	if err != nil {
		configslog.Log.Fatal("Mailer could not be configured", zap.Error(err))
	}

	bus := notify.NewBus()
	creationPool := workerpool.New("creation", cfg.Pools.Creation)
	dispatchPool := workerpool.New("dispatch", cfg.Pools.Dispatch)
	m.WatchPool(creationPool)
	m.WatchPool(dispatchPool)
	m.WatchBus(bus)

	svc, err := services.NewInvitationService(services.Dependencies{
		Events:         events,
		Objects:        objects,
		Encoder:        qr.NewPNGEncoder(qr.DefaultSize),
		Renderer:       renderer.NewHTMLRenderer(),
		Mailer:         mail,
		Bus:            bus,
		Metrics:        m,
		Locks:          keylock.New(),
		CreationPool:   creationPool,
		DispatchPool:   dispatchPool,
		KeyPrefix:      cfg.Storage.KeyPrefix,
		DefaultLogoURL: cfg.DefaultLogoURL,
	})
	if err != nil {
		configslog.Log.Fatal("Invitation service could not be built", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:               "fest2fun-invitations",
		DisableStartupMessage: cfg.Env == "production",
		ReadTimeout:           30 * time.Second,
		IdleTimeout:           2 * time.Minute,
	})
	routes.SetupRoutes(app, routes.Handlers{
		Invitations: panel_handlers.NewInvitationHandler(svc),
		Dashboard:   dashboard_handlers.NewDashboardHandler(svc, m.Handler(), checks),
		Codes:       link_handlers.NewCodeHandler(svc),
	})

	serveErr := make(chan error, 1)
	go func() {
		configslog.SLog.Infof("Listening on %s (env: %s)", cfg.Addr(), cfg.Env)
		serveErr <- app.Listen(cfg.Addr())
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			configslog.Log.Error("HTTP server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		configslog.SLog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		configslog.Log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		configslog.Log.Error("Workers did not finish in time", zap.Error(err))
	}
	configslog.SLog.Info("Bye")
}

func openItems(ctx context.Context, cfg configs.AppConfig, checks map[string]dashboard_handlers.HealthCheck) (repositories.IEventItemRepository, error) {
	switch cfg.StoreDriver {
	case "memory":
		items := repositories.NewMemoryEventItemRepository()
		events := repositories.NewEventRepository(items)
		for _, tpl := range seeders.DefaultTemplates() {
			if err := events.PutTemplate(ctx, &tpl); err != nil {
				return nil, fmt.Errorf("seed template %s: %w", tpl.TemplateID, err)
			}
		}
		configslog.SLog.Warn("Using the in-memory item store; nothing survives a restart")
		return items, nil
	case "gorm", "":
		configsdatabase.InitDB(cfg.Database)
		db := configsdatabase.GetDB()
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		return repositories.NewEventItemRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func openObjectStore(ctx context.Context, cfg configs.StorageConfig) (objectstore.Store, error) {
	switch cfg.Driver {
	case "memory":
		return objectstore.NewMemoryStore(cfg.Bucket), nil
	case "s3", "":
		return objectstore.NewS3Store(ctx, objectstore.S3Options{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.Driver)
	}
}

func openMailer(cfg configs.MailConfig) (mailer.Mailer, error) {
	switch cfg.Driver {
	case "log", "":
		return mailer.LogMailer{}, nil
	case "smtp":
		return mailer.NewSMTPMailer(mailer.SMTPOptions{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			From:     cfg.From,
		})
	default:
		return nil, errors.New("unknown MAIL_DRIVER " + cfg.Driver)
	}
}
