package cmd

import (
	"context"

	"cryptofolio/config"
	"cryptofolio/pkg/cache"
	"cryptofolio/pkg/logger"
	"cryptofolio/pkg/middleware"
	"cryptofolio/pkg/postgres"
	"cryptofolio/pkg/telegram"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type AppDependency struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *postgres.DB
	echo     *echo.Echo
	cache    cache.Cache
	notifier telegram.Notifier
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}

	db, err := postgres.NewDB(cfg.DB, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.NewRateLimiterMiddleware())

	inmemoryCache := cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval)

	return &AppDependency{
		cfg:      cfg,
		log:      log,
		db:       db,
		echo:     e,
		cache:    inmemoryCache,
		notifier: telegram.NewNotifier(&cfg.Telegram, log, inmemoryCache),
	}, nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
