package cmd

import (
	"context"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpDelivery "cryptofolio/internal/delivery/http"
	"cryptofolio/internal/engine"
	"cryptofolio/internal/exchange"
	"cryptofolio/internal/repository"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the cryptofolio automation engine",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	repo := repository.NewRepository(appDep.db.DB)
	exchanges := exchange.NewFactory(appDep.cfg, appDep.log)

	// Alerts carry no account, so their market data comes from the
	// configured default feed with no signing material.
	alertFeed, err := exchanges.ClientFor(appDep.cfg.Engine.AlertFeedExchange, exchange.Credentials{})
	if err != nil {
		log.Fatalf("Failed to create alert price feed: %v", err)
	}

	orderEngine := engine.NewOrderEngine(appDep.log, repo.OrderRepo, repo.OrderExecutionRepo, exchanges)
	alertEngine := engine.NewAlertEngine(appDep.log, repo.AlertRepo, repo.UserSettingRepo, appDep.notifier, alertFeed)
	accountEngine := engine.NewAccountEngine(appDep.log, repo.AccountRepo, exchanges)

	engineCfg := appDep.cfg.Engine
	scheduler := engine.NewScheduler(appDep.log, engineCfg.TickTimeout)
	tasks := []engine.Task{
		{Name: "orders", Interval: engineCfg.OrderInterval, StartDelay: engineCfg.StartDelay, Run: orderEngine.Run},
		{Name: "alerts", Interval: engineCfg.AlertInterval, StartDelay: engineCfg.StartDelay + engineCfg.StaggerStep, Run: alertEngine.Run},
		{Name: "accounts", Interval: engineCfg.AccountCheckInterval, StartDelay: engineCfg.StartDelay + 2*engineCfg.StaggerStep, Run: accountEngine.Run},
	}
	for _, task := range tasks {
		if err := scheduler.Register(task); err != nil {
			log.Fatalf("Failed to register task %q: %v", task.Name, err)
		}
	}

	httpHandler := httpDelivery.NewHandler(appDep.echo, appDep.log, scheduler)
	apiServer := NewHTTPServer(ctx, appDep, httpHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := apiServer.Start(); err != nil && err != httpNet.ErrServerClosed {
			return err
		}
		return nil
	})

	scheduler.Start()

	// Wait for shutdown signal
	<-gctx.Done()
	appDep.log.Info("Shutting down gracefully...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		appDep.log.Warn("Timed out waiting for in-flight ticks")
	}

	if err := apiServer.Stop(); err != nil {
		log.Fatalf("Failed to stop HTTP server: %v", err)
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}
