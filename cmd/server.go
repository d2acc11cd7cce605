package cmd

import (
	"context"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"

	"backtest-api/internal/delivery/http"
	"backtest-api/internal/engine"
	"backtest-api/internal/repository"
	"backtest-api/internal/service"
	"backtest-api/pkg/httpclient"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the backtest API server",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {

	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	repo := repository.NewRepository(appDep.db.DB, appDep.log)

	loader := engine.NewCSVLoader(
		appDep.cfg.Backtest.DataDir,
		appDep.cfg.Backtest.DefaultDataFile,
		httpclient.New(appDep.cfg.Backtest.DownloadTimeout),
		appDep.log,
	)
	eng := engine.New(appDep.log, loader)

	services := service.NewService(
		appDep.cfg,
		appDep.log,
		repo,
		appDep.cache,
		eng,
	)
	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, services)

	services.BacktestService.StartWorkers(ctx)

	if err := services.RetentionService.Start(); err != nil {
		log.Fatalf("Failed to start retention sweep: %v", err)
	}

	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	go func() {
		if err := apiServer.Start(); err != nil && err != httpNet.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	services.RetentionService.Stop()
	services.BacktestService.StopWorkers()

	if err := apiServer.Stop(); err != nil {
		log.Fatalf("Failed to stop HTTP server: %v", err)
	}

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}
