// cmd/dispatcherd/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	http_api "github.com/DOH-JDJ0303/waphl-data/internal/api/http"
	"github.com/DOH-JDJ0303/waphl-data/internal/bootstrap"
	"github.com/DOH-JDJ0303/waphl-data/internal/config"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	awsinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/aws"
	"github.com/DOH-JDJ0303/waphl-data/internal/infra/etcd"
	"github.com/DOH-JDJ0303/waphl-data/internal/scheduler"
	"github.com/DOH-JDJ0303/waphl-data/internal/tracing"
	"github.com/DOH-JDJ0303/waphl-data/internal/usecase"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	// 1. Load configuration
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(rootCtx, config.Options{Path: *configPath, Secrets: awsinfra.SecretFetcherFactory})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	tracerShutdown, err := tracing.InitTracer("waphl-dispatcherd", cfg.TraceWriter(), logger)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", "error", err)
		}
	}()

	nodeID := uuid.New().String()
	logger.Info("starting dispatcher daemon", "node_id", nodeID, "pipelines", len(cfg.Pipelines))

	// 3. Setup graceful shutdown
	setupGracefulShutdown(cancel, logger)

	// 4. Wire pipelines
	app, err := bootstrap.New(rootCtx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build pipelines: %v", err)
	}
	defer app.Close()

	// 5. Only the etcd leader schedules when etcd is configured
	var leaderManager domain.LeaderElectionManager
	if len(cfg.EtcdEndpoints) > 0 {
		etcdClient, err := app.Etcd()
		if err != nil {
			log.Fatalf("Failed to create etcd client: %v", err)
		}
		leaderManager = etcd.NewEtcdLeaderElectionManager(etcdClient, nodeID, cfg.LeaderElectionTTL, logger)
	}

	var opts []scheduler.Option
	if cfg.Overlap == "forbid" {
		opts = append(opts, scheduler.WithSkipIfRunning())
	}
	cronScheduler := scheduler.NewCronScheduler(logger, opts...)
	schedulerService := usecase.NewSchedularService(leaderManager, cronScheduler, app.Tasks(), nodeID, logger)

	// 6. Register routes and metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	http_api.NewPipelineHandler(app.Pipelines, app.Tables, logger).RegisterRoutes(mux)

	// 7. Start SchedulerService
	schedulerDone := runScheduler(rootCtx, schedulerService, cancel, logger)

	// 8. Start HTTP API server
	logger.Info("starting http api server", "addr", cfg.HttpListenAddr)
	server := &http.Server{
		Addr:              cfg.HttpListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	// 9. Block until shutdown
	<-rootCtx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	// Leadership must be resigned and running tasks drained before the
	// deferred Close drops etcd.
	<-schedulerDone
	logger.Info("dispatcher daemon shut down")
}

type schedulerStarter interface {
	Start(ctx context.Context) error
}

// runScheduler starts s in the background. The returned channel is closed
// once Start has returned.
func runScheduler(ctx context.Context, s schedulerStarter, cancel context.CancelFunc, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler service stopped with error", "error", err)
			cancel()
		}
	}()
	return done
}

func setupGracefulShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()
}
