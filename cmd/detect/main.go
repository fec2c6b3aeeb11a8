// cmd/detect/main.go runs pipelines once and prints their reports as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/DOH-JDJ0303/waphl-data/internal/bootstrap"
	"github.com/DOH-JDJ0303/waphl-data/internal/config"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	awsinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/aws"
	"github.com/DOH-JDJ0303/waphl-data/internal/tracing"
	"github.com/DOH-JDJ0303/waphl-data/internal/usecase"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the config file")
	pipeline := fs.String("pipeline", "", "pipeline to run")
	all := fs.Bool("all", false, "run every configured pipeline")
	limit := fs.Int("limit", -1, "override the pipeline batch limit (0 is unbounded)")
	dryRun := fs.Bool("dry-run", false, "plan without dispatching")
	list := fs.Bool("list", false, "list configured pipelines and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !*list && (*pipeline == "") == !*all {
		fmt.Fprintln(stderr, "exactly one of -pipeline or -all is required")
		fs.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, config.Options{Path: *configPath, Secrets: awsinfra.SecretFetcherFactory})
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	shutdown, err := tracing.InitTracer("waphl-detect", cfg.TraceWriter(), logger)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		return 1
	}
	defer shutdown(context.Background())

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipelines", "error", err)
		return 1
	}
	defer app.Close()

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if *list {
		if err := enc.Encode(app.Pipelines.List()); err != nil {
			return 1
		}
		return 0
	}

	overrides := usecase.RunOverrides{DryRun: *dryRun}
	if *limit >= 0 {
		overrides.Limit = limit
	}

	var reports []*domain.Report
	if *all {
		reports, err = app.Pipelines.RunAll(ctx, overrides)
	} else {
		var report *domain.Report
		report, err = app.Pipelines.Run(ctx, *pipeline, overrides)
		if report != nil {
			reports = append(reports, report)
		}
	}
	if encErr := enc.Encode(reports); encErr != nil {
		logger.Error("failed to write reports", "error", encErr)
		return 1
	}

	// Listing failures are already in err.
	for _, r := range reports {
		if r.Error == "" {
			err = errors.Join(err, r.Err())
		}
	}
	if err != nil {
		logger.Error("run finished with errors", "error", err)
		return 1
	}
	return 0
}
