// cmd/lambda/main.go runs pipelines from an EventBridge schedule or a direct
// invocation.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/DOH-JDJ0303/waphl-data/internal/bootstrap"
	"github.com/DOH-JDJ0303/waphl-data/internal/config"
	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	awsinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/aws"
	"github.com/DOH-JDJ0303/waphl-data/internal/usecase"
)

// Event selects what to run. An empty pipeline runs every pipeline.
type Event struct {
	Pipeline string `json:"pipeline,omitempty"`
	Limit    *int   `json:"limit,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// Response is returned to the invoker.
type Response struct {
	Reports []*domain.Report `json:"reports"`
}

// runner is the part of PipelineService the handler needs.
type runner interface {
	Run(ctx context.Context, name string, overrides usecase.RunOverrides) (*domain.Report, error)
	RunAll(ctx context.Context, overrides usecase.RunOverrides) ([]*domain.Report, error)
}

type handler struct {
	pipelines runner
	logger    *slog.Logger
}

// Handle returns an error only when a listing or lookup failed; per-item
// dispatch failures are reported in the response.
func (h *handler) Handle(ctx context.Context, ev Event) (*Response, error) {
	overrides := usecase.RunOverrides{Limit: ev.Limit, DryRun: ev.DryRun}
	if ev.Pipeline == "" {
		reports, err := h.pipelines.RunAll(ctx, overrides)
		return &Response{Reports: reports}, err
	}
	report, err := h.pipelines.Run(ctx, ev.Pipeline, overrides)
	resp := &Response{Reports: []*domain.Report{}}
	if report != nil {
		resp.Reports = append(resp.Reports, report)
	}
	if err != nil {
		h.logger.Error("pipeline run failed", "pipeline", ev.Pipeline, "error", err)
	}
	return resp, err
}

func main() {
	ctx := context.Background()
	cfg, err := config.Load(ctx, config.Options{Path: os.Getenv("WAPHL_CONFIG"), Secrets: awsinfra.SecretFetcherFactory})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build pipelines: %v", err)
	}
	defer app.Close()

	h := &handler{pipelines: app.Pipelines, logger: logger}
	lambda.Start(h.Handle)
}
