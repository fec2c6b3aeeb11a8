package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
)

// CrawlerRunner starts a Glue crawler and waits until it is READY again.
type CrawlerRunner struct {
	client GlueAPI
	poll   time.Duration
	logger *slog.Logger
}

func NewCrawlerRunner(client GlueAPI, poll time.Duration, logger *slog.Logger) *CrawlerRunner {
	if poll <= 0 {
		poll = 10 * time.Second
	}
	return &CrawlerRunner{client: client, poll: poll, logger: logger.With("component", "glue-crawler")}
}

// Run starts the crawler. A crawler that is already running is waited for.
func (c *CrawlerRunner) Run(ctx context.Context, name string) error {
	_, err := c.client.StartCrawler(ctx, &glue.StartCrawlerInput{Name: aws.String(name)})
	var running *gluetypes.CrawlerRunningException
	switch {
	case errors.As(err, &running):
		c.logger.Warn("crawler already running", "crawler", name)
	case err != nil:
		return fmt.Errorf("failed to start crawler %s: %w", name, err)
	default:
		c.logger.Info("crawler started", "crawler", name)
	}

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		out, err := c.client.GetCrawler(ctx, &glue.GetCrawlerInput{Name: aws.String(name)})
		if err != nil {
			return fmt.Errorf("failed to get crawler %s: %w", name, err)
		}
		if out.Crawler == nil {
			return fmt.Errorf("crawler %s not returned", name)
		}
		c.logger.Debug("crawler state", "crawler", name, "state", out.Crawler.State)
		if out.Crawler.State != gluetypes.CrawlerStateReady {
			continue
		}
		if lc := out.Crawler.LastCrawl; lc != nil && lc.Status == gluetypes.LastCrawlStatusFailed {
			return fmt.Errorf("crawler %s failed: %s", name, aws.ToString(lc.ErrorMessage))
		}
		c.logger.Info("crawler finished", "crawler", name)
		return nil
	}
}
