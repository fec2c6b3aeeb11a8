package aws

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

// KeyCache treats the object keys directly under a prefix as the set of
// processed ids: s3://bucket/prefix/<id>. Downstream jobs write the marker
// objects once they finish.
type KeyCache struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
	tracer trace.Tracer
}

var _ domain.WritableIDStore = (*KeyCache)(nil)

// NewKeyCache creates a cache rooted at bucket/prefix. An empty prefix uses
// the bucket's top-level keys.
func NewKeyCache(client S3API, bucket, prefix string, logger *slog.Logger) *KeyCache {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &KeyCache{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "s3-key-cache", "bucket", bucket, "prefix", prefix),
		tracer: otel.Tracer("waphl-s3-cache"),
	}
}

// KnownIDs lists every page under the prefix. An empty or absent prefix is
// an empty set.
func (c *KeyCache) KnownIDs(ctx context.Context) (domain.IDSet, error) {
	ctx, span := c.tracer.Start(ctx, "cache.s3.KnownIDs", trace.WithAttributes(
		attribute.String("s3.bucket", c.bucket),
		attribute.String("s3.prefix", c.prefix),
	))
	defer span.End()

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(c.prefix),
		Delimiter: aws.String("/"),
	})

	ids := domain.NewIDSet()
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to list cache prefix")
			return nil, fmt.Errorf("%w: failed to list s3://%s/%s: %v", domain.ErrUpstreamListing, c.bucket, c.prefix, err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), c.prefix)
			if id == "" {
				continue
			}
			ids[id] = struct{}{}
		}
	}
	span.SetAttributes(attribute.Int("cache.size", len(ids)))
	c.logger.Debug("loaded known ids", "count", len(ids))
	return ids, nil
}

// Add writes an empty marker object per id.
func (c *KeyCache) Add(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if id == "" || strings.Contains(id, "/") {
			return fmt.Errorf("%w: invalid cache id %q", domain.ErrMalformedItem, id)
		}
		_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.prefix + id),
			Body:   strings.NewReader(""),
		})
		if err != nil {
			return fmt.Errorf("failed to write cache marker %s: %w", id, err)
		}
	}
	return nil
}
