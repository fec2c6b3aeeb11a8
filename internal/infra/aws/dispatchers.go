package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	batchtypes "github.com/aws/aws-sdk-go-v2/service/batch/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

const maxJobNameLen = 128

var invalidJobNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// BatchJobSpec is the fixed part of every submitted job.
type BatchJobSpec struct {
	Queue      string
	Definition string
	// NameTemplate is expanded per item, e.g. "${project}_${workspace}_${id}".
	NameTemplate string
	Command      []string
	// Environment is passed unchanged to every job.
	Environment map[string]string
	// EnvMap maps container variable names to item attributes.
	EnvMap map[string]string
}

// BatchSubmitter dispatches each item as one AWS Batch job.
type BatchSubmitter struct {
	client BatchAPI
	spec   BatchJobSpec
	logger *slog.Logger
	tracer trace.Tracer
}

// NewBatchSubmitter creates a Batch dispatcher.
func NewBatchSubmitter(client BatchAPI, spec BatchJobSpec, logger *slog.Logger) *BatchSubmitter {
	if spec.NameTemplate == "" {
		spec.NameTemplate = "${id}"
	}
	return &BatchSubmitter{
		client: client,
		spec:   spec,
		logger: logger.With("component", "batch-dispatcher", "job_queue", spec.Queue),
		tracer: otel.Tracer("waphl-batch-dispatcher"),
	}
}

// JobName renders the job name for item within Batch's naming rules.
func (b *BatchSubmitter) JobName(item domain.WorkItem) (string, error) {
	name, err := item.Expand(b.spec.NameTemplate)
	if err != nil {
		return "", err
	}
	name = invalidJobNameChars.ReplaceAllString(name, "_")
	if len(name) > maxJobNameLen {
		name = name[:maxJobNameLen]
	}
	return name, nil
}

func (b *BatchSubmitter) environment(item domain.WorkItem) ([]batchtypes.KeyValuePair, error) {
	env := make(map[string]string, len(b.spec.Environment)+len(b.spec.EnvMap))
	for k, v := range b.spec.Environment {
		env[k] = v
	}
	for name, attr := range b.spec.EnvMap {
		if attr == "id" {
			env[name] = item.ID
			continue
		}
		v, ok := item.Attributes.Get(attr)
		if !ok {
			return nil, fmt.Errorf("%w: item %s has no attribute %q for %s", domain.ErrMalformedItem, item.ID, attr, name)
		}
		env[name] = v
	}

	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)
	pairs := make([]batchtypes.KeyValuePair, 0, len(names))
	for _, k := range names {
		pairs = append(pairs, batchtypes.KeyValuePair{Name: aws.String(k), Value: aws.String(env[k])})
	}
	return pairs, nil
}

func (b *BatchSubmitter) Dispatch(ctx context.Context, item domain.WorkItem) (string, error) {
	ctx, span := b.tracer.Start(ctx, "dispatcher.batch.SubmitJob", trace.WithAttributes(
		attribute.String("item.id", item.ID),
		attribute.String("batch.job_queue", b.spec.Queue),
	))
	defer span.End()

	name, err := b.JobName(item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid job name")
		return "", err
	}
	env, err := b.environment(item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid job environment")
		return "", err
	}

	input := &batch.SubmitJobInput{
		JobName:       aws.String(name),
		JobQueue:      aws.String(b.spec.Queue),
		JobDefinition: aws.String(b.spec.Definition),
		ContainerOverrides: &batchtypes.ContainerOverrides{
			Environment: env,
		},
	}
	if len(b.spec.Command) > 0 {
		input.ContainerOverrides.Command = b.spec.Command
	}

	out, err := b.client.SubmitJob(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit job")
		return "", fmt.Errorf("failed to submit batch job %s: %w", name, classify(err))
	}
	jobID := aws.ToString(out.JobId)
	span.SetAttributes(attribute.String("batch.job_id", jobID))
	b.logger.Info("submitted batch job", "item_id", item.ID, "job_name", name, "job_id", jobID)
	return jobID, nil
}

// QueueSender dispatches each item as one SQS message.
type QueueSender struct {
	client   SQSAPI
	queueURL string
	fields   map[string]string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewQueueSender creates an SQS dispatcher. fields maps message keys to item
// attributes ("id" is the item id); with no fields the message carries the
// id and every attribute.
func NewQueueSender(client SQSAPI, queueURL string, fields map[string]string, logger *slog.Logger) *QueueSender {
	return &QueueSender{
		client:   client,
		queueURL: queueURL,
		fields:   fields,
		logger:   logger.With("component", "sqs-dispatcher"),
		tracer:   otel.Tracer("waphl-sqs-dispatcher"),
	}
}

// Body renders the message body for item.
func (q *QueueSender) Body(item domain.WorkItem) (string, error) {
	var v any
	if len(q.fields) == 0 {
		v = struct {
			ID         string            `json:"id"`
			Attributes domain.Attributes `json:"attributes"`
		}{item.ID, item.Attributes}
	} else {
		msg := make(map[string]string, len(q.fields))
		for key, attr := range q.fields {
			if attr == "id" {
				msg[key] = item.ID
				continue
			}
			val, ok := item.Attributes.Get(attr)
			if !ok {
				return "", fmt.Errorf("%w: item %s has no attribute %q", domain.ErrMalformedItem, item.ID, attr)
			}
			msg[key] = val
		}
		v = msg
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message for %s: %w", item.ID, err)
	}
	return string(raw), nil
}

func (q *QueueSender) Dispatch(ctx context.Context, item domain.WorkItem) (string, error) {
	ctx, span := q.tracer.Start(ctx, "dispatcher.sqs.SendMessage", trace.WithAttributes(attribute.String("item.id", item.ID)))
	defer span.End()

	body, err := q.Body(item)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid message")
		return "", err
	}
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		return "", fmt.Errorf("failed to send message for %s: %w", item.ID, classify(err))
	}
	q.logger.Info("sent message", "item_id", item.ID, "message_id", aws.ToString(out.MessageId))
	return aws.ToString(out.MessageId), nil
}

// Copier dispatches an item by copying its source_uri object to the
// destination bucket under the item id.
type Copier struct {
	client     S3API
	destBucket string
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewCopier creates an S3 copy dispatcher.
func NewCopier(client S3API, destBucket string, logger *slog.Logger) *Copier {
	return &Copier{
		client:     client,
		destBucket: destBucket,
		logger:     logger.With("component", "s3-copier", "dest_bucket", destBucket),
		tracer:     otel.Tracer("waphl-s3-copier"),
	}
}

func (c *Copier) Dispatch(ctx context.Context, item domain.WorkItem) (string, error) {
	ctx, span := c.tracer.Start(ctx, "dispatcher.s3.CopyObject", trace.WithAttributes(attribute.String("item.id", item.ID)))
	defer span.End()

	src, ok := item.Attributes.Get("source_uri")
	if !ok {
		err := fmt.Errorf("%w: item %s has no source_uri", domain.ErrMalformedItem, item.ID)
		span.RecordError(err)
		return "", err
	}
	bucket, key, err := ParseS3URI(src)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedItem, err)
	}

	_, err = c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.destBucket),
		Key:        aws.String(item.ID),
		CopySource: aws.String(copySource(bucket, key)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy object")
		return "", fmt.Errorf("failed to copy %s: %w", src, classify(err))
	}
	ref := fmt.Sprintf("s3://%s/%s", c.destBucket, item.ID)
	c.logger.Info("copied object", "item_id", item.ID, "source", src)
	return ref, nil
}
