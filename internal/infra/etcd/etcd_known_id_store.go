// internal/infra/etcd/etcd_known_id_store.go
package etcd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	KnownIDDir = KeyRoot + "known/"
)

type etcdKnownIDStore struct {
	kv       clientv3.KV
	pipeline string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewEtcdKnownIDStore creates the processed-id cache of one pipeline.
// Keys are /waphl/known/{pipeline}/{id}; the value is the time the id was
// recorded.
func NewEtcdKnownIDStore(kv clientv3.KV, pipeline string, logger *slog.Logger) domain.WritableIDStore {
	return &etcdKnownIDStore{
		kv:       kv,
		pipeline: pipeline,
		logger:   logger.With("component", "etcd-known-ids", "pipeline", pipeline),
		tracer:   otel.Tracer("waphl-etcd-known-ids"),
	}
}

func (s *etcdKnownIDStore) prefix() string {
	return pipelineDir(KnownIDDir, s.pipeline)
}

// KnownIDs reads every id recorded for the pipeline.
func (s *etcdKnownIDStore) KnownIDs(ctx context.Context) (domain.IDSet, error) {
	ctx, span := s.tracer.Start(ctx, "repo.etcd.KnownIDs")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", s.pipeline))

	resp, err := s.kv.Get(ctx, s.prefix(), clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list known ids from etcd")
		return nil, fmt.Errorf("%w: failed to list known ids for %s from etcd: %v", domain.ErrUpstreamListing, s.pipeline, err)
	}

	ids := make(domain.IDSet, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if id := strings.TrimPrefix(string(kv.Key), s.prefix()); id != "" {
			ids[id] = struct{}{}
		}
	}
	span.SetAttributes(attribute.Int("etcd.kv_count", len(resp.Kvs)))
	return ids, nil
}

// Add records ids as processed.
func (s *etcdKnownIDStore) Add(ctx context.Context, ids ...string) error {
	ctx, span := s.tracer.Start(ctx, "repo.etcd.AddKnownIDs")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline", s.pipeline), attribute.Int("ids", len(ids)))

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty id", domain.ErrMalformedItem)
		}
		if _, err := s.kv.Put(ctx, s.prefix()+id, now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to put known id to etcd")
			return fmt.Errorf("failed to save known id %s to etcd: %w", id, err)
		}
	}
	s.logger.Info("recorded known ids", "count", len(ids))
	return nil
}
