package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	"github.com/DOH-JDJ0303/waphl-data/internal/metrics"
)

// SchedularService runs the cron schedule on whichever replica holds
// leadership. A nil leaderManager schedules unconditionally.
type SchedularService struct {
	leaderManager domain.LeaderElectionManager
	schedular     domain.Schedular
	tasks         []domain.Task
	nodeID        string
	retryDelay    time.Duration
	logger        *slog.Logger
}

func NewSchedularService(leaderManager domain.LeaderElectionManager, schedular domain.Schedular, tasks []domain.Task, nodeID string, logger *slog.Logger) *SchedularService {
	return &SchedularService{
		leaderManager: leaderManager,
		schedular:     schedular,
		tasks:         tasks,
		nodeID:        nodeID,
		retryDelay:    5 * time.Second,
		logger:        logger.With("component", "schedular-service", "node_id", nodeID),
	}
}

// Start blocks until ctx is done.
func (s *SchedularService) Start(ctx context.Context) error {
	s.logger.Info("scheduler service starting", "tasks", len(s.tasks))
	if err := s.registerTasks(); err != nil {
		return err
	}

	if s.leaderManager == nil {
		return s.schedular.Start(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler service shutting down")
			return ctx.Err()
		default:
		}

		s.logger.Info("campaigning for leadership")
		lostLeadershipCh, err := s.leaderManager.Campaign(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("leadership campaign failed, retrying", "error", err, "retry_in", s.retryDelay.String())
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		s.logger.Info("became leader, starting the scheduler")
		metrics.IsLeader.WithLabelValues(s.nodeID).Set(1)
		s.lead(ctx, lostLeadershipCh)
		metrics.IsLeader.WithLabelValues(s.nodeID).Set(0)

		if ctx.Err() != nil {
			if err := s.leaderManager.Resign(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to resign leadership", "error", err)
			}
			return ctx.Err()
		}
		s.logger.Warn("lost leadership, scheduler stopped")
	}
}

func (s *SchedularService) registerTasks() error {
	for _, task := range s.tasks {
		if err := s.schedular.AddTask(task); err != nil {
			return err
		}
	}
	return nil
}

// lead runs the scheduler until leadership is lost or ctx is done.
func (s *SchedularService) lead(ctx context.Context, lost <-chan struct{}) {
	leadCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.schedular.Start(leadCtx)
	}()

	select {
	case <-lost:
	case <-ctx.Done():
	}
	cancel()
	<-done
}
