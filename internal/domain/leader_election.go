package domain

import "context"

// LeaderElectionManager decides which daemon replica owns the schedule.
type LeaderElectionManager interface {
	// Campaign blocks until this node leads. The returned channel is closed
	// when leadership is lost.
	Campaign(ctx context.Context) (<-chan struct{}, error)
	Resign(ctx context.Context) error
	IsLeader() bool
}
