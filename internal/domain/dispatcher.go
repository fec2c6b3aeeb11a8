// internal/domain/dispatcher.go
package domain

import "context"

//go:generate mockgen -destination=mocks/mock_domain.go -package=mocks github.com/DOH-JDJ0303/waphl-data/internal/domain Dispatcher,ItemSource,KnownIDStore,RunRepository,Lock,Locker,LeaderElectionManager,Schedular,WritableIDStore

// Dispatcher hands one WorkItem to a downstream execution mechanism such as a
// batch job queue or a message queue. The returned ref identifies the
// submitted unit (job id, message id, object key). Implementations are not
// assumed to be idempotent.
type Dispatcher interface {
	Dispatch(ctx context.Context, item WorkItem) (ref string, err error)
}
