package schedule

import (
	"context"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
)

// Scheduler hands out bounded batches of registered requests.
//
// A batch is owned exclusively: picking steps its requests from
// LOCAL_DELAYED to LOCAL_SCHEDULED in the same store operation, so two
// concurrent passes never share a request.
type Scheduler struct {
	Requests reqdb.Interface

	// Delay a request settles for after registration before becoming
	// schedulable. Late events of the same lineage get a chance to
	// arrive before the first is processed.
	Delay time.Duration

	// MaxBulkSize caps a batch.
	MaxBulkSize int
}

// NextBatch picks the next batch of requests of kind, highest priority
// first, oldest first within a priority.
//
// For kinds which write feature versions, at most one request per
// provider id is picked, keeping version computation race free inside
// a batch window.
func (s *Scheduler) NextBatch(ctx context.Context, kind domain.RequestKind) ([]domain.Request, error) {
	onePerProvider := false
	switch kind {
	case domain.KindCreation, domain.KindUpdate:
		onePerProvider = true
	}

	return s.Requests.PickAndSchedule(ctx, reqdb.ScheduleQuery{
		Kind:           kind,
		Delay:          s.Delay,
		Limit:          s.MaxBulkSize,
		OnePerProvider: onePerProvider,
	})
}
