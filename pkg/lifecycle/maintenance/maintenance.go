package maintenance

import (
	"context"
	"log"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/domain/storage"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

// Manager covers the operator-facing lifecycle operations: retrying
// and removing failed requests, aborting stuck ones, releasing parked
// deletions, and sweeping orphans of crashed passes.
type Manager struct {
	Requests reqdb.Interface
	Features featdb.Interface
	Storage  storage.Client
	Logger   *log.Logger

	// StaleAfter is how long a LOCAL_SCHEDULED request may sit
	// untouched before a sweep sends it back to the queue.
	StaleAfter time.Duration

	// Clock freezes "now" for a whole retry batch, so paging over the
	// moving request_date sort key stays stable. Defaults to time.Now.
	Clock func() time.Time
}

// maxRetryPages bounds one RetryAllErrors run. A page of requests
// whose retry never takes (rows changed under the search, say) would
// otherwise loop forever.
const maxRetryPages = 50

func (m *Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

// Retry re-enqueues failed requests.
//
// Outstanding storage groups of the retried requests are withdrawn
// first, so a late answer cannot land on a request that moved on.
// Requests not at a retryable step are skipped; the retried count is
// returned.
func (m *Manager) Retry(ctx context.Context, ids []int64) (int64, error) {
	found, err := m.Requests.Get(ctx, ids)
	if err != nil {
		return 0, err
	}

	groupIds := []string{}
	for _, r := range found {
		if r.Step.Retryable() && r.GroupId != "" {
			groupIds = append(groupIds, r.GroupId)
		}
	}
	if len(groupIds) != 0 {
		if err := m.Storage.Cancel(ctx, groupIds); err != nil {
			// the groups already failed remotely; a failed cancel only
			// risks a late answer, which callbacks ignore.
			m.Logger.Printf("failed to cancel storage groups %v: %s", groupIds, err)
		}
	}

	return m.Requests.UpdateForRetry(ctx, ids, m.now())
}

// RetryAllErrors re-enqueues every failed request of kind, page by
// page, and returns how many it retried.
//
// The frozen retry timestamp pushes retried requests behind the search
// window, so paging with a fixed offset converges. At most
// maxRetryPages pages are walked in one run; what is left waits for
// the next one.
func (m *Manager) RetryAllErrors(ctx context.Context, kind domain.RequestKind, pageSize int) (int64, error) {
	total := int64(0)
	for page := 0; page < maxRetryPages; page++ {
		failed, err := m.Requests.Find(ctx, reqdb.Filters{
			Kind:   kind,
			States: []domain.RequestState{domain.Error},
			Steps: []domain.RequestStep{
				domain.StepLocalError,
				domain.StepRemoteStorageError,
				domain.StepRemoteNotificationError,
			},
		}, reqdb.Page{Limit: pageSize})
		if err != nil {
			return total, err
		}
		if len(failed) == 0 {
			return total, nil
		}

		retried, err := m.Retry(
			ctx, slices.Map(failed, func(r domain.Request) int64 { return r.Id }),
		)
		total += retried
		if err != nil {
			return total, err
		}
		if retried == 0 {
			return total, nil
		}
	}
	return total, nil
}

// Delete removes requests which are not in flight and returns the
// removed count.
//
// Outstanding storage groups of the removed requests are withdrawn
// first, as in Retry: a late answer must not find its request gone.
func (m *Manager) Delete(ctx context.Context, ids []int64) (int64, error) {
	found, err := m.Requests.Get(ctx, ids)
	if err != nil {
		return 0, err
	}

	groupIds := []string{}
	for _, r := range found {
		if !r.Step.Processing() && r.GroupId != "" {
			groupIds = append(groupIds, r.GroupId)
		}
	}
	if len(groupIds) != 0 {
		if err := m.Storage.Cancel(ctx, groupIds); err != nil {
			m.Logger.Printf("failed to cancel storage groups %v: %s", groupIds, err)
		}
	}

	return m.Requests.DeleteByIds(ctx, ids)
}

// Abort forces one request into ERROR, unless it is in flight.
func (m *Manager) Abort(ctx context.Context, id int64) error {
	return m.Requests.Abort(ctx, id, "aborted by operator")
}

// AckDissemination records the external dissemination acknowledgement
// of urn and releases deletion requests parked on it. Returns how many
// requests woke up.
func (m *Manager) AckDissemination(ctx context.Context, urn domain.URN) (int64, error) {
	cleared, err := m.Features.AckDissemination(ctx, urn)
	if err != nil {
		return 0, err
	}
	if !cleared {
		return 0, nil
	}
	return m.Requests.WakeBlocked(ctx, urn)
}

// SweepStale requeues LOCAL_SCHEDULED requests abandoned by a crashed
// pass and returns the requeued count.
func (m *Manager) SweepStale(ctx context.Context) (int64, error) {
	if m.StaleAfter <= 0 {
		return 0, nil
	}
	return m.Requests.RequeueStale(ctx, m.StaleAfter)
}
