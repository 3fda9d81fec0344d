package db

import (
	"context"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
)

// ScheduleQuery selects the next batch a scheduler pass takes ownership of.
type ScheduleQuery struct {
	Kind domain.RequestKind

	// Delay requests must have settled for before being scheduled.
	// A request registered at T is not picked before T+Delay.
	Delay time.Duration

	// Limit caps the batch size. Zero or negative means "no batch".
	Limit int

	// OnePerProvider keeps at most one request per provider id in the
	// batch, so concurrent versions of a lineage never share a batch.
	OnePerProvider bool
}

// Filters narrows a Find.
//
// Zero-valued fields do not filter.
type Filters struct {
	Kind         domain.RequestKind
	States       []domain.RequestState
	Steps        []domain.RequestStep
	Owner        string
	RequestId    string
	SessionOwner string
	Session      string
}

type Page struct {
	Offset int
	Limit  int
}

type Interface interface {
	// ExistingRequestIds returns which of requestIds are already
	// registered for kind. Used by registration to deny duplicates
	// with a single round trip per batch.
	ExistingRequestIds(ctx context.Context, kind domain.RequestKind, requestIds []string) (map[string]bool, error)

	// SaveAll persists requests as new rows, in one transaction.
	// Ids are assigned by the store and written back into requests.
	SaveAll(ctx context.Context, requests []*domain.Request) error

	// Get retrieves requests by id. Missing ids are absent from the map.
	Get(ctx context.Context, ids []int64) (map[int64]domain.Request, error)

	// PickAndSchedule atomically steps up to query.Limit requests of
	// query.Kind from LOCAL_DELAYED to LOCAL_SCHEDULED and returns them.
	//
	// Ordering is priority first (HIGH before LOW), then request date.
	// Rows locked by a concurrent pass are skipped, so two schedulers
	// never own the same request.
	PickAndSchedule(ctx context.Context, query ScheduleQuery) ([]domain.Request, error)

	// SetStep moves requests from step `from` to step `to`.
	//
	// Rows not at `from` are left untouched; the count of moved rows is
	// returned. This makes callback races harmless: a late storage
	// callback for an already-retried request moves nothing.
	SetStep(ctx context.Context, ids []int64, from, to domain.RequestStep) (int64, error)

	// MarkError puts the request in state ERROR at the given step,
	// remembers the step as its last failed one, and appends causes.
	MarkError(ctx context.Context, id int64, step domain.RequestStep, causes ...string) error

	// Materialize writes the resolved payload of a request back: the
	// feature with its assigned URN. Used once processing determined
	// the version a creation produces, or once a factory built the
	// feature of a reference request.
	Materialize(ctx context.Context, id int64, feature *domain.Feature) error

	// AttachGroup tags requests with the group id of an in-flight
	// storage operation, so its callback can find them.
	AttachGroup(ctx context.Context, ids []int64, groupId string) error

	// FindByGroup retrieves the requests waiting on groupId.
	FindByGroup(ctx context.Context, groupId string) ([]domain.Request, error)

	// Find searches requests, newest first, paged.
	Find(ctx context.Context, filters Filters, page Page) ([]domain.Request, error)

	// PickToNotify atomically steps up to limit requests from
	// LOCAL_TO_BE_NOTIFIED to REMOTE_NOTIFICATION_REQUESTED and returns
	// them, oldest first. Rows locked by a concurrent pass are skipped.
	PickToNotify(ctx context.Context, limit int) ([]domain.Request, error)

	// UpdateForRetry re-enqueues failed requests: each request at a
	// retryable step goes back to the step its failure maps to, state
	// becomes GRANTED again, recorded errors are cleared and its
	// request date is bumped to now, so a
	// paging caller never re-selects the same rows. Requests at
	// non-retryable steps are skipped. Returns the retried count.
	UpdateForRetry(ctx context.Context, ids []int64, now time.Time) (int64, error)

	// DeleteByIds removes requests which are not in flight.
	// Returns the deleted count.
	DeleteByIds(ctx context.Context, ids []int64) (int64, error)

	// Settle removes requests which reached their terminal outcome.
	// The requestIds become free for reuse. Unlike DeleteByIds, no
	// in-flight guard applies: the settling caller owns the rows.
	Settle(ctx context.Context, ids []int64) error

	// Abort forces one non-in-flight request into ERROR / LOCAL_ERROR.
	// Returns ErrInvalidRequestStateChanging when it is processing.
	Abort(ctx context.Context, id int64, cause string) error

	// UrnsInDeletion lists the target URNs of deletion requests not yet
	// settled, so concurrent updates on them can be failed early.
	UrnsInDeletion(ctx context.Context) ([]domain.URN, error)

	// WakeBlocked releases deletion requests parked at
	// WAITING_BLOCKING_DISSEMINATION on urn back to LOCAL_DELAYED.
	// Returns the released count.
	WakeBlocked(ctx context.Context, urn domain.URN) (int64, error)

	// RequeueStale sends LOCAL_SCHEDULED requests untouched for longer
	// than olderThan back to LOCAL_DELAYED. Such rows are orphans of a
	// crashed processor pass. Returns the requeued count.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}
