package session

import (
	"context"
	"log"

	"github.com/opencatalog/fem/pkg/domain"
	kdb "github.com/opencatalog/fem/pkg/domain/session/db"
)

// Recorder feeds the monitoring counters of ingestion sessions.
//
// Counting is best effort: a failed increment is logged and swallowed,
// it never fails the operation being counted.
type Recorder struct {
	Sessions kdb.Interface
	Logger   *log.Logger
}

func (r *Recorder) increment(
	ctx context.Context, info domain.SessionInfo, property domain.SessionProperty,
) {
	if info.Session == "" {
		return
	}
	if err := r.Sessions.Increment(ctx, info, property, 1); err != nil {
		r.Logger.Printf(
			"failed to count %s for session %s/%s: %s",
			property, info.Owner, info.Session, err,
		)
	}
}

// Outcome counts the registration outcome (granted/denied) or a later
// transition into ERROR of one request.
func (r *Recorder) Outcome(ctx context.Context, info domain.SessionInfo, state domain.RequestState) {
	if property, ok := domain.OutcomeProperty(state); ok {
		r.increment(ctx, info, property)
	}
}

// Done counts one request of the given kind reaching SUCCESS.
func (r *Recorder) Done(ctx context.Context, info domain.SessionInfo, kind domain.RequestKind) {
	if property, ok := domain.SuccessProperty(kind); ok {
		r.increment(ctx, info, property)
	}
}

// Of extracts the session identity of a request.
func Of(r domain.Request) domain.SessionInfo {
	return domain.SessionInfo{
		Owner:   r.Metadata.SessionOwner,
		Session: r.Metadata.Session,
	}
}
