package notify

import (
	"context"
	"log"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/domain/notifier"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/events"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
)

// Sender drains requests at LOCAL_TO_BE_NOTIFIED: each one becomes a
// message to the notifier, and the request waits for the notifier's
// acknowledgement at REMOTE_NOTIFICATION_REQUESTED.
//
// With notifications inactive, picked requests complete immediately:
// the pipeline behaves the same, minus the messages.
type Sender struct {
	Requests  reqdb.Interface
	Notifier  notifier.Client
	Publisher events.Publisher
	Recorder  *session.Recorder
	Logger    *log.Logger

	// Active gates the actual sending.
	Active bool

	// MaxBulkSize caps one pass.
	MaxBulkSize int

	// Clock stamps acknowledgements. Defaults to time.Now.
	Clock func() time.Time
}

func (s *Sender) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// SendNext sends one pass worth of messages and reports how many
// requests it handled.
func (s *Sender) SendNext(ctx context.Context) (int, error) {
	picked, err := s.Requests.PickToNotify(ctx, s.MaxBulkSize)
	if err != nil {
		return 0, err
	}

	for _, r := range picked {
		if !s.Active {
			if err := complete(ctx, s.Requests, s.Publisher, s.Recorder, s.Logger, r, s.now()); err != nil {
				return 0, err
			}
			continue
		}

		if err := s.Notifier.Send(ctx, r.RequestId, MessageOf(r)); err != nil {
			if markErr := s.Requests.MarkError(
				ctx, r.Id, domain.StepRemoteNotificationError, err.Error(),
			); markErr != nil {
				return 0, markErr
			}
			s.Recorder.Outcome(ctx, session.Of(r), domain.Error)
		}
	}

	return len(picked), nil
}

// MessageOf builds the message a settled request broadcasts.
func MessageOf(r domain.Request) domain.NotificationMessage {
	message := domain.NotificationMessage{
		Urn:          urnOf(r),
		SessionOwner: r.Metadata.SessionOwner,
		Session:      r.Metadata.Session,
	}

	switch r.Kind {
	case domain.KindCreation, domain.KindReference:
		message.Action = domain.ActionCreated
		message.Feature = r.Feature
	case domain.KindUpdate, domain.KindCopy:
		message.Action = domain.ActionUpdated
		message.Feature = r.Feature
	case domain.KindDeletion:
		message.Action = domain.ActionDeleted
	default:
		message.Action = domain.ActionBroadcast
		message.Feature = r.Feature
	}

	return message
}

func urnOf(r domain.Request) domain.URN {
	if !r.Urn.IsZero() {
		return r.Urn
	}
	if r.Feature != nil {
		return r.Feature.Urn
	}
	return domain.URN{}
}

// complete settles one request as SUCCESS: the row is removed (its
// requestId becomes free again), counters, final ack.
func complete(
	ctx context.Context,
	requests reqdb.Interface,
	publisher events.Publisher,
	recorder *session.Recorder,
	logger *log.Logger,
	r domain.Request,
	now time.Time,
) error {
	if err := requests.Settle(ctx, []int64{r.Id}); err != nil {
		return err
	}
	recorder.Done(ctx, session.Of(r), r.Kind)

	ack := domain.RequestAck{
		Kind:      r.Kind,
		RequestId: r.RequestId,
		Owner:     r.Owner,
		State:     domain.Success,
		Urn:       urnOf(r),
		Date:      now,
	}
	if err := publisher.Publish(ctx, ack); err != nil {
		logger.Printf("failed to publish SUCCESS ack for request '%s': %s", r.RequestId, err)
	}
	return nil
}
