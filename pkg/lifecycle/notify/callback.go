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

// AckHandler settles requests waiting on the notifier's answer.
type AckHandler struct {
	Requests  reqdb.Interface
	Publisher events.Publisher
	Recorder  *session.Recorder
	Logger    *log.Logger

	// Clock stamps acknowledgements. Defaults to time.Now.
	Clock func() time.Time
}

func (h *AckHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

func (h *AckHandler) OnAck(ctx context.Context, event notifier.AckEvent) error {
	waiting, err := h.Requests.Find(ctx, reqdb.Filters{
		RequestId: event.RequestId,
		Steps:     []domain.RequestStep{domain.StepRemoteNotificationRequested},
	}, reqdb.Page{Limit: 10})
	if err != nil {
		return err
	}
	if len(waiting) == 0 {
		h.Logger.Printf("notifier ack for unknown request '%s', ignored", event.RequestId)
		return nil
	}

	for _, r := range waiting {
		if event.Success {
			if err := complete(
				ctx, h.Requests, h.Publisher, h.Recorder, h.Logger, r, h.now(),
			); err != nil {
				return err
			}
			continue
		}

		cause := event.Cause
		if cause == "" {
			cause = "notifier reported a failure"
		}
		if err := h.Requests.MarkError(
			ctx, r.Id, domain.StepRemoteNotificationError, cause,
		); err != nil {
			return err
		}
		h.Recorder.Outcome(ctx, session.Of(r), domain.Error)
	}

	return nil
}
