package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/opencatalog/fem/pkg/domain"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
)

// Processor readies scheduled notification requests for sending.
//
// A notification either relays the payload it carries, or broadcasts
// the current state of an existing feature named by URN. Resolving the
// URN happens here; the actual send belongs to the notify sender.
type Processor struct {
	Requests reqdb.Interface
	Features featdb.Interface
	Recorder *session.Recorder
	Logger   *log.Logger
}

func (p *Processor) Process(ctx context.Context, batch []domain.Request) error {
	if len(batch) == 0 {
		return nil
	}

	urns := []domain.URN{}
	for _, r := range batch {
		if r.Feature == nil {
			urns = append(urns, r.Urn)
		}
	}
	targets := map[domain.URN]domain.FeatureEntity{}
	if len(urns) != 0 {
		var err error
		if targets, err = p.Features.GetByUrns(ctx, urns); err != nil {
			return err
		}
	}

	ready := []int64{}
	for _, r := range batch {
		if r.Feature == nil {
			entity, found := targets[r.Urn]
			if !found {
				if err := p.Requests.MarkError(
					ctx, r.Id, domain.StepLocalError,
					fmt.Sprintf("notification target '%s' does not exist", r.Urn),
				); err != nil {
					return err
				}
				p.Recorder.Outcome(ctx, session.Of(r), domain.Error)
				continue
			}
			f := entity.Feature
			if err := p.Requests.Materialize(ctx, r.Id, &f); err != nil {
				return err
			}
		}
		ready = append(ready, r.Id)
	}

	if len(ready) != 0 {
		if _, err := p.Requests.SetStep(
			ctx, ready, domain.StepLocalScheduled, domain.StepLocalToBeNotified,
		); err != nil {
			return err
		}
	}
	return nil
}
