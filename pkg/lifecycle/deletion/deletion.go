package deletion

import (
	"context"
	"log"

	"github.com/opencatalog/fem/pkg/domain"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/lifecycle/creation"
	"github.com/opencatalog/fem/pkg/lifecycle/dispatch"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

// Processor removes features targeted by scheduled deletion requests.
//
// A target still awaiting an external dissemination acknowledgement
// parks its request at WAITING_BLOCKING_DISSEMINATION until the
// acknowledgement arrives (or the request forces through). Stored files
// are removed by the storage service first; the catalog row falls only
// when the service confirms.
type Processor struct {
	Requests   reqdb.Interface
	Features   featdb.Interface
	Dispatcher *dispatch.Dispatcher
	Logger     *log.Logger
}

func (p *Processor) Process(ctx context.Context, batch []domain.Request) error {
	if len(batch) == 0 {
		return nil
	}

	targets, err := p.Features.GetByUrns(
		ctx, slices.Map(batch, func(r domain.Request) domain.URN { return r.Urn }),
	)
	if err != nil {
		return err
	}

	orders := []dispatch.DeleteOrder{}

	for _, r := range batch {
		entity, found := targets[r.Urn]
		if !found {
			// the target is already gone. Settle as done: the outcome
			// the caller asked for is the state of the catalog.
			p.Logger.Printf("deletion target '%s' is already deleted, settling", r.Urn)
			if _, err := p.Requests.SetStep(
				ctx, []int64{r.Id}, domain.StepLocalScheduled, domain.StepLocalToBeNotified,
			); err != nil {
				return err
			}
			continue
		}

		if entity.DisseminationPending && !r.Metadata.Force {
			if _, err := p.Requests.SetStep(
				ctx, []int64{r.Id},
				domain.StepLocalScheduled, domain.StepWaitingBlockingDissemination,
			); err != nil {
				return err
			}
			continue
		}

		if locations := creation.StoredLocations(entity.Feature); len(locations) != 0 {
			orders = append(orders, dispatch.DeleteOrder{
				RequestId: r.Id, Locations: locations,
			})
			continue
		}

		// nothing stored: the catalog row falls right away.
		if err := p.Features.DeleteByUrns(ctx, []domain.URN{r.Urn}); err != nil {
			return err
		}
		if _, err := p.Requests.SetStep(
			ctx, []int64{r.Id}, domain.StepLocalScheduled, domain.StepLocalToBeNotified,
		); err != nil {
			return err
		}
	}

	return p.Dispatcher.Delete(ctx, orders)
}
