package copy

import (
	"context"
	"fmt"
	"log"

	"github.com/opencatalog/fem/pkg/domain"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/domain/storage"
	"github.com/opencatalog/fem/pkg/lifecycle/dispatch"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

// Processor replicates one stored file of a feature onto another
// storage. The source is an existing stored location; the new location
// joins the file when the storage service confirms.
type Processor struct {
	Requests   reqdb.Interface
	Features   featdb.Interface
	Dispatcher *dispatch.Dispatcher
	Recorder   *session.Recorder
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

	orders := []dispatch.Order{}
	plain := []int64{}

	for _, r := range batch {
		entity, found := targets[r.Urn]
		if !found {
			if err := p.fail(ctx, r, fmt.Sprintf(
				"copy target '%s' does not exist", r.Urn,
			)); err != nil {
				return err
			}
			continue
		}

		file, found := entity.Feature.FileByChecksum(r.Checksum)
		if !found {
			if err := p.fail(ctx, r, fmt.Sprintf(
				"feature '%s' has no file with checksum '%s'", r.Urn, r.Checksum,
			)); err != nil {
				return err
			}
			continue
		}

		if _, alreadyThere := slices.First(file.Locations, func(l domain.FileLocation) bool {
			return l.Storage == r.TargetStorage
		}); alreadyThere {
			// already at the target storage: nothing to do.
			plain = append(plain, r.Id)
			continue
		}

		source, found := slices.First(file.Locations, func(l domain.FileLocation) bool {
			return l.Storage != ""
		})
		if !found {
			if err := p.fail(ctx, r, fmt.Sprintf(
				"file '%s' of '%s' has no stored location to copy from",
				r.Checksum, r.Urn,
			)); err != nil {
				return err
			}
			continue
		}

		orders = append(orders, dispatch.Order{
			RequestId: r.Id,
			Orders: []storage.FileStoreOrder{{
				Urn:       entity.Urn,
				Checksum:  file.Attributes.Checksum,
				Algorithm: file.Attributes.Algorithm,
				Filename:  file.Attributes.Filename,
				SourceUrl: source.Url,
				Storages:  []string{r.TargetStorage},
			}},
		})
	}

	if err := p.Dispatcher.Store(ctx, orders); err != nil {
		return err
	}
	if len(plain) != 0 {
		if _, err := p.Requests.SetStep(
			ctx, plain, domain.StepLocalScheduled, domain.StepLocalToBeNotified,
		); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) fail(ctx context.Context, r domain.Request, cause string) error {
	if err := p.Requests.MarkError(ctx, r.Id, domain.StepLocalError, cause); err != nil {
		return err
	}
	p.Recorder.Outcome(ctx, session.Of(r), domain.Error)
	return nil
}
