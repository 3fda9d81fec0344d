package update

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/opencatalog/fem/pkg/domain"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/domain/storage"
	"github.com/opencatalog/fem/pkg/lifecycle/creation"
	"github.com/opencatalog/fem/pkg/lifecycle/dispatch"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

// Processor applies scheduled update requests onto existing features.
//
// An update patches the target in place: its URN and version do not
// change. Properties merge key by key (a null value unsets the key),
// geometry is replaced when the patch carries one, and files reconcile
// according to the request's file update mode.
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

	// updates racing a deletion of their target fail fast, instead of
	// resurrecting a half-deleted feature.
	inDeletion, err := p.Requests.UrnsInDeletion(ctx)
	if err != nil {
		return err
	}
	deletingLineages := map[uuid.UUID]bool{}
	for _, urn := range inDeletion {
		deletingLineages[urn.Id] = true
	}

	latest, byUrn, err := p.resolveTargets(ctx, batch)
	if err != nil {
		return err
	}

	orders := []dispatch.Order{}
	plain := []int64{}
	removed := []domain.FileLocation{}

	for _, r := range batch {
		target, found := p.targetOf(r, latest, byUrn)
		if !found {
			if err := p.fail(ctx, r, fmt.Sprintf(
				"update target '%s' does not exist", targetName(r),
			)); err != nil {
				return err
			}
			continue
		}
		if deletingLineages[target.Urn.Id] {
			if err := p.fail(ctx, r, fmt.Sprintf(
				"update target '%s' is being deleted", target.Urn,
			)); err != nil {
				return err
			}
			continue
		}

		fileOrders, dropped := merge(&target, r)
		removed = append(removed, dropped...)

		if err := p.Features.Update(ctx, &target); err != nil {
			return err
		}

		r.Feature.Urn = target.Urn
		r.Feature.Id = target.ProviderId
		if err := p.Requests.Materialize(ctx, r.Id, r.Feature); err != nil {
			return err
		}

		if len(fileOrders) != 0 {
			orders = append(orders, dispatch.Order{RequestId: r.Id, Orders: fileOrders})
		} else {
			plain = append(plain, r.Id)
		}
	}

	p.Dispatcher.DeleteDetached(ctx, removed)

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

func (p *Processor) resolveTargets(
	ctx context.Context, batch []domain.Request,
) (map[string]domain.FeatureEntity, map[domain.URN]domain.FeatureEntity, error) {
	providerIds := []string{}
	urns := []domain.URN{}
	for _, r := range batch {
		if !r.Feature.Urn.IsZero() {
			urns = append(urns, r.Feature.Urn)
		} else {
			providerIds = append(providerIds, r.ProviderId())
		}
	}

	latest := map[string]domain.FeatureEntity{}
	if len(providerIds) != 0 {
		var err error
		if latest, err = p.Features.LatestVersions(ctx, providerIds); err != nil {
			return nil, nil, err
		}
	}
	byUrn := map[domain.URN]domain.FeatureEntity{}
	if len(urns) != 0 {
		var err error
		if byUrn, err = p.Features.GetByUrns(ctx, urns); err != nil {
			return nil, nil, err
		}
	}
	return latest, byUrn, nil
}

func (p *Processor) targetOf(
	r domain.Request,
	latest map[string]domain.FeatureEntity,
	byUrn map[domain.URN]domain.FeatureEntity,
) (domain.FeatureEntity, bool) {
	if !r.Feature.Urn.IsZero() {
		e, ok := byUrn[r.Feature.Urn]
		return e, ok
	}
	e, ok := latest[r.ProviderId()]
	return e, ok
}

func (p *Processor) fail(ctx context.Context, r domain.Request, cause string) error {
	if err := p.Requests.MarkError(ctx, r.Id, domain.StepLocalError, cause); err != nil {
		return err
	}
	p.Recorder.Outcome(ctx, session.Of(r), domain.Error)
	return nil
}

func targetName(r domain.Request) string {
	if !r.Feature.Urn.IsZero() {
		return r.Feature.Urn.String()
	}
	return r.ProviderId()
}

// merge applies the patch of r onto target and returns the store orders
// for staging files, plus the stored locations a REPLACE dropped.
func merge(
	target *domain.FeatureEntity, r domain.Request,
) ([]storage.FileStoreOrder, []domain.FileLocation) {
	patch := r.Feature

	if target.Feature.Properties == nil && len(patch.Properties) != 0 {
		target.Feature.Properties = map[string]any{}
	}
	for key, value := range patch.Properties {
		if value == nil {
			delete(target.Feature.Properties, key)
			continue
		}
		target.Feature.Properties[key] = value
	}

	if patch.Geometry != nil {
		target.Feature.Geometry = patch.Geometry
	}

	patch.Urn = target.Urn
	incoming, fileOrders := creation.SplitFiles(patch, r.Metadata)

	mode := r.Metadata.Mode
	if mode == "" {
		mode = domain.ModeAppend
	}

	switch mode {
	case domain.ModeReplace:
		kept := map[domain.FileLocation]bool{}
		for _, file := range incoming.Files {
			for _, l := range file.Locations {
				kept[l] = true
			}
		}
		dropped := slices.Filter(
			creation.StoredLocations(target.Feature),
			func(l domain.FileLocation) bool { return !kept[l] },
		)
		target.Feature.Files = incoming.Files
		return fileOrders, dropped

	default: // APPEND
		for _, file := range incoming.Files {
			existing, ok := target.Feature.FileByChecksum(file.Attributes.Checksum)
			if !ok {
				target.Feature.Files = append(target.Feature.Files, file)
				continue
			}
			for _, l := range file.Locations {
				if !slices.Contains(existing.Locations, l) {
					existing.Locations = append(existing.Locations, l)
				}
			}
		}
		return fileOrders, nil
	}
}
