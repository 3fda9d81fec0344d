package creation

import (
	"context"
	"log"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/domain/storage"
	"github.com/opencatalog/fem/pkg/lifecycle/dispatch"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

// Processor turns scheduled creation requests into feature versions.
//
// Versions are computed against the lineage's current last version:
// the first version of a provider id is 1, every later one is previous
// plus one. The scheduler guarantees at most one request per provider
// id in a batch, so the computation cannot race inside it.
type Processor struct {
	Requests   reqdb.Interface
	Features   featdb.Interface
	Dispatcher *dispatch.Dispatcher
	Logger     *log.Logger

	// Clock dates cascading deletion requests. Defaults to time.Now.
	Clock func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

func (p *Processor) Process(ctx context.Context, batch []domain.Request) error {
	if len(batch) == 0 {
		return nil
	}

	providerIds := slices.KeysOf(slices.ToMap(
		batch, func(r domain.Request) string { return r.ProviderId() },
	))
	latest, err := p.Features.LatestVersions(ctx, providerIds)
	if err != nil {
		return err
	}

	entities := []*domain.FeatureEntity{}
	materialized := map[int64]*domain.Feature{}
	orders := []dispatch.Order{}
	plain := []int64{}
	cascades := []*domain.Request{}

	for _, r := range batch {
		f := r.Feature

		// a retry after a storage failure already owns its version: the
		// entity landed before the files failed. Only the files remain.
		if resuming(r) {
			if _, fileOrders := SplitFiles(f, r.Metadata); len(fileOrders) != 0 {
				orders = append(orders, dispatch.Order{RequestId: r.Id, Orders: fileOrders})
			} else {
				plain = append(plain, r.Id)
			}
			continue
		}

		version := 1
		var previousUrn *domain.URN
		if prev, exists := latest[f.Id]; exists {
			version = prev.Version + 1
			u := prev.Urn
			previousUrn = &u

			// an overriding creation retires the previous version through
			// the deletion pipeline, so its row and stored files settle
			// with the usual acknowledgement bookkeeping.
			if r.Metadata.Override {
				cascades = append(cascades, supersedeDeletion(r, prev.Urn, p.now()))
			}
		}
		f.Urn = domain.NewURN(f.EntityType, r.Owner, f.Id, version)

		stored, fileOrders := SplitFiles(f, r.Metadata)
		entities = append(entities, &domain.FeatureEntity{
			Urn:                f.Urn,
			ProviderId:         f.Id,
			Version:            version,
			SessionOwner:       r.Metadata.SessionOwner,
			Session:            r.Metadata.Session,
			Feature:            stored,
			PreviousVersionUrn: previousUrn,
			Last:               true,

			DisseminationPending: r.Metadata.BlockingDissemination,
		})
		materialized[r.Id] = f

		if len(fileOrders) != 0 {
			orders = append(orders, dispatch.Order{RequestId: r.Id, Orders: fileOrders})
		} else {
			plain = append(plain, r.Id)
		}
	}

	if err := p.Features.SaveAll(ctx, entities); err != nil {
		return err
	}
	for id, f := range materialized {
		if err := p.Requests.Materialize(ctx, id, f); err != nil {
			return err
		}
	}

	if len(cascades) != 0 {
		if err := p.Requests.SaveAll(ctx, cascades); err != nil {
			return err
		}
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

// supersedeDeletion builds the deletion request retiring the version an
// overriding creation replaces.
func supersedeDeletion(r domain.Request, urn domain.URN, now time.Time) *domain.Request {
	return &domain.Request{
		Kind:        domain.KindDeletion,
		RequestId:   r.RequestId + "+supersede",
		Owner:       r.Owner,
		RequestDate: now,
		State:       domain.Granted,
		Step:        domain.StepLocalDelayed,
		Priority:    r.Priority,
		Metadata:    r.Metadata,
		Urn:         urn,
	}
}

// resuming is true when r failed after its entity was created, so a
// new pass must not create another one.
func resuming(r domain.Request) bool {
	return r.LastExecErrorStep != nil &&
		*r.LastExecErrorStep == domain.StepRemoteStorageError &&
		r.Feature != nil && !r.Feature.Urn.IsZero()
}

// SplitFiles separates the payload's files into what the catalog stores
// now and what the storage service must make durable first.
//
// The returned feature keeps only locations already on a storage;
// staging locations (Storage == "") become file store orders and join
// the catalog when the storage service answers.
func SplitFiles(f *domain.Feature, metadata domain.Metadata) (domain.Feature, []storage.FileStoreOrder) {
	stored := *f
	stored.Files = nil
	orders := []storage.FileStoreOrder{}

	storages := slices.Map(metadata.Storages, func(s domain.StorageMetadata) string {
		return s.Storage
	})

	for _, file := range f.Files {
		kept := slices.Filter(file.Locations, func(l domain.FileLocation) bool {
			return l.Storage != ""
		})
		stored.Files = append(stored.Files, domain.FeatureFile{
			Attributes: file.Attributes, Locations: kept,
		})

		if staging, ok := slices.First(file.Locations, func(l domain.FileLocation) bool {
			return l.Storage == ""
		}); ok {
			orders = append(orders, storage.FileStoreOrder{
				Urn:       f.Urn,
				Checksum:  file.Attributes.Checksum,
				Algorithm: file.Attributes.Algorithm,
				Filename:  file.Attributes.Filename,
				SourceUrl: staging.Url,
				Storages:  storages,
			})
		}
	}

	return stored, orders
}

// StoredLocations lists every on-storage location of f.
func StoredLocations(f domain.Feature) []domain.FileLocation {
	locations := []domain.FileLocation{}
	for _, file := range f.Files {
		locations = append(locations, slices.Filter(
			file.Locations,
			func(l domain.FileLocation) bool { return l.Storage != "" },
		)...)
	}
	return locations
}
