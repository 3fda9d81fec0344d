package callback

import (
	"context"
	"log"

	"github.com/opencatalog/fem/pkg/domain"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/domain/storage"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

// StorageHandler settles requests waiting on a storage group when the
// storage service answers.
//
// A successful store merges the settled locations into the catalog and
// steps the requests towards notification. A successful deletion drops
// the catalog rows. A failure parks every request of the group at
// REMOTE_STORAGE_ERROR, to be retried later.
type StorageHandler struct {
	Requests reqdb.Interface
	Features featdb.Interface
	Recorder *session.Recorder
	Logger   *log.Logger
}

func (h *StorageHandler) OnResult(ctx context.Context, event storage.ResultEvent) error {
	requests, err := h.Requests.FindByGroup(ctx, event.GroupId)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		// a late answer for a retried or removed group. Harmless.
		h.Logger.Printf("storage result for unknown group %s, ignored", event.GroupId)
		return nil
	}

	if !event.Success {
		cause := event.Cause
		if cause == "" {
			cause = "storage service reported a failure"
		}
		for _, r := range requests {
			if err := h.Requests.MarkError(
				ctx, r.Id, domain.StepRemoteStorageError, cause,
			); err != nil {
				return err
			}
			h.Recorder.Outcome(ctx, session.Of(r), domain.Error)
		}
		return nil
	}

	storedByChecksum := map[string][]domain.FileLocation{}
	for _, file := range event.Files {
		storedByChecksum[file.Checksum] = append(storedByChecksum[file.Checksum], file.Locations...)
	}

	deletions, stores := slices.Group(requests, func(r domain.Request) bool {
		return r.Kind == domain.KindDeletion
	})

	for _, r := range deletions {
		if err := h.Features.DeleteByUrns(ctx, []domain.URN{r.Urn}); err != nil {
			return err
		}
		if _, err := h.Requests.SetStep(
			ctx, []int64{r.Id},
			domain.StepRemoteStorageDeletionRequested, domain.StepLocalToBeNotified,
		); err != nil {
			return err
		}
	}

	if len(stores) != 0 {
		entities, err := h.Features.GetByUrns(
			ctx, slices.Map(stores, func(r domain.Request) domain.URN { return r.Urn }),
		)
		if err != nil {
			return err
		}

		for _, r := range stores {
			entity, found := entities[r.Urn]
			if !found {
				if err := h.Requests.MarkError(
					ctx, r.Id, domain.StepLocalError,
					"feature vanished while its files were being stored",
				); err != nil {
					return err
				}
				h.Recorder.Outcome(ctx, session.Of(r), domain.Error)
				continue
			}

			mergeLocations(&entity, storedByChecksum)
			if err := h.Features.Update(ctx, &entity); err != nil {
				return err
			}
			if _, err := h.Requests.SetStep(
				ctx, []int64{r.Id},
				domain.StepRemoteStorageRequested, domain.StepLocalToBeNotified,
			); err != nil {
				return err
			}
		}
	}

	ids := slices.Map(requests, func(r domain.Request) int64 { return r.Id })
	return h.Requests.AttachGroup(ctx, ids, "")
}

func mergeLocations(
	entity *domain.FeatureEntity, storedByChecksum map[string][]domain.FileLocation,
) {
	for i := range entity.Feature.Files {
		file := &entity.Feature.Files[i]
		for _, l := range storedByChecksum[file.Attributes.Checksum] {
			if !slices.Contains(file.Locations, l) {
				file.Locations = append(file.Locations, l)
			}
		}
	}
}
