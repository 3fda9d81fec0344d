package dispatch

import (
	"context"
	"log"

	"github.com/opencatalog/fem/pkg/domain"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/domain/storage"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

// Order is the storage work of one request: every file it needs stored.
// A request's orders always travel in one group, so the request waits
// on exactly one callback.
type Order struct {
	RequestId int64
	Orders    []storage.FileStoreOrder
}

// DeleteOrder is the location removal work of one request.
type DeleteOrder struct {
	RequestId int64
	Locations []domain.FileLocation
}

// Dispatcher hands storage work to the storage service, group by group,
// and steps the owning requests into the matching remote-wait step
// before each send, so a fast callback cannot miss them.
type Dispatcher struct {
	Requests reqdb.Interface
	Storage  storage.Client

	// NewGroupId mints correlation ids for groups.
	NewGroupId func() string

	Logger *log.Logger
}

// pack splits orders into groups of at most storage.MaxRequestPerGroup
// file orders, never splitting one request across groups.
func pack(orders []Order) [][]Order {
	groups := [][]Order{}
	current := []Order{}
	size := 0
	for _, o := range orders {
		if size != 0 && storage.MaxRequestPerGroup < size+len(o.Orders) {
			groups = append(groups, current)
			current, size = []Order{}, 0
		}
		current = append(current, o)
		size += len(o.Orders)
	}
	if len(current) != 0 {
		groups = append(groups, current)
	}
	return groups
}

// Store sends store orders. Requests step from LOCAL_SCHEDULED to
// REMOTE_STORAGE_REQUESTED; if the send itself fails, they are marked
// in error at REMOTE_STORAGE_ERROR instead.
func (d *Dispatcher) Store(ctx context.Context, orders []Order) error {
	for _, group := range pack(orders) {
		groupId := d.NewGroupId()
		ids := slices.Map(group, func(o Order) int64 { return o.RequestId })

		if err := d.Requests.AttachGroup(ctx, ids, groupId); err != nil {
			return err
		}
		if _, err := d.Requests.SetStep(
			ctx, ids, domain.StepLocalScheduled, domain.StepRemoteStorageRequested,
		); err != nil {
			return err
		}

		fileOrders := slices.Concat(slices.Map(group, func(o Order) []storage.FileStoreOrder {
			return o.Orders
		})...)
		if err := d.Storage.Store(ctx, storage.StoreRequest{
			GroupId: groupId, Orders: fileOrders,
		}); err != nil {
			d.Logger.Printf("failed to submit store group %s: %s", groupId, err)
			for _, id := range ids {
				if markErr := d.Requests.MarkError(
					ctx, id, domain.StepRemoteStorageError, err.Error(),
				); markErr != nil {
					return markErr
				}
			}
		}
	}
	return nil
}

// Delete sends location removals, one group per request. Requests step
// from LOCAL_SCHEDULED to REMOTE_STORAGE_DELETION_REQUESTED.
func (d *Dispatcher) Delete(ctx context.Context, orders []DeleteOrder) error {
	for _, o := range orders {
		groupId := d.NewGroupId()
		ids := []int64{o.RequestId}

		if err := d.Requests.AttachGroup(ctx, ids, groupId); err != nil {
			return err
		}
		if _, err := d.Requests.SetStep(
			ctx, ids, domain.StepLocalScheduled, domain.StepRemoteStorageDeletionRequested,
		); err != nil {
			return err
		}

		if err := d.Storage.Delete(ctx, storage.DeleteRequest{
			GroupId: groupId, Locations: o.Locations,
		}); err != nil {
			d.Logger.Printf("failed to submit delete group %s: %s", groupId, err)
			if markErr := d.Requests.MarkError(
				ctx, o.RequestId, domain.StepRemoteStorageError, err.Error(),
			); markErr != nil {
				return markErr
			}
		}
	}
	return nil
}

// DeleteDetached asks for location removals nobody waits on: cleanup of
// superseded versions or of locations dropped by a REPLACE update.
// Failures are logged only.
func (d *Dispatcher) DeleteDetached(ctx context.Context, locations []domain.FileLocation) {
	if len(locations) == 0 {
		return
	}
	groupId := d.NewGroupId()
	if err := d.Storage.Delete(ctx, storage.DeleteRequest{
		GroupId: groupId, Locations: locations,
	}); err != nil {
		d.Logger.Printf("failed to submit detached delete group %s: %s", groupId, err)
	}
}
