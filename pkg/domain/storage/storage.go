package storage

import (
	"context"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/utils/cmp"
)

// MaxRequestPerGroup caps how many file orders one group may carry.
// Bigger batches are split into several groups.
const MaxRequestPerGroup = 100

// FileStoreOrder asks the storage service to make one file durable.
type FileStoreOrder struct {
	// Urn of the feature version the file belongs to.
	Urn domain.URN `json:"urn"`

	Checksum  string `json:"checksum"`
	Algorithm string `json:"algorithm"`
	Filename  string `json:"filename"`

	// SourceUrl is the staging location the file is fetched from.
	SourceUrl string `json:"sourceUrl"`

	// Storages to put the file at. Empty means the service's default.
	Storages []string `json:"storages,omitempty"`
}

func (o FileStoreOrder) Equal(other FileStoreOrder) bool {
	return o.Urn == other.Urn &&
		o.Checksum == other.Checksum &&
		o.Algorithm == other.Algorithm &&
		o.Filename == other.Filename &&
		o.SourceUrl == other.SourceUrl &&
		cmp.SliceContentEq(o.Storages, other.Storages)
}

// StoreRequest is one group of file store orders.
//
// The service answers asynchronously: a ResultEvent carrying GroupId
// arrives on the callback endpoint once the whole group settled.
type StoreRequest struct {
	GroupId string           `json:"groupId"`
	Orders  []FileStoreOrder `json:"orders"`
}

// DeleteRequest asks the storage service to drop stored locations.
type DeleteRequest struct {
	GroupId   string                `json:"groupId"`
	Locations []domain.FileLocation `json:"locations"`
}

// StoredFile is the settled location set of one file, keyed by checksum.
type StoredFile struct {
	Checksum  string                `json:"checksum"`
	Locations []domain.FileLocation `json:"locations"`
}

// ResultEvent is the storage service's asynchronous answer for a group.
type ResultEvent struct {
	GroupId string       `json:"groupId"`
	Success bool         `json:"success"`
	Files   []StoredFile `json:"files,omitempty"`
	Cause   string       `json:"cause,omitempty"`
}

type Client interface {
	// Store submits one group of store orders. The answer comes later
	// as a ResultEvent on the callback endpoint.
	Store(ctx context.Context, req StoreRequest) error

	// Delete submits one group of location removals. Answered the same
	// way as Store.
	Delete(ctx context.Context, req DeleteRequest) error

	// Cancel withdraws groups whose requests were retried or removed
	// before the service answered. Unknown group ids are ignored.
	Cancel(ctx context.Context, groupIds []string) error
}
