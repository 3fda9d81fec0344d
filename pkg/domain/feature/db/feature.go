package db

import (
	"context"

	"github.com/opencatalog/fem/pkg/domain"
)

type Interface interface {
	// LatestVersions retrieves, for each provider id, its version
	// currently flagged last. Provider ids with no feature yet are
	// absent from the map.
	LatestVersions(ctx context.Context, providerIds []string) (map[string]domain.FeatureEntity, error)

	// SaveAll inserts entities as new feature versions, in one
	// transaction. For each entity flagged last, the flag is cleared
	// from every other version of the same provider id, so a lineage
	// never holds two last versions, even observed mid-batch.
	SaveAll(ctx context.Context, entities []*domain.FeatureEntity) error

	// GetByUrns retrieves features by URN. Missing URNs are absent
	// from the map.
	GetByUrns(ctx context.Context, urns []domain.URN) (map[domain.URN]domain.FeatureEntity, error)

	// Update overwrites the stored payload and flags of entity,
	// matched by URN. Returns ErrMissing when the URN is unknown.
	Update(ctx context.Context, entity *domain.FeatureEntity) error

	// ExistingUrns returns which of urns are present in the catalog.
	ExistingUrns(ctx context.Context, urns []domain.URN) (map[domain.URN]bool, error)

	// DeleteByUrns removes features. For each removed version flagged
	// last, the flag moves to the latest remaining version of the same
	// provider id, if any.
	DeleteByUrns(ctx context.Context, urns []domain.URN) error

	// DisseminationPending tells whether urn still awaits an external
	// dissemination acknowledgement.
	DisseminationPending(ctx context.Context, urn domain.URN) (bool, error)

	// AckDissemination clears the dissemination flag of urn.
	// Returns true when the flag was set.
	AckDissemination(ctx context.Context, urn domain.URN) (bool, error)
}
