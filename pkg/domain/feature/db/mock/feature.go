package mock

import (
	"context"
	"errors"

	"github.com/opencatalog/fem/pkg/domain"
	kdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	dbmock "github.com/opencatalog/fem/internal/mocks"
)

type FeatureInterface struct {
	Impl struct {
		LatestVersions       func(ctx context.Context, providerIds []string) (map[string]domain.FeatureEntity, error)
		SaveAll              func(ctx context.Context, entities []*domain.FeatureEntity) error
		GetByUrns            func(ctx context.Context, urns []domain.URN) (map[domain.URN]domain.FeatureEntity, error)
		Update               func(ctx context.Context, entity *domain.FeatureEntity) error
		ExistingUrns         func(ctx context.Context, urns []domain.URN) (map[domain.URN]bool, error)
		DeleteByUrns         func(ctx context.Context, urns []domain.URN) error
		DisseminationPending func(ctx context.Context, urn domain.URN) (bool, error)
		AckDissemination     func(ctx context.Context, urn domain.URN) (bool, error)
	}

	Calls struct {
		LatestVersions       dbmock.CallLog[[]string]
		SaveAll              dbmock.CallLog[[]*domain.FeatureEntity]
		GetByUrns            dbmock.CallLog[[]domain.URN]
		Update               dbmock.CallLog[*domain.FeatureEntity]
		ExistingUrns         dbmock.CallLog[[]domain.URN]
		DeleteByUrns         dbmock.CallLog[[]domain.URN]
		DisseminationPending dbmock.CallLog[domain.URN]
		AckDissemination     dbmock.CallLog[domain.URN]
	}
}

func NewFeatureInterface() *FeatureInterface {
	return &FeatureInterface{}
}

var _ kdb.Interface = &FeatureInterface{}

func (m *FeatureInterface) LatestVersions(
	ctx context.Context, providerIds []string,
) (map[string]domain.FeatureEntity, error) {
	m.Calls.LatestVersions = append(m.Calls.LatestVersions, providerIds)
	if m.Impl.LatestVersions != nil {
		return m.Impl.LatestVersions(ctx, providerIds)
	}

	panic(errors.New("it should not be called"))
}

func (m *FeatureInterface) SaveAll(ctx context.Context, entities []*domain.FeatureEntity) error {
	m.Calls.SaveAll = append(m.Calls.SaveAll, entities)
	if m.Impl.SaveAll != nil {
		return m.Impl.SaveAll(ctx, entities)
	}

	panic(errors.New("it should not be called"))
}

func (m *FeatureInterface) GetByUrns(
	ctx context.Context, urns []domain.URN,
) (map[domain.URN]domain.FeatureEntity, error) {
	m.Calls.GetByUrns = append(m.Calls.GetByUrns, urns)
	if m.Impl.GetByUrns != nil {
		return m.Impl.GetByUrns(ctx, urns)
	}

	panic(errors.New("it should not be called"))
}

func (m *FeatureInterface) Update(ctx context.Context, entity *domain.FeatureEntity) error {
	m.Calls.Update = append(m.Calls.Update, entity)
	if m.Impl.Update != nil {
		return m.Impl.Update(ctx, entity)
	}

	panic(errors.New("it should not be called"))
}

func (m *FeatureInterface) ExistingUrns(
	ctx context.Context, urns []domain.URN,
) (map[domain.URN]bool, error) {
	m.Calls.ExistingUrns = append(m.Calls.ExistingUrns, urns)
	if m.Impl.ExistingUrns != nil {
		return m.Impl.ExistingUrns(ctx, urns)
	}

	panic(errors.New("it should not be called"))
}

func (m *FeatureInterface) DeleteByUrns(ctx context.Context, urns []domain.URN) error {
	m.Calls.DeleteByUrns = append(m.Calls.DeleteByUrns, urns)
	if m.Impl.DeleteByUrns != nil {
		return m.Impl.DeleteByUrns(ctx, urns)
	}

	panic(errors.New("it should not be called"))
}

func (m *FeatureInterface) DisseminationPending(ctx context.Context, urn domain.URN) (bool, error) {
	m.Calls.DisseminationPending = append(m.Calls.DisseminationPending, urn)
	if m.Impl.DisseminationPending != nil {
		return m.Impl.DisseminationPending(ctx, urn)
	}

	panic(errors.New("it should not be called"))
}

func (m *FeatureInterface) AckDissemination(ctx context.Context, urn domain.URN) (bool, error) {
	m.Calls.AckDissemination = append(m.Calls.AckDissemination, urn)
	if m.Impl.AckDissemination != nil {
		return m.Impl.AckDissemination(ctx, urn)
	}

	panic(errors.New("it should not be called"))
}
