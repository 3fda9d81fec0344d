package mock

import (
	"context"
	"errors"

	dbmock "github.com/opencatalog/fem/internal/mocks"
	"github.com/opencatalog/fem/pkg/domain/model"
)

type Finder struct {
	Impl struct {
		LoadAttributesByModel func(ctx context.Context, model string) ([]model.AttributeDefinition, error)
	}

	Calls struct {
		LoadAttributesByModel dbmock.CallLog[string]
	}
}

func NewFinder() *Finder {
	return &Finder{}
}

var _ model.Finder = &Finder{}

func (m *Finder) LoadAttributesByModel(
	ctx context.Context, name string,
) ([]model.AttributeDefinition, error) {
	m.Calls.LoadAttributesByModel = append(m.Calls.LoadAttributesByModel, name)
	if m.Impl.LoadAttributesByModel != nil {
		return m.Impl.LoadAttributesByModel(ctx, name)
	}

	panic(errors.New("it should not be called"))
}
