package mock

import (
	"context"
	"errors"

	"github.com/opencatalog/fem/pkg/domain"
	dbmock "github.com/opencatalog/fem/internal/mocks"
	kdb "github.com/opencatalog/fem/pkg/domain/session/db"
)

type SessionInterface struct {
	Impl struct {
		Increment func(ctx context.Context, info domain.SessionInfo, property domain.SessionProperty, delta int64) error
		Get       func(ctx context.Context, info domain.SessionInfo) (map[domain.SessionProperty]int64, error)
	}

	Calls struct {
		Increment dbmock.CallLog[struct {
			Info     domain.SessionInfo
			Property domain.SessionProperty
			Delta    int64
		}]
		Get dbmock.CallLog[domain.SessionInfo]
	}
}

func NewSessionInterface() *SessionInterface {
	return &SessionInterface{}
}

var _ kdb.Interface = &SessionInterface{}

func (m *SessionInterface) Increment(
	ctx context.Context, info domain.SessionInfo, property domain.SessionProperty, delta int64,
) error {
	m.Calls.Increment = append(m.Calls.Increment, struct {
		Info     domain.SessionInfo
		Property domain.SessionProperty
		Delta    int64
	}{Info: info, Property: property, Delta: delta})
	if m.Impl.Increment != nil {
		return m.Impl.Increment(ctx, info, property, delta)
	}

	panic(errors.New("it should not be called"))
}

func (m *SessionInterface) Get(
	ctx context.Context, info domain.SessionInfo,
) (map[domain.SessionProperty]int64, error) {
	m.Calls.Get = append(m.Calls.Get, info)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, info)
	}

	panic(errors.New("it should not be called"))
}
