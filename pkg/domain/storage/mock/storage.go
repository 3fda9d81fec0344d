package mock

import (
	"context"
	"errors"

	dbmock "github.com/opencatalog/fem/internal/mocks"
	"github.com/opencatalog/fem/pkg/domain/storage"
)

type Client struct {
	Impl struct {
		Store  func(ctx context.Context, req storage.StoreRequest) error
		Delete func(ctx context.Context, req storage.DeleteRequest) error
		Cancel func(ctx context.Context, groupIds []string) error
	}

	Calls struct {
		Store  dbmock.CallLog[storage.StoreRequest]
		Delete dbmock.CallLog[storage.DeleteRequest]
		Cancel dbmock.CallLog[[]string]
	}
}

func NewClient() *Client {
	return &Client{}
}

var _ storage.Client = &Client{}

func (m *Client) Store(ctx context.Context, req storage.StoreRequest) error {
	m.Calls.Store = append(m.Calls.Store, req)
	if m.Impl.Store != nil {
		return m.Impl.Store(ctx, req)
	}

	panic(errors.New("it should not be called"))
}

func (m *Client) Delete(ctx context.Context, req storage.DeleteRequest) error {
	m.Calls.Delete = append(m.Calls.Delete, req)
	if m.Impl.Delete != nil {
		return m.Impl.Delete(ctx, req)
	}

	panic(errors.New("it should not be called"))
}

func (m *Client) Cancel(ctx context.Context, groupIds []string) error {
	m.Calls.Cancel = append(m.Calls.Cancel, groupIds)
	if m.Impl.Cancel != nil {
		return m.Impl.Cancel(ctx, groupIds)
	}

	panic(errors.New("it should not be called"))
}
