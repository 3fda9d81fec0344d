package mock

import (
	"context"
	"errors"

	"github.com/opencatalog/fem/pkg/domain"
	dbmock "github.com/opencatalog/fem/internal/mocks"
	"github.com/opencatalog/fem/pkg/domain/notifier"
)

type Client struct {
	Impl struct {
		Send func(ctx context.Context, requestId string, message domain.NotificationMessage) error
	}

	Calls struct {
		Send dbmock.CallLog[struct {
			RequestId string
			Message   domain.NotificationMessage
		}]
	}
}

func NewClient() *Client {
	return &Client{}
}

var _ notifier.Client = &Client{}

func (m *Client) Send(
	ctx context.Context, requestId string, message domain.NotificationMessage,
) error {
	m.Calls.Send = append(m.Calls.Send, struct {
		RequestId string
		Message   domain.NotificationMessage
	}{RequestId: requestId, Message: message})
	if m.Impl.Send != nil {
		return m.Impl.Send(ctx, requestId, message)
	}

	panic(errors.New("it should not be called"))
}
