package mock

import (
	"context"
	"errors"

	"github.com/opencatalog/fem/pkg/domain"
	dbmock "github.com/opencatalog/fem/internal/mocks"
	"github.com/opencatalog/fem/pkg/events"
)

type Publisher struct {
	Impl struct {
		Publish func(ctx context.Context, ack domain.RequestAck) error
	}

	Calls struct {
		Publish dbmock.CallLog[domain.RequestAck]
	}
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

var _ events.Publisher = &Publisher{}

func (m *Publisher) Publish(ctx context.Context, ack domain.RequestAck) error {
	m.Calls.Publish = append(m.Calls.Publish, ack)
	if m.Impl.Publish != nil {
		return m.Impl.Publish(ctx, ack)
	}

	panic(errors.New("it should not be called"))
}
