package events

import (
	"context"

	"github.com/opencatalog/fem/pkg/domain"
)

// Publisher delivers request acknowledgements to whoever asked for them.
type Publisher interface {
	Publish(ctx context.Context, ack domain.RequestAck) error
}

// Tee publishes to every given publisher, in order. The first failure
// stops the chain and is returned.
func Tee(publishers ...Publisher) Publisher {
	return tee(publishers)
}

type tee []Publisher

func (t tee) Publish(ctx context.Context, ack domain.RequestAck) error {
	for _, p := range t {
		if err := p.Publish(ctx, ack); err != nil {
			return err
		}
	}
	return nil
}
