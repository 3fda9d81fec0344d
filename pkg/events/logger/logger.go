package logger

import (
	"context"
	"log"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/events"
)

// logPublisher writes acknowledgements to a log, for deployments with
// no subscriber endpoint.
type logPublisher struct {
	logger *log.Logger
}

func New(l *log.Logger) events.Publisher {
	return &logPublisher{logger: l}
}

func (p *logPublisher) Publish(_ context.Context, ack domain.RequestAck) error {
	p.logger.Printf(
		"ack: kind=%s requestId=%s owner=%s state=%s errors=%v",
		ack.Kind, ack.RequestId, ack.Owner, ack.State, ack.Errors,
	)
	return nil
}
