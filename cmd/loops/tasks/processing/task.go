package processing

import (
	"context"
	"log"

	"github.com/opencatalog/fem/cmd/loops/recurring"
	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/lifecycle/schedule"
)

// initial value for task
func Seed() struct{} {
	return struct{}{}
}

// Processor settles a scheduled batch of requests of one kind.
type Processor interface {
	Process(ctx context.Context, batch []domain.Request) error
}

// return:
//
// - task : picking the next batch of kind and running it through processor.
func Task(
	logger *log.Logger,
	scheduler *schedule.Scheduler,
	kind domain.RequestKind,
	processor Processor,
) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		batch, err := scheduler.NextBatch(ctx, kind)
		if err != nil {
			return value, false, err
		}
		if len(batch) == 0 {
			logger.Printf("no %s requests to process.", kind)
			return value, false, nil
		}

		logger.Printf("processing %d %s request(s)...", len(batch), kind)
		if err := processor.Process(ctx, batch); err != nil {
			return value, false, err
		}

		return value, true, nil
	}
}
