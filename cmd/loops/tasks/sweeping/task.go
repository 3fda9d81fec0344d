package sweeping

import (
	"context"
	"log"

	"github.com/opencatalog/fem/cmd/loops/recurring"
	"github.com/opencatalog/fem/pkg/lifecycle/maintenance"
)

// initial value for task
func Seed() struct{} {
	return struct{}{}
}

// return:
//
// - task : requeueing scheduled requests abandoned by a crashed pass.
func Task(logger *log.Logger, manager *maintenance.Manager) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		requeued, err := manager.SweepStale(ctx)
		if err != nil {
			return value, false, err
		}
		if requeued == 0 {
			logger.Printf("no stale requests.")
			return value, false, nil
		}

		logger.Printf("requeued %d stale request(s).", requeued)

		// a sweep pass drains everything stale at once; no backlog remains.
		return value, false, nil
	}
}
