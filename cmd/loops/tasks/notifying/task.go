package notifying

import (
	"context"
	"log"

	"github.com/opencatalog/fem/cmd/loops/recurring"
	"github.com/opencatalog/fem/pkg/lifecycle/notify"
)

// initial value for task
func Seed() struct{} {
	return struct{}{}
}

// return:
//
// - task : draining processed requests into the notifier.
func Task(logger *log.Logger, sender *notify.Sender) recurring.Task[struct{}] {
	return func(ctx context.Context, value struct{}) (struct{}, bool, error) {
		sent, err := sender.SendNext(ctx)
		if err != nil {
			return value, false, err
		}
		if sent == 0 {
			logger.Printf("nothing to notify.")
			return value, false, nil
		}

		logger.Printf("notified %d request(s).", sent)
		return value, true, nil
	}
}
