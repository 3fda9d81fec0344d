package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/opencatalog/fem/cmd/loops/recurring"
	"github.com/opencatalog/fem/cmd/loops/tasks/notifying"
	"github.com/opencatalog/fem/cmd/loops/tasks/processing"
	"github.com/opencatalog/fem/cmd/loops/tasks/sweeping"
	kcfg "github.com/opencatalog/fem/pkg/configs/engine"
	"github.com/opencatalog/fem/pkg/conn/postgres/pool"
	"github.com/opencatalog/fem/pkg/domain"
	featpg "github.com/opencatalog/fem/pkg/domain/feature/db/postgres"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	"github.com/opencatalog/fem/pkg/domain/notifier"
	notifierrest "github.com/opencatalog/fem/pkg/domain/notifier/rest"
	reqpg "github.com/opencatalog/fem/pkg/domain/request/db/postgres"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	sesspg "github.com/opencatalog/fem/pkg/domain/session/db/postgres"
	storagerest "github.com/opencatalog/fem/pkg/domain/storage/rest"
	"github.com/opencatalog/fem/pkg/events"
	eventlogger "github.com/opencatalog/fem/pkg/events/logger"
	eventweb "github.com/opencatalog/fem/pkg/events/web"
	"github.com/opencatalog/fem/pkg/lifecycle/copy"
	"github.com/opencatalog/fem/pkg/lifecycle/creation"
	"github.com/opencatalog/fem/pkg/lifecycle/deletion"
	"github.com/opencatalog/fem/pkg/lifecycle/dispatch"
	"github.com/opencatalog/fem/pkg/lifecycle/maintenance"
	"github.com/opencatalog/fem/pkg/lifecycle/notification"
	"github.com/opencatalog/fem/pkg/lifecycle/notify"
	"github.com/opencatalog/fem/pkg/lifecycle/reference"
	"github.com/opencatalog/fem/pkg/lifecycle/schedule"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
	"github.com/opencatalog/fem/pkg/lifecycle/update"
	"github.com/opencatalog/fem/pkg/loop"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

// Wrapper for monitoring loop tasks
//
//	Log the start and end of each time a task is executed. Essentially, it executes a task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	// counter for execution of the task
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X: ", counter)

		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s",
				counter, time.Since(timestamp), next,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Manifest for starting a loop, which determines how the loop should behave.
type LoopManifest struct {
	// Which loop to run
	Type domain.LoopType

	// Policy for the looping
	Policy recurring.Policy
}

// lifecycle wires the engine's collaborators once, for every loop type.
type lifecycle struct {
	conf     *kcfg.EngineConfig
	requests reqdb.Interface
	features featdb.Interface

	publisher  events.Publisher
	recorder   *session.Recorder
	scheduler  *schedule.Scheduler
	dispatcher *dispatch.Dispatcher
	manager    *maintenance.Manager
}

func attachLifecycle(
	conf *kcfg.EngineConfig, pgpool pool.Pool, logger *log.Logger,
) *lifecycle {
	dbRequest := reqpg.New(pgpool)
	dbFeature := featpg.New(pgpool)
	dbSession := sesspg.New(pgpool)

	var publisher events.Publisher = eventlogger.New(logger)
	if hooks := conf.AckWebhooks(); len(hooks) != 0 {
		publisher = eventweb.Web{URL: hooks}
	}

	storageClient := storagerest.New(conf.Storage().Endpoint(), http.DefaultClient)

	return &lifecycle{
		conf:      conf,
		requests:  dbRequest,
		features:  dbFeature,
		publisher: publisher,
		recorder:  &session.Recorder{Sessions: dbSession, Logger: logger},
		scheduler: &schedule.Scheduler{
			Requests:    dbRequest,
			Delay:       conf.Scheduler().DelayBeforeProcessing(),
			MaxBulkSize: conf.Scheduler().MaxBulkSize(),
		},
		dispatcher: &dispatch.Dispatcher{
			Requests:   dbRequest,
			Storage:    storageClient,
			NewGroupId: uuid.NewString,
			Logger:     logger,
		},
		manager: &maintenance.Manager{
			Requests:   dbRequest,
			Features:   dbFeature,
			Storage:    storageClient,
			Logger:     logger,
			StaleAfter: conf.Scheduler().StaleAfter(),
		},
	}
}

func (lc *lifecycle) creation(logger *log.Logger) *creation.Processor {
	return &creation.Processor{
		Requests:   lc.requests,
		Features:   lc.features,
		Dispatcher: lc.dispatcher,
		Logger:     logger,
	}
}

func (lc *lifecycle) processor(logger *log.Logger, kind domain.RequestKind) processing.Processor {
	switch kind {
	case domain.KindCreation:
		return lc.creation(logger)
	case domain.KindUpdate:
		return &update.Processor{
			Requests:   lc.requests,
			Features:   lc.features,
			Dispatcher: lc.dispatcher,
			Recorder:   lc.recorder,
			Logger:     logger,
		}
	case domain.KindDeletion:
		return &deletion.Processor{
			Requests:   lc.requests,
			Features:   lc.features,
			Dispatcher: lc.dispatcher,
			Logger:     logger,
		}
	case domain.KindCopy:
		return &copy.Processor{
			Requests:   lc.requests,
			Features:   lc.features,
			Dispatcher: lc.dispatcher,
			Recorder:   lc.recorder,
			Logger:     logger,
		}
	case domain.KindNotification:
		return &notification.Processor{
			Requests: lc.requests,
			Features: lc.features,
			Recorder: lc.recorder,
			Logger:   logger,
		}
	case domain.KindReference:
		registry := reference.NewRegistry()
		registry.Register("literal", reference.Literal())
		return &reference.Processor{
			Requests: lc.requests,
			Registry: registry,
			Creation: lc.creation(logger),
			Recorder: lc.recorder,
			Logger:   logger,
		}
	}
	return nil
}

func (lc *lifecycle) sender(logger *log.Logger) *notify.Sender {
	var client notifier.Client
	active := lc.conf.Notifications().Active()
	if active {
		client = notifierrest.New(lc.conf.Notifications().Endpoint(), http.DefaultClient)
	}
	return &notify.Sender{
		Requests:    lc.requests,
		Notifier:    client,
		Publisher:   lc.publisher,
		Recorder:    lc.recorder,
		Logger:      logger,
		Active:      active,
		MaxBulkSize: lc.conf.Scheduler().MaxBulkSize(),
	}
}

func StartLoop(
	ctx context.Context,
	logger *log.Logger,
	conf *kcfg.EngineConfig,
	pgpool pool.Pool,
	manifest LoopManifest,
) error {
	lc := attachLifecycle(conf, pgpool, logger)

	if kind, ok := manifest.Type.ProcessedKind(); ok {
		l := byLogger(logger, Copied(), WithPrefix(fmt.Sprintf("[%s loop]", kind)))
		_, err := loop.Start(
			ctx, processing.Seed(),
			monitor(
				l,
				processing.Task(
					l, lc.scheduler, kind, lc.processor(l, kind),
				).Applied(manifest.Policy),
			),
			loop.WithTimeout(30*time.Second),
		)
		return err
	}

	switch manifest.Type {
	case domain.Notifying:
		l := byLogger(logger, Copied(), WithPrefix("[notifying loop]"))
		_, err := loop.Start(
			ctx, notifying.Seed(),
			monitor(
				l,
				notifying.Task(l, lc.sender(l)).Applied(manifest.Policy),
			),
			loop.WithTimeout(30*time.Second),
		)
		return err

	case domain.Sweeping:
		l := byLogger(logger, Copied(), WithPrefix("[sweeping loop]"))
		_, err := loop.Start(
			ctx, sweeping.Seed(),
			monitor(
				l,
				sweeping.Task(l, lc.manager).Applied(manifest.Policy),
			),
		)
		return err
	}

	return fmt.Errorf("%w: %s", domain.ErrUnknownLoopType, manifest.Type)
}
