package copy_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/opencatalog/fem/pkg/domain"
	featmock "github.com/opencatalog/fem/pkg/domain/feature/db/mock"
	reqmock "github.com/opencatalog/fem/pkg/domain/request/db/mock"
	"github.com/opencatalog/fem/pkg/domain/storage"
	storagemock "github.com/opencatalog/fem/pkg/domain/storage/mock"
	sessmock "github.com/opencatalog/fem/pkg/domain/session/db/mock"
	"github.com/opencatalog/fem/pkg/lifecycle/copy"
	"github.com/opencatalog/fem/pkg/lifecycle/dispatch"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
)

var targetUrn = domain.NewURN("DATA", "tenant-a", "provider-1", 1)

func targetWithFile() map[domain.URN]domain.FeatureEntity {
	return map[domain.URN]domain.FeatureEntity{
		targetUrn: {
			Urn: targetUrn, ProviderId: "provider-1", Version: 1,
			Feature: domain.Feature{
				Files: []domain.FeatureFile{{
					Attributes: domain.FileAttributes{
						Filename: "a.tif", Checksum: "c1", Algorithm: "MD5",
					},
					Locations: []domain.FileLocation{
						{Storage: "primary", Url: "https://primary/a.tif"},
					},
				}},
			},
		},
	}
}

type collaborators struct {
	requests *reqmock.RequestInterface
	features *featmock.FeatureInterface
	storage  *storagemock.Client
	sessions *sessmock.SessionInterface
}

func newProcessor(targets map[domain.URN]domain.FeatureEntity) (*copy.Processor, *collaborators) {
	c := &collaborators{
		requests: reqmock.NewRequestInterface(),
		features: featmock.NewFeatureInterface(),
		storage:  storagemock.NewClient(),
		sessions: sessmock.NewSessionInterface(),
	}

	c.features.Impl.GetByUrns = func(
		_ context.Context, _ []domain.URN,
	) (map[domain.URN]domain.FeatureEntity, error) {
		return targets, nil
	}
	c.requests.Impl.SetStep = func(
		_ context.Context, ids []int64, _, _ domain.RequestStep,
	) (int64, error) {
		return int64(len(ids)), nil
	}
	c.requests.Impl.MarkError = func(
		_ context.Context, _ int64, _ domain.RequestStep, _ ...string,
	) error {
		return nil
	}
	c.requests.Impl.AttachGroup = func(_ context.Context, _ []int64, _ string) error {
		return nil
	}
	c.storage.Impl.Store = func(_ context.Context, _ storage.StoreRequest) error {
		return nil
	}
	c.sessions.Impl.Increment = func(
		_ context.Context, _ domain.SessionInfo, _ domain.SessionProperty, _ int64,
	) error {
		return nil
	}

	logger := log.New(io.Discard, "", 0)
	return &copy.Processor{
		Requests: c.requests,
		Features: c.features,
		Dispatcher: &dispatch.Dispatcher{
			Requests:   c.requests,
			Storage:    c.storage,
			NewGroupId: func() string { return "group-1" },
			Logger:     logger,
		},
		Recorder: &session.Recorder{Sessions: c.sessions, Logger: logger},
		Logger:   logger,
	}, c
}

func scheduledCopy(id int64, checksum, targetStorage string) domain.Request {
	return domain.Request{
		Id:            id,
		Kind:          domain.KindCopy,
		RequestId:     "req-copy",
		Owner:         "tenant-a",
		State:         domain.Granted,
		Step:          domain.StepLocalScheduled,
		Urn:           targetUrn,
		Checksum:      checksum,
		TargetStorage: targetStorage,
	}
}

func TestProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("the file is replicated from a stored location", func(t *testing.T) {
		p, c := newProcessor(targetWithFile())

		if err := p.Process(ctx, []domain.Request{scheduledCopy(1, "c1", "backup")}); err != nil {
			t.Fatal(err)
		}

		if c.storage.Calls.Store.Times() != 1 {
			t.Fatal("a store group should be sent")
		}
		orders := c.storage.Calls.Store[0].Orders
		if len(orders) != 1 {
			t.Fatalf("unexpected orders: %+v", orders)
		}
		expected := storage.FileStoreOrder{
			Urn:       targetUrn,
			Checksum:  "c1",
			Algorithm: "MD5",
			Filename:  "a.tif",
			SourceUrl: "https://primary/a.tif",
			Storages:  []string{"backup"},
		}
		if !orders[0].Equal(expected) {
			t.Errorf("order = %+v, expected %+v", orders[0], expected)
		}
	})

	t.Run("a file already at the target storage completes without storage work", func(t *testing.T) {
		p, c := newProcessor(targetWithFile())

		if err := p.Process(ctx, []domain.Request{scheduledCopy(1, "c1", "primary")}); err != nil {
			t.Fatal(err)
		}

		if c.storage.Calls.Store.Times() != 0 {
			t.Error("nothing should be sent to storage")
		}
		step := c.requests.Calls.SetStep[0]
		if step.To != domain.StepLocalToBeNotified {
			t.Errorf("unexpected step: %s", step.To)
		}
	})

	t.Run("an unknown checksum fails the request", func(t *testing.T) {
		p, c := newProcessor(targetWithFile())

		if err := p.Process(ctx, []domain.Request{scheduledCopy(1, "no-such", "backup")}); err != nil {
			t.Fatal(err)
		}

		if c.requests.Calls.MarkError.Times() != 1 {
			t.Error("the request should be marked in error")
		}
	})

	t.Run("a vanished target fails the request", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{})

		if err := p.Process(ctx, []domain.Request{scheduledCopy(1, "c1", "backup")}); err != nil {
			t.Fatal(err)
		}

		if c.requests.Calls.MarkError.Times() != 1 {
			t.Error("the request should be marked in error")
		}
	})

	t.Run("a file with only staging locations can not be copied", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{
			targetUrn: {
				Urn: targetUrn,
				Feature: domain.Feature{
					Files: []domain.FeatureFile{{
						Attributes: domain.FileAttributes{Checksum: "c1"},
						Locations:  []domain.FileLocation{{Url: "https://staging/a.tif"}},
					}},
				},
			},
		})

		if err := p.Process(ctx, []domain.Request{scheduledCopy(1, "c1", "backup")}); err != nil {
			t.Fatal(err)
		}

		if c.requests.Calls.MarkError.Times() != 1 {
			t.Error("the request should be marked in error")
		}
	})
}
