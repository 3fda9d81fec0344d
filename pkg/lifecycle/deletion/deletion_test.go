package deletion_test

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
	"github.com/opencatalog/fem/pkg/lifecycle/deletion"
	"github.com/opencatalog/fem/pkg/lifecycle/dispatch"
	"github.com/opencatalog/fem/pkg/utils/cmp"
)

var targetUrn = domain.NewURN("DATA", "tenant-a", "provider-1", 1)

type collaborators struct {
	requests *reqmock.RequestInterface
	features *featmock.FeatureInterface
	storage  *storagemock.Client
}

func newProcessor(targets map[domain.URN]domain.FeatureEntity) (*deletion.Processor, *collaborators) {
	c := &collaborators{
		requests: reqmock.NewRequestInterface(),
		features: featmock.NewFeatureInterface(),
		storage:  storagemock.NewClient(),
	}

	c.features.Impl.GetByUrns = func(
		_ context.Context, _ []domain.URN,
	) (map[domain.URN]domain.FeatureEntity, error) {
		return targets, nil
	}
	c.features.Impl.DeleteByUrns = func(_ context.Context, _ []domain.URN) error {
		return nil
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
	c.storage.Impl.Delete = func(_ context.Context, _ storage.DeleteRequest) error {
		return nil
	}

	logger := log.New(io.Discard, "", 0)
	return &deletion.Processor{
		Requests: c.requests,
		Features: c.features,
		Dispatcher: &dispatch.Dispatcher{
			Requests:   c.requests,
			Storage:    c.storage,
			NewGroupId: func() string { return "group-1" },
			Logger:     logger,
		},
		Logger: logger,
	}, c
}

func scheduledDeletion(id int64) domain.Request {
	return domain.Request{
		Id:        id,
		Kind:      domain.KindDeletion,
		RequestId: "req-del",
		Owner:     "tenant-a",
		State:     domain.Granted,
		Step:      domain.StepLocalScheduled,
		Urn:       targetUrn,
	}
}

func TestProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("a target without stored files falls right away", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{
			targetUrn: {Urn: targetUrn, ProviderId: "provider-1", Version: 1},
		})

		if err := p.Process(ctx, []domain.Request{scheduledDeletion(1)}); err != nil {
			t.Fatal(err)
		}

		if c.features.Calls.DeleteByUrns.Times() != 1 {
			t.Fatal("the catalog row should fall")
		}
		if !cmp.SliceEq(c.features.Calls.DeleteByUrns[0], []domain.URN{targetUrn}) {
			t.Errorf("unexpected urns: %+v", c.features.Calls.DeleteByUrns[0])
		}
		step := c.requests.Calls.SetStep[0]
		if step.To != domain.StepLocalToBeNotified {
			t.Errorf("unexpected step: %s", step.To)
		}
		if c.storage.Calls.Delete.Times() != 0 {
			t.Error("no storage work should be sent")
		}
	})

	t.Run("stored files go to the storage service first, the row waits", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{
			targetUrn: {
				Urn: targetUrn, ProviderId: "provider-1", Version: 1,
				Feature: domain.Feature{
					Files: []domain.FeatureFile{{
						Attributes: domain.FileAttributes{Checksum: "c1"},
						Locations: []domain.FileLocation{
							{Storage: "primary", Url: "https://primary/a.tif"},
						},
					}},
				},
			},
		})

		if err := p.Process(ctx, []domain.Request{scheduledDeletion(1)}); err != nil {
			t.Fatal(err)
		}

		if c.features.Calls.DeleteByUrns.Times() != 0 {
			t.Error("the catalog row should wait for the storage callback")
		}
		if c.storage.Calls.Delete.Times() != 1 {
			t.Fatal("the stored locations should be deletion-requested")
		}
		if !cmp.SliceContentEq(c.storage.Calls.Delete[0].Locations, []domain.FileLocation{
			{Storage: "primary", Url: "https://primary/a.tif"},
		}) {
			t.Errorf("unexpected locations: %+v", c.storage.Calls.Delete[0].Locations)
		}

		step := c.requests.Calls.SetStep[0]
		if step.To != domain.StepRemoteStorageDeletionRequested {
			t.Errorf("unexpected step: %s", step.To)
		}
	})

	t.Run("a pending dissemination parks the request", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{
			targetUrn: {
				Urn: targetUrn, ProviderId: "provider-1", Version: 1,
				DisseminationPending: true,
			},
		})

		if err := p.Process(ctx, []domain.Request{scheduledDeletion(1)}); err != nil {
			t.Fatal(err)
		}

		if c.features.Calls.DeleteByUrns.Times() != 0 {
			t.Error("nothing should be deleted")
		}
		step := c.requests.Calls.SetStep[0]
		if step.From != domain.StepLocalScheduled || step.To != domain.StepWaitingBlockingDissemination {
			t.Errorf("unexpected transition: %s -> %s", step.From, step.To)
		}
	})

	t.Run("force pushes through a pending dissemination", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{
			targetUrn: {
				Urn: targetUrn, ProviderId: "provider-1", Version: 1,
				DisseminationPending: true,
			},
		})

		r := scheduledDeletion(1)
		r.Metadata.Force = true

		if err := p.Process(ctx, []domain.Request{r}); err != nil {
			t.Fatal(err)
		}

		if c.features.Calls.DeleteByUrns.Times() != 1 {
			t.Error("the catalog row should fall")
		}
	})

	t.Run("an already deleted target settles the request as done", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{})

		if err := p.Process(ctx, []domain.Request{scheduledDeletion(1)}); err != nil {
			t.Fatal(err)
		}

		if c.requests.Calls.MarkError.Times() != 0 {
			t.Error("deleting what is already gone is not a failure")
		}
		if c.features.Calls.DeleteByUrns.Times() != 0 {
			t.Error("there is nothing to delete")
		}
		step := c.requests.Calls.SetStep[0]
		if step.From != domain.StepLocalScheduled || step.To != domain.StepLocalToBeNotified {
			t.Errorf("unexpected transition: %s -> %s", step.From, step.To)
		}
	})
}
