package notification_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/opencatalog/fem/pkg/domain"
	featmock "github.com/opencatalog/fem/pkg/domain/feature/db/mock"
	reqmock "github.com/opencatalog/fem/pkg/domain/request/db/mock"
	sessmock "github.com/opencatalog/fem/pkg/domain/session/db/mock"
	"github.com/opencatalog/fem/pkg/lifecycle/notification"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
)

var targetUrn = domain.NewURN("DATA", "tenant-a", "provider-1", 1)

type collaborators struct {
	requests *reqmock.RequestInterface
	features *featmock.FeatureInterface
	sessions *sessmock.SessionInterface
}

func newProcessor(targets map[domain.URN]domain.FeatureEntity) (*notification.Processor, *collaborators) {
	c := &collaborators{
		requests: reqmock.NewRequestInterface(),
		features: featmock.NewFeatureInterface(),
		sessions: sessmock.NewSessionInterface(),
	}

	c.features.Impl.GetByUrns = func(
		_ context.Context, _ []domain.URN,
	) (map[domain.URN]domain.FeatureEntity, error) {
		return targets, nil
	}
	c.requests.Impl.Materialize = func(_ context.Context, _ int64, _ *domain.Feature) error {
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
	c.sessions.Impl.Increment = func(
		_ context.Context, _ domain.SessionInfo, _ domain.SessionProperty, _ int64,
	) error {
		return nil
	}

	logger := log.New(io.Discard, "", 0)
	return &notification.Processor{
		Requests: c.requests,
		Features: c.features,
		Recorder: &session.Recorder{Sessions: c.sessions, Logger: logger},
		Logger:   logger,
	}, c
}

func TestProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("a carried payload goes straight to sending", func(t *testing.T) {
		p, c := newProcessor(nil)

		r := domain.Request{
			Id: 1, Kind: domain.KindNotification,
			State: domain.Granted, Step: domain.StepLocalScheduled,
			Feature: &domain.Feature{Id: "provider-1"},
		}

		if err := p.Process(ctx, []domain.Request{r}); err != nil {
			t.Fatal(err)
		}

		if c.features.Calls.GetByUrns.Times() != 0 {
			t.Error("no catalog lookup is needed")
		}
		if c.requests.Calls.Materialize.Times() != 0 {
			t.Error("the payload is already there")
		}
		step := c.requests.Calls.SetStep[0]
		if step.From != domain.StepLocalScheduled || step.To != domain.StepLocalToBeNotified {
			t.Errorf("unexpected transition: %s -> %s", step.From, step.To)
		}
	})

	t.Run("an urn target is resolved and materialized", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{
			targetUrn: {
				Urn: targetUrn,
				Feature: domain.Feature{
					Id: "provider-1", Urn: targetUrn,
					Properties: map[string]any{"title": "scene"},
				},
			},
		})

		r := domain.Request{
			Id: 1, Kind: domain.KindNotification,
			State: domain.Granted, Step: domain.StepLocalScheduled,
			Urn: targetUrn,
		}

		if err := p.Process(ctx, []domain.Request{r}); err != nil {
			t.Fatal(err)
		}

		if c.requests.Calls.Materialize.Times() != 1 {
			t.Fatal("the resolved payload should be materialized")
		}
		if got := c.requests.Calls.Materialize[0].Feature; got.Id != "provider-1" {
			t.Errorf("unexpected payload: %+v", got)
		}
		if c.requests.Calls.SetStep[0].To != domain.StepLocalToBeNotified {
			t.Errorf("unexpected step: %s", c.requests.Calls.SetStep[0].To)
		}
	})

	t.Run("an unknown urn fails the request", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{})

		r := domain.Request{
			Id: 1, Kind: domain.KindNotification,
			State: domain.Granted, Step: domain.StepLocalScheduled,
			Urn: targetUrn,
		}

		if err := p.Process(ctx, []domain.Request{r}); err != nil {
			t.Fatal(err)
		}

		if c.requests.Calls.MarkError.Times() != 1 {
			t.Fatal("the request should be marked in error")
		}
		if got := c.requests.Calls.MarkError[0].Step; got != domain.StepLocalError {
			t.Errorf("unexpected error step: %s", got)
		}
		if c.requests.Calls.SetStep.Times() != 0 {
			t.Error("nothing should advance")
		}
	})

	t.Run("a mixed batch advances only the resolvable", func(t *testing.T) {
		p, c := newProcessor(map[domain.URN]domain.FeatureEntity{
			targetUrn: {Urn: targetUrn, Feature: domain.Feature{Id: "provider-1"}},
		})

		other := domain.NewURN("DATA", "tenant-a", "provider-2", 1)
		batch := []domain.Request{
			{Id: 1, Kind: domain.KindNotification, Step: domain.StepLocalScheduled, Urn: targetUrn},
			{Id: 2, Kind: domain.KindNotification, Step: domain.StepLocalScheduled, Urn: other},
		}

		if err := p.Process(ctx, batch); err != nil {
			t.Fatal(err)
		}

		if c.requests.Calls.MarkError.Times() != 1 {
			t.Error("the unresolvable one should fail")
		}
		step := c.requests.Calls.SetStep[0]
		if len(step.Ids) != 1 || step.Ids[0] != 1 {
			t.Errorf("unexpected advanced ids: %+v", step.Ids)
		}
	})
}
