package register_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
	featmock "github.com/opencatalog/fem/pkg/domain/feature/db/mock"
	"github.com/opencatalog/fem/pkg/domain/model"
	mockmodel "github.com/opencatalog/fem/pkg/domain/model/mock"
	reqmock "github.com/opencatalog/fem/pkg/domain/request/db/mock"
	sessmock "github.com/opencatalog/fem/pkg/domain/session/db/mock"
	evtmock "github.com/opencatalog/fem/pkg/events/mock"
	"github.com/opencatalog/fem/pkg/lifecycle/register"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
	"github.com/opencatalog/fem/pkg/lifecycle/validate"
	"github.com/opencatalog/fem/pkg/utils/try"
)

var clock = func() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

type collaborators struct {
	requests  *reqmock.RequestInterface
	features  *featmock.FeatureInterface
	publisher *evtmock.Publisher
	sessions  *sessmock.SessionInterface
}

func newRegistrar() (*register.Registrar, *collaborators) {
	c := &collaborators{
		requests:  reqmock.NewRequestInterface(),
		features:  featmock.NewFeatureInterface(),
		publisher: evtmock.NewPublisher(),
		sessions:  sessmock.NewSessionInterface(),
	}

	// permissive defaults; tests override what they probe.
	c.requests.Impl.ExistingRequestIds = func(
		_ context.Context, _ domain.RequestKind, _ []string,
	) (map[string]bool, error) {
		return map[string]bool{}, nil
	}
	c.requests.Impl.SaveAll = func(_ context.Context, _ []*domain.Request) error {
		return nil
	}
	c.features.Impl.LatestVersions = func(
		_ context.Context, _ []string,
	) (map[string]domain.FeatureEntity, error) {
		return map[string]domain.FeatureEntity{}, nil
	}
	c.features.Impl.ExistingUrns = func(
		_ context.Context, _ []domain.URN,
	) (map[domain.URN]bool, error) {
		return map[domain.URN]bool{}, nil
	}
	c.publisher.Impl.Publish = func(_ context.Context, _ domain.RequestAck) error {
		return nil
	}
	c.sessions.Impl.Increment = func(
		_ context.Context, _ domain.SessionInfo, _ domain.SessionProperty, _ int64,
	) error {
		return nil
	}

	finder := mockmodel.NewFinder()
	finder.Impl.LoadAttributesByModel = func(
		_ context.Context, name string,
	) ([]model.AttributeDefinition, error) {
		if name != "observation" {
			return nil, domain.ErrMissing
		}
		return []model.AttributeDefinition{
			{Name: "title", Type: model.TypeString, Mandatory: true},
		}, nil
	}

	logger := log.New(io.Discard, "", 0)
	return &register.Registrar{
		Requests:  c.requests,
		Features:  c.features,
		Validator: &validate.Validator{Models: finder},
		Publisher: c.publisher,
		Recorder:  &session.Recorder{Sessions: c.sessions, Logger: logger},
		Logger:    logger,
		Clock:     clock,
	}, c
}

func creationEvent(requestId, providerId string) domain.RequestEvent {
	return domain.RequestEvent{
		Kind:      domain.KindCreation,
		RequestId: requestId,
		Owner:     "owner-1",
		Date:      clock(),
		Metadata: domain.Metadata{
			SessionOwner: "owner-1",
			Session:      "session-1",
			Priority:     domain.PriorityNormal,
		},
		Feature: &domain.Feature{
			Id:         providerId,
			EntityType: "DATA",
			Model:      "observation",
			Properties: map[string]any{"title": "scene"},
		},
	}
}

func ackOf(acks []domain.RequestAck, requestId string) (domain.RequestAck, bool) {
	for _, a := range acks {
		if a.RequestId == requestId {
			return a, true
		}
	}
	return domain.RequestAck{}, false
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("a valid new event is granted and persisted at LOCAL_DELAYED", func(t *testing.T) {
		registrar, c := newRegistrar()

		acks := try.To(registrar.Register(
			ctx, []domain.RequestEvent{creationEvent("req-1", "provider-1")},
		)).OrFatal(t)

		if len(acks) != 1 || acks[0].State != domain.Granted {
			t.Fatalf("unexpected acks: %+v", acks)
		}

		if c.requests.Calls.SaveAll.Times() != 1 {
			t.Fatal("SaveAll should be called once")
		}
		saved := c.requests.Calls.SaveAll[0]
		if len(saved) != 1 {
			t.Fatalf("unexpected saved requests: %+v", saved)
		}
		if saved[0].State != domain.Granted || saved[0].Step != domain.StepLocalDelayed {
			t.Errorf("saved at (%s, %s)", saved[0].State, saved[0].Step)
		}
		if saved[0].RequestId != "req-1" || saved[0].Kind != domain.KindCreation {
			t.Errorf("unexpected request: %+v", saved[0])
		}

		if c.publisher.Calls.Publish.Times() != 1 {
			t.Error("the grant should be published")
		}
		if c.sessions.Calls.Increment.Times() != 1 {
			t.Error("the grant should be counted on the session")
		}
		if got := c.sessions.Calls.Increment[0].Property; got != domain.PropertyGrantedRequests {
			t.Errorf("counted on property %s", got)
		}
	})

	t.Run("an invalid event is denied with its causes", func(t *testing.T) {
		registrar, c := newRegistrar()

		event := creationEvent("req-1", "provider-1")
		event.Feature.Properties = map[string]any{}

		acks := try.To(registrar.Register(ctx, []domain.RequestEvent{event})).OrFatal(t)

		if len(acks) != 1 || acks[0].State != domain.Denied {
			t.Fatalf("unexpected acks: %+v", acks)
		}
		if len(acks[0].Errors) == 0 {
			t.Error("a denial should carry causes")
		}
		if c.requests.Calls.SaveAll.Times() != 1 || len(c.requests.Calls.SaveAll[0]) != 0 {
			t.Error("nothing should be persisted")
		}
	})

	t.Run("a requestId already registered for the kind is denied", func(t *testing.T) {
		registrar, c := newRegistrar()
		c.requests.Impl.ExistingRequestIds = func(
			_ context.Context, _ domain.RequestKind, _ []string,
		) (map[string]bool, error) {
			return map[string]bool{"req-1": true}, nil
		}

		acks := try.To(registrar.Register(
			ctx, []domain.RequestEvent{creationEvent("req-1", "provider-1")},
		)).OrFatal(t)

		if len(acks) != 1 || acks[0].State != domain.Denied {
			t.Fatalf("unexpected acks: %+v", acks)
		}
	})

	t.Run("a duplicate inside the batch is denied, the first wins", func(t *testing.T) {
		registrar, _ := newRegistrar()

		acks := try.To(registrar.Register(ctx, []domain.RequestEvent{
			creationEvent("req-1", "provider-1"),
			creationEvent("req-1", "provider-2"),
		})).OrFatal(t)

		granted, denied := 0, 0
		for _, a := range acks {
			switch a.State {
			case domain.Granted:
				granted += 1
			case domain.Denied:
				denied += 1
			}
		}
		if granted != 1 || denied != 1 {
			t.Errorf("expected 1 grant + 1 denial: %+v", acks)
		}
	})

	t.Run("a creation over an existing lineage is denied", func(t *testing.T) {
		registrar, c := newRegistrar()
		c.features.Impl.LatestVersions = func(
			_ context.Context, providerIds []string,
		) (map[string]domain.FeatureEntity, error) {
			return map[string]domain.FeatureEntity{
				"provider-1": {ProviderId: "provider-1", Version: 3, Last: true},
			}, nil
		}

		acks := try.To(registrar.Register(
			ctx, []domain.RequestEvent{creationEvent("req-1", "provider-1")},
		)).OrFatal(t)

		ack, _ := ackOf(acks, "req-1")
		if ack.State != domain.Denied {
			t.Errorf("unexpected ack: %+v", ack)
		}
	})

	t.Run("updateIfExists reclassifies such a creation into an update", func(t *testing.T) {
		registrar, c := newRegistrar()
		c.features.Impl.LatestVersions = func(
			_ context.Context, _ []string,
		) (map[string]domain.FeatureEntity, error) {
			return map[string]domain.FeatureEntity{
				"provider-1": {ProviderId: "provider-1", Version: 3, Last: true},
			}, nil
		}

		event := creationEvent("req-1", "provider-1")
		event.Metadata.UpdateIfExists = true

		acks := try.To(registrar.Register(ctx, []domain.RequestEvent{event})).OrFatal(t)

		ack, _ := ackOf(acks, "req-1")
		if ack.State != domain.Granted {
			t.Fatalf("unexpected ack: %+v", ack)
		}
		saved := c.requests.Calls.SaveAll[0]
		if len(saved) != 1 || saved[0].Kind != domain.KindUpdate {
			t.Errorf("the request should be persisted as an update: %+v", saved)
		}
	})

	t.Run("override grants such a creation as a creation", func(t *testing.T) {
		registrar, c := newRegistrar()
		c.features.Impl.LatestVersions = func(
			_ context.Context, _ []string,
		) (map[string]domain.FeatureEntity, error) {
			return map[string]domain.FeatureEntity{
				"provider-1": {ProviderId: "provider-1", Version: 3, Last: true},
			}, nil
		}

		event := creationEvent("req-1", "provider-1")
		event.Metadata.Override = true

		acks := try.To(registrar.Register(ctx, []domain.RequestEvent{event})).OrFatal(t)

		ack, _ := ackOf(acks, "req-1")
		if ack.State != domain.Granted {
			t.Fatalf("unexpected ack: %+v", ack)
		}
		saved := c.requests.Calls.SaveAll[0]
		if len(saved) != 1 || saved[0].Kind != domain.KindCreation {
			t.Errorf("the request should stay a creation: %+v", saved)
		}
	})

	t.Run("an update on a lineage nobody created is denied", func(t *testing.T) {
		registrar, _ := newRegistrar()

		event := creationEvent("req-1", "provider-1")
		event.Kind = domain.KindUpdate

		acks := try.To(registrar.Register(ctx, []domain.RequestEvent{event})).OrFatal(t)

		ack, _ := ackOf(acks, "req-1")
		if ack.State != domain.Denied {
			t.Errorf("unexpected ack: %+v", ack)
		}
	})

	t.Run("a deletion of an unknown urn is granted anyway", func(t *testing.T) {
		// deleting what is already gone settles as SUCCESS downstream,
		// so registration never denies a deletion for a missing target.
		registrar, c := newRegistrar()

		event := domain.RequestEvent{
			Kind:      domain.KindDeletion,
			RequestId: "req-del",
			Owner:     "owner-1",
			Date:      clock(),
			Metadata:  domain.Metadata{Priority: domain.PriorityNormal},
			Urn:       domain.NewURN("DATA", "owner-1", "provider-1", 1),
		}

		acks := try.To(registrar.Register(ctx, []domain.RequestEvent{event})).OrFatal(t)

		ack, _ := ackOf(acks, "req-del")
		if ack.State != domain.Granted {
			t.Errorf("unexpected ack: %+v", ack)
		}
		if c.features.Calls.ExistingUrns.Times() != 0 {
			t.Error("a deletion should not be checked against the catalog")
		}
	})

	t.Run("a deletion of an existing urn is granted", func(t *testing.T) {
		registrar, c := newRegistrar()
		urn := domain.NewURN("DATA", "owner-1", "provider-1", 1)
		c.features.Impl.ExistingUrns = func(
			_ context.Context, _ []domain.URN,
		) (map[domain.URN]bool, error) {
			return map[domain.URN]bool{urn: true}, nil
		}

		event := domain.RequestEvent{
			Kind:      domain.KindDeletion,
			RequestId: "req-del",
			Owner:     "owner-1",
			Date:      clock(),
			Metadata:  domain.Metadata{Priority: domain.PriorityNormal},
			Urn:       urn,
		}

		acks := try.To(registrar.Register(ctx, []domain.RequestEvent{event})).OrFatal(t)

		ack, _ := ackOf(acks, "req-del")
		if ack.State != domain.Granted {
			t.Errorf("unexpected ack: %+v", ack)
		}
	})

	t.Run("a mixed batch settles every event, denials first", func(t *testing.T) {
		registrar, _ := newRegistrar()

		bad := creationEvent("req-bad", "provider-2")
		bad.Feature.Model = "no-such-model"

		acks := try.To(registrar.Register(ctx, []domain.RequestEvent{
			creationEvent("req-ok", "provider-1"),
			bad,
		})).OrFatal(t)

		if len(acks) != 2 {
			t.Fatalf("every event should be acknowledged: %+v", acks)
		}
		if acks[0].RequestId != "req-bad" || acks[0].State != domain.Denied {
			t.Errorf("denials should come first: %+v", acks)
		}
		if ack, _ := ackOf(acks, "req-ok"); ack.State != domain.Granted {
			t.Errorf("unexpected ack: %+v", ack)
		}
	})
}
