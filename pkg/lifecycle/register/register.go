package register

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
	featdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/events"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
	"github.com/opencatalog/fem/pkg/lifecycle/validate"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

// Registrar turns raw request events into registered lifecycle requests.
//
// Each event is either granted (persisted at LOCAL_DELAYED, to be picked
// up by a scheduler pass later) or denied on the spot. Both outcomes are
// acknowledged to the owner and counted on the event's session.
type Registrar struct {
	Requests  reqdb.Interface
	Features  featdb.Interface
	Validator *validate.Validator
	Publisher events.Publisher
	Recorder  *session.Recorder
	Logger    *log.Logger

	// Clock stamps acknowledgements. Defaults to time.Now.
	Clock func() time.Time
}

func (r *Registrar) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

// intent is one event which passed validation and deduplication,
// not yet persisted. Kind may differ from the event's when the event
// got reclassified.
type intent struct {
	event domain.RequestEvent
	kind  domain.RequestKind
}

// Register settles the fate of each event in evts.
//
// One acknowledgement per settled event is returned, denials first;
// correlate by RequestId, not position. The error is non-nil only
// when registration itself broke (store unreachable); already-settled
// acknowledgements are returned alongside it.
func (r *Registrar) Register(
	ctx context.Context, evts []domain.RequestEvent,
) ([]domain.RequestAck, error) {
	now := r.now()
	acks := []domain.RequestAck{}

	intents, denied, err := r.screen(ctx, evts)
	if err != nil {
		return nil, err
	}
	acks = append(acks, denied...)

	intents, denied, err = r.checkTargets(ctx, intents, now)
	if err != nil {
		return acks, err
	}
	acks = append(acks, denied...)

	requests := slices.Map(intents, func(i intent) *domain.Request {
		return &domain.Request{
			Kind:        i.kind,
			RequestId:   i.event.RequestId,
			Owner:       i.event.Owner,
			RequestDate: i.event.Date,
			State:       domain.Granted,
			Step:        domain.StepLocalDelayed,
			Priority:    i.event.Metadata.Priority,
			Metadata:    i.event.Metadata,

			Feature:       i.event.Feature,
			Urn:           i.event.Urn,
			Checksum:      i.event.Checksum,
			TargetStorage: i.event.TargetStorage,
			Factory:       i.event.Factory,
			Parameters:    i.event.Parameters,
		}
	})
	if err := r.Requests.SaveAll(ctx, requests); err != nil {
		return acks, err
	}

	for _, i := range intents {
		ack := domain.GrantAck(i.event, now)
		r.settle(ctx, i.event, ack)
		acks = append(acks, ack)
	}

	return acks, nil
}

// screen validates events and denies duplicates, per kind, with one
// store round trip per kind present in the batch.
func (r *Registrar) screen(
	ctx context.Context, evts []domain.RequestEvent,
) ([]intent, []domain.RequestAck, error) {
	now := r.now()

	existingByKind := map[domain.RequestKind]map[string]bool{}
	for kind, ofKind := range groupByKind(evts) {
		existing, err := r.Requests.ExistingRequestIds(
			ctx, kind,
			slices.Map(ofKind, func(e domain.RequestEvent) string { return e.RequestId }),
		)
		if err != nil {
			return nil, nil, err
		}
		existingByKind[kind] = existing
	}

	intents := []intent{}
	denied := []domain.RequestAck{}
	for _, event := range evts {
		existing := existingByKind[event.Kind]
		if existing == nil {
			ack := domain.DenyAck(event, now, fmt.Sprintf("'%s' is not a request kind", event.Kind))
			r.settle(ctx, event, ack)
			denied = append(denied, ack)
			continue
		}
		if existing[event.RequestId] {
			ack := domain.DenyAck(event, now, fmt.Sprintf(
				"requestId '%s' is already registered for %s", event.RequestId, event.Kind,
			))
			r.settle(ctx, event, ack)
			denied = append(denied, ack)
			continue
		}
		// a duplicate inside the batch denies the later event too.
		existing[event.RequestId] = true

		if causes := r.Validator.Validate(ctx, event); len(causes) != 0 {
			ack := domain.DenyAck(event, now, causes...)
			r.settle(ctx, event, ack)
			denied = append(denied, ack)
			continue
		}

		intents = append(intents, intent{event: event, kind: event.Kind})
	}

	return intents, denied, nil
}

// checkTargets denies or reclassifies intents against the catalog:
//
//   - a creation whose lineage already exists is denied, unless the
//     event asks to update-if-exists (reclassified as update) or to
//     override (granted as-is, superseding the previous version)
//   - an update whose target does not exist is denied
//   - a copy whose target URN does not exist is denied
//
// Deletions are granted without looking at the catalog: deleting an
// already-deleted feature settles as SUCCESS downstream.
func (r *Registrar) checkTargets(
	ctx context.Context, intents []intent, now time.Time,
) ([]intent, []domain.RequestAck, error) {
	providerIds := []string{}
	urns := []domain.URN{}
	for _, i := range intents {
		switch i.kind {
		case domain.KindCreation, domain.KindUpdate:
			if pid := i.event.ProviderId(); pid != "" {
				providerIds = append(providerIds, pid)
			}
		case domain.KindCopy:
			urns = append(urns, i.event.Urn)
		}
	}

	latest := map[string]domain.FeatureEntity{}
	if len(providerIds) != 0 {
		var err error
		if latest, err = r.Features.LatestVersions(ctx, providerIds); err != nil {
			return nil, nil, err
		}
	}
	existing := map[domain.URN]bool{}
	if len(urns) != 0 {
		var err error
		if existing, err = r.Features.ExistingUrns(ctx, urns); err != nil {
			return nil, nil, err
		}
	}

	kept := []intent{}
	denied := []domain.RequestAck{}
	deny := func(i intent, cause string) {
		ack := domain.DenyAck(i.event, now, cause)
		r.settle(ctx, i.event, ack)
		denied = append(denied, ack)
	}

	for _, i := range intents {
		switch i.kind {
		case domain.KindCreation:
			_, exists := latest[i.event.ProviderId()]
			if exists && i.event.Metadata.UpdateIfExists {
				i.kind = domain.KindUpdate
			} else if exists && !i.event.Metadata.Override {
				deny(i, fmt.Sprintf("feature '%s' already exists", i.event.ProviderId()))
				continue
			}
		case domain.KindUpdate:
			if pid := i.event.ProviderId(); pid != "" {
				if _, exists := latest[pid]; !exists {
					deny(i, fmt.Sprintf("feature '%s' does not exist", pid))
					continue
				}
			}
		case domain.KindCopy:
			if !existing[i.event.Urn] {
				deny(i, fmt.Sprintf("feature '%s' does not exist", i.event.Urn))
				continue
			}
		}
		kept = append(kept, i)
	}

	return kept, denied, nil
}

// settle publishes ack and counts it on the event's session.
// Both are best effort: the registration outcome is already decided.
func (r *Registrar) settle(ctx context.Context, event domain.RequestEvent, ack domain.RequestAck) {
	r.Recorder.Outcome(ctx, domain.SessionInfo{
		Owner:   event.Metadata.SessionOwner,
		Session: event.Metadata.Session,
	}, ack.State)

	if err := r.Publisher.Publish(ctx, ack); err != nil {
		r.Logger.Printf(
			"failed to publish %s ack for request '%s': %s",
			ack.State, ack.RequestId, err,
		)
	}
}

func groupByKind(evts []domain.RequestEvent) map[domain.RequestKind][]domain.RequestEvent {
	byKind := map[domain.RequestKind][]domain.RequestEvent{}
	for _, e := range evts {
		if _, err := domain.AsRequestKind(string(e.Kind)); err != nil {
			continue
		}
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}
	return byKind
}
