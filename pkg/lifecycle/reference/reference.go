package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/opencatalog/fem/pkg/domain"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/lifecycle/creation"
	"github.com/opencatalog/fem/pkg/lifecycle/session"
)

// Factory materializes a feature out of opaque parameters, for sources
// which publish references instead of full payloads.
type Factory interface {
	Build(ctx context.Context, parameters json.RawMessage) (*domain.Feature, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, parameters json.RawMessage) (*domain.Feature, error)

func (f FactoryFunc) Build(ctx context.Context, parameters json.RawMessage) (*domain.Feature, error) {
	return f(ctx, parameters)
}

// Literal builds the feature out of the parameters themselves: the
// parameters are a full feature payload. Registered as "literal".
func Literal() Factory {
	return FactoryFunc(func(_ context.Context, parameters json.RawMessage) (*domain.Feature, error) {
		f := &domain.Feature{}
		if err := json.Unmarshal(parameters, f); err != nil {
			return nil, err
		}
		return f, nil
	})
}

// Registry maps factory names to factories.
type Registry struct {
	mux       sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(name string, factory Factory) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.factories[name] = factory
}

func (r *Registry) Get(name string) (Factory, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	if factory, ok := r.factories[name]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("%w: '%s'", domain.ErrUnknownFactory, name)
}

// Processor materializes scheduled reference requests through their
// factories, then lets them ride the creation pipeline: version
// computation, persistence and file storage behave exactly as if the
// built feature had been submitted directly.
type Processor struct {
	Requests reqdb.Interface
	Registry *Registry
	Creation *creation.Processor
	Recorder *session.Recorder
	Logger   *log.Logger
}

func (p *Processor) Process(ctx context.Context, batch []domain.Request) error {
	if len(batch) == 0 {
		return nil
	}

	materialized := []domain.Request{}
	seenProviders := map[string]bool{}
	for _, r := range batch {
		factory, err := p.Registry.Get(r.Factory)
		if err != nil {
			if err := p.fail(ctx, r, err.Error()); err != nil {
				return err
			}
			continue
		}

		f, err := factory.Build(ctx, r.Parameters)
		if err != nil {
			if err := p.fail(ctx, r, fmt.Sprintf(
				"factory '%s' failed: %s", r.Factory, err,
			)); err != nil {
				return err
			}
			continue
		}

		// two factories may build the same provider id in one batch;
		// version computation tolerates only one per batch, the rest
		// goes back to the queue for a later pass.
		if seenProviders[f.Id] {
			if _, err := p.Requests.SetStep(
				ctx, []int64{r.Id},
				domain.StepLocalScheduled, domain.StepLocalDelayed,
			); err != nil {
				return err
			}
			continue
		}
		seenProviders[f.Id] = true

		r.Feature = f
		materialized = append(materialized, r)
	}

	return p.Creation.Process(ctx, materialized)
}

func (p *Processor) fail(ctx context.Context, r domain.Request, cause string) error {
	if err := p.Requests.MarkError(ctx, r.Id, domain.StepLocalError, cause); err != nil {
		return err
	}
	p.Recorder.Outcome(ctx, session.Of(r), domain.Error)
	return nil
}
