package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/domain/model"
)

// finder reads attribute models from a directory of yaml files,
// one file per model, named "<model>.yaml".
type finder struct {
	dir string

	mux   sync.Mutex
	cache map[string][]model.AttributeDefinition
}

func New(dir string) model.Finder {
	return &finder{
		dir:   dir,
		cache: map[string][]model.AttributeDefinition{},
	}
}

type marshalModel struct {
	Attributes []struct {
		Name      string `yaml:"name"`
		Type      string `yaml:"type"`
		Mandatory bool   `yaml:"mandatory"`
	} `yaml:"attributes"`
}

func (f *finder) LoadAttributesByModel(
	ctx context.Context, name string,
) ([]model.AttributeDefinition, error) {
	f.mux.Lock()
	defer f.mux.Unlock()

	if cached, ok := f.cache[name]; ok {
		return cached, nil
	}

	// model names come from callers; keep them inside the directory.
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("'%s' is not an attribute model name", name)
	}

	buf, err := os.ReadFile(filepath.Join(f.dir, name+".yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("attribute model '%s': %w", name, domain.ErrMissing)
		}
		return nil, err
	}

	m := marshalModel{}
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return nil, fmt.Errorf("attribute model '%s': %w", name, err)
	}

	attrs := make([]model.AttributeDefinition, 0, len(m.Attributes))
	for _, a := range m.Attributes {
		t, err := model.AsAttributeType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("attribute model '%s', attribute '%s': %w", name, a.Name, err)
		}
		attrs = append(attrs, model.AttributeDefinition{
			Name: a.Name, Type: t, Mandatory: a.Mandatory,
		})
	}

	f.cache[name] = attrs
	return attrs, nil
}
