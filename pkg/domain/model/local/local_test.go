package local_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/domain/model"
	"github.com/opencatalog/fem/pkg/domain/model/local"
	"github.com/opencatalog/fem/pkg/utils/cmp"
	"github.com/opencatalog/fem/pkg/utils/try"
)

func TestLocalFinder(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, content string) {
		if err := os.WriteFile(
			filepath.Join(dir, name), []byte(content), 0o644,
		); err != nil {
			t.Fatal(err)
		}
	}

	write("observation.yaml", `
attributes:
  - name: title
    type: STRING
    mandatory: true
  - name: captureDate
    type: DATE
    mandatory: true
  - name: cloudCover
    type: DOUBLE
`)
	write("broken.yaml", `
attributes:
  - name: title
    type: TEXT
`)

	ctx := context.Background()

	t.Run("it loads attribute definitions of a model", func(t *testing.T) {
		finder := local.New(dir)

		attrs := try.To(finder.LoadAttributesByModel(ctx, "observation")).OrFatal(t)

		expected := []model.AttributeDefinition{
			{Name: "title", Type: model.TypeString, Mandatory: true},
			{Name: "captureDate", Type: model.TypeDate, Mandatory: true},
			{Name: "cloudCover", Type: model.TypeDouble, Mandatory: false},
		}
		if !cmp.SliceEq(attrs, expected) {
			t.Errorf("unexpected attributes: %+v", attrs)
		}
	})

	t.Run("an unknown model is reported missing", func(t *testing.T) {
		finder := local.New(dir)

		if _, err := finder.LoadAttributesByModel(ctx, "no-such-model"); !errors.Is(err, domain.ErrMissing) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("an unknown attribute type is an error", func(t *testing.T) {
		finder := local.New(dir)

		if _, err := finder.LoadAttributesByModel(ctx, "broken"); err == nil {
			t.Error("'broken' should not load")
		}
	})

	t.Run("model names can not leave the directory", func(t *testing.T) {
		finder := local.New(dir)

		if _, err := finder.LoadAttributesByModel(ctx, "../observation"); err == nil {
			t.Error("a traversal should be rejected")
		}
	})

	t.Run("a loaded model survives removal of its file", func(t *testing.T) {
		finder := local.New(dir)
		before := try.To(finder.LoadAttributesByModel(ctx, "observation")).OrFatal(t)

		if err := os.Remove(filepath.Join(dir, "observation.yaml")); err != nil {
			t.Fatal(err)
		}
		defer write("observation.yaml", `
attributes:
  - name: title
    type: STRING
    mandatory: true
  - name: captureDate
    type: DATE
    mandatory: true
  - name: cloudCover
    type: DOUBLE
`)

		after := try.To(finder.LoadAttributesByModel(ctx, "observation")).OrFatal(t)
		if !cmp.SliceEq(before, after) {
			t.Errorf("cached model changed: %+v vs %+v", before, after)
		}
	})
}
