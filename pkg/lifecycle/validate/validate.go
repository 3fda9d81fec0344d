package validate

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/domain/model"
)

// maxFeatureIdLength bounds the provider-side feature id. Longer ids
// would not fit the catalog column.
const maxFeatureIdLength = 100

// Validator checks incoming request events before registration.
//
// It returns causes, not errors: an event with a non-empty cause list
// is to be denied, carrying the causes in its acknowledgement.
type Validator struct {
	Models model.Finder
}

func (v *Validator) Validate(ctx context.Context, event domain.RequestEvent) []string {
	causes := []string{}

	if event.RequestId == "" {
		causes = append(causes, "requestId is required")
	}
	if event.Owner == "" {
		causes = append(causes, "owner is required")
	}
	if event.Date.IsZero() {
		causes = append(causes, "date is required")
	}
	if event.Metadata.Priority < domain.PriorityHigh || domain.PriorityLow < event.Metadata.Priority {
		causes = append(causes, fmt.Sprintf("priority %d is out of range", event.Metadata.Priority))
	}

	switch event.Kind {
	case domain.KindCreation:
		causes = append(causes, v.validateFeaturePayload(ctx, event)...)
		causes = append(causes, validateFiles(event)...)
	case domain.KindUpdate:
		causes = append(causes, v.validateUpdate(ctx, event)...)
	case domain.KindDeletion:
		if event.Urn.IsZero() {
			causes = append(causes, "deletion requires a target urn")
		}
	case domain.KindCopy:
		if event.Urn.IsZero() {
			causes = append(causes, "copy requires a target urn")
		}
		if event.Checksum == "" {
			causes = append(causes, "copy requires the checksum of the file to copy")
		}
		if event.TargetStorage == "" {
			causes = append(causes, "copy requires a target storage")
		}
	case domain.KindNotification:
		if event.Feature == nil && event.Urn.IsZero() {
			causes = append(causes, "notification requires a feature payload or a target urn")
		}
	case domain.KindReference:
		if event.Factory == "" {
			causes = append(causes, "reference requires a factory name")
		}
		if len(event.Parameters) == 0 {
			causes = append(causes, "reference requires factory parameters")
		}
	default:
		causes = append(causes, fmt.Sprintf("'%s' is not a request kind", event.Kind))
	}

	return causes
}

func (v *Validator) validateFeaturePayload(ctx context.Context, event domain.RequestEvent) []string {
	if event.Feature == nil {
		return []string{"a feature payload is required"}
	}

	causes := []string{}
	f := event.Feature
	if f.Id == "" {
		causes = append(causes, "feature id is required")
	} else if len(f.Id) > maxFeatureIdLength {
		causes = append(causes, fmt.Sprintf(
			"feature id is longer than %d characters", maxFeatureIdLength,
		))
	}
	if f.EntityType == "" {
		causes = append(causes, "feature entityType is required")
	}
	if f.Model == "" {
		causes = append(causes, "feature model is required")
		return causes
	}

	attrs, err := v.Models.LoadAttributesByModel(ctx, f.Model)
	if err != nil {
		if errors.Is(err, domain.ErrMissing) {
			return append(causes, fmt.Sprintf("attribute model '%s' is unknown", f.Model))
		}
		return append(causes, fmt.Sprintf("attribute model '%s': %s", f.Model, err))
	}

	for _, attr := range attrs {
		value, ok := f.Properties[attr.Name]
		if !ok || value == nil {
			if attr.Mandatory {
				causes = append(causes, fmt.Sprintf("property '%s' is mandatory", attr.Name))
			}
			continue
		}
		if !attr.Type.Accepts(value) {
			causes = append(causes, fmt.Sprintf(
				"property '%s' does not conform to type %s", attr.Name, attr.Type,
			))
		}
	}

	return causes
}

// validateUpdate checks an update payload. Properties are validated
// loosely here: a patch only carries the properties it touches, so
// mandatory ones may legitimately be absent.
func (v *Validator) validateUpdate(ctx context.Context, event domain.RequestEvent) []string {
	if event.Feature == nil {
		return []string{"a feature payload is required"}
	}

	causes := []string{}
	f := event.Feature
	if f.Id == "" && f.Urn.IsZero() {
		causes = append(causes, "update requires the feature id or urn of its target")
	}
	switch event.Metadata.Mode {
	case "", domain.ModeAppend, domain.ModeReplace:
	default:
		causes = append(causes, fmt.Sprintf("'%s' is not a file update mode", event.Metadata.Mode))
	}

	if f.Model != "" {
		attrs, err := v.Models.LoadAttributesByModel(ctx, f.Model)
		if err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return append(causes, fmt.Sprintf("attribute model '%s' is unknown", f.Model))
			}
			return append(causes, fmt.Sprintf("attribute model '%s': %s", f.Model, err))
		}
		for _, attr := range attrs {
			value, ok := f.Properties[attr.Name]
			if !ok || value == nil {
				continue
			}
			if !attr.Type.Accepts(value) {
				causes = append(causes, fmt.Sprintf(
					"property '%s' does not conform to type %s", attr.Name, attr.Type,
				))
			}
		}
	}

	causes = append(causes, validateFiles(event)...)
	return causes
}

// validateFiles rejects payloads mixing files to be stored with files
// referencing an external storage. A batch cannot wait on half a group.
func validateFiles(event domain.RequestEvent) []string {
	if event.Feature == nil || !event.Feature.HasFiles() {
		return nil
	}

	causes := []string{}
	toStore, referenced := false, false
	checksums := map[string]bool{}
	for _, file := range event.Feature.Files {
		if len(file.Locations) == 0 {
			causes = append(causes, fmt.Sprintf(
				"file '%s' has no location", file.Attributes.Filename,
			))
		}
		if checksum := file.Attributes.Checksum; checksum == "" {
			causes = append(causes, fmt.Sprintf(
				"file '%s' has no checksum", file.Attributes.Filename,
			))
		} else if checksums[checksum] {
			causes = append(causes, fmt.Sprintf(
				"checksum '%s' appears on more than one file", checksum,
			))
		} else {
			checksums[checksum] = true
		}
		for _, location := range file.Locations {
			if location.Url == "" {
				causes = append(causes, fmt.Sprintf(
					"file '%s' has a location without url", file.Attributes.Filename,
				))
			} else if parsed, err := url.Parse(location.Url); err != nil || !parsed.IsAbs() {
				causes = append(causes, fmt.Sprintf(
					"file '%s' has a malformed location url '%s'",
					file.Attributes.Filename, location.Url,
				))
			}
			if location.Storage == "" {
				toStore = true
			} else {
				referenced = true
			}
		}
	}

	if toStore && referenced {
		causes = append(causes, "a request cannot carry both files to store and reference files")
	}
	if toStore && !event.Metadata.HasStorages() {
		causes = append(causes, "files to store require target storages in metadata")
	}

	return causes
}
