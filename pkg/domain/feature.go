package domain

import (
	"reflect"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/opencatalog/fem/pkg/utils/cmp"
)

// Feature is the versioned catalog document being created, patched or removed.
//
// A nil Geometry means "unlocated". In a patch, a nil Geometry leaves the
// existing geometry untouched: geometry can be replaced, never unset.
// A nil property value in a patch unsets the property of the same name.
type Feature struct {
	// Id is the provider id: the caller-supplied business key, stable
	// across versions.
	Id string `json:"id"`

	// Urn identifies this very version. Zero until assigned at creation.
	Urn URN `json:"urn,omitempty"`

	// EntityType of the feature (DATA, COLLECTION, ...).
	EntityType string `json:"entityType"`

	// Model names the attribute model this feature is validated against.
	Model string `json:"model"`

	Geometry   *geojson.Geometry `json:"geometry,omitempty"`
	Properties map[string]any    `json:"properties"`
	Files      []FeatureFile     `json:"files,omitempty"`
}

func (f *Feature) Equal(o *Feature) bool {
	if (f == nil) || (o == nil) {
		return (f == nil) && (o == nil)
	}
	return f.Id == o.Id &&
		f.Urn == o.Urn &&
		f.EntityType == o.EntityType &&
		f.Model == o.Model &&
		cmp.MapEqWith(f.Properties, o.Properties, func(a, b any) bool { return reflect.DeepEqual(a, b) }) &&
		cmp.SliceContentEqWith(f.Files, o.Files, FeatureFile.Equal)
}

// HasFiles is true when the feature carries at least one file.
func (f *Feature) HasFiles() bool {
	return f != nil && len(f.Files) != 0
}

// FileByChecksum finds the file carrying checksum, if any.
func (f *Feature) FileByChecksum(checksum string) (*FeatureFile, bool) {
	for i := range f.Files {
		if f.Files[i].Attributes.Checksum == checksum {
			return &f.Files[i], true
		}
	}
	return nil, false
}

// FeatureFile is one binary attached to a Feature,
// identified by checksum, possibly stored at several locations.
type FeatureFile struct {
	Attributes FileAttributes `json:"attributes"`
	Locations  []FileLocation `json:"locations"`
}

func (ff FeatureFile) Equal(o FeatureFile) bool {
	return ff.Attributes == o.Attributes &&
		cmp.SliceContentEq(ff.Locations, o.Locations)
}

type FileAttributes struct {
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
	// Algorithm of the checksum (e.g. MD5).
	Algorithm string `json:"algorithm"`
	MimeType  string `json:"mimeType"`
	Filesize  int64  `json:"filesize"`
}

// FileLocation points at one copy of a file.
//
// Storage == "" means "not stored yet": the url is a staging source the
// storage service should store, after which the location is replaced by the
// storage result.
type FileLocation struct {
	Storage string `json:"storage,omitempty"`
	Url     string `json:"url"`
}

// FeatureEntity is the persisted catalog object, distinct from the requests
// which act on it.
type FeatureEntity struct {
	Id         int64
	Urn        URN
	ProviderId string
	Version    int

	SessionOwner string
	Session      string

	Feature Feature

	// PreviousVersionUrn points at the superseded version, if any.
	PreviousVersionUrn *URN

	// Last marks the current version of a provider id lineage.
	// Exactly one version per lineage has it set once a batch settles.
	Last bool

	// DisseminationPending is set while an external consumer has to
	// acknowledge reception before the feature may be deleted.
	DisseminationPending bool

	LastUpdate time.Time
}

func (e *FeatureEntity) Equal(o *FeatureEntity) bool {
	if (e == nil) || (o == nil) {
		return (e == nil) && (o == nil)
	}
	return e.Urn == o.Urn &&
		e.ProviderId == o.ProviderId &&
		e.Version == o.Version &&
		e.SessionOwner == o.SessionOwner &&
		e.Session == o.Session &&
		e.Last == o.Last &&
		cmp.PEqEq(e.PreviousVersionUrn, o.PreviousVersionUrn) &&
		e.Feature.Equal(&o.Feature)
}
