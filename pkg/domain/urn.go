package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// URN is the globally unique, versioned identifier of a Feature.
//
// Textual form:
//
//	URN:FEATURE:<entity type>:<tenant>:<uuid>:V<version>
//
// The uuid part is derived from the provider id, so every version of the same
// business feature shares it; only the trailing version differs.
type URN struct {
	EntityType string
	Tenant     string
	Id         uuid.UUID
	Version    int
}

const urnPrefix = "URN:FEATURE"

// NewURN derives the URN of a feature version from its business identity.
func NewURN(entityType, tenant, providerId string, version int) URN {
	return URN{
		EntityType: entityType,
		Tenant:     tenant,
		Id:         uuid.NewMD5(uuid.NameSpaceURL, []byte(providerId)),
		Version:    version,
	}
}

// ParseURN parses the textual form of URN.
func ParseURN(s string) (URN, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 || parts[0] != "URN" || parts[1] != "FEATURE" {
		return URN{}, fmt.Errorf("'%s' is not a feature URN", s)
	}

	id, err := uuid.Parse(parts[4])
	if err != nil {
		return URN{}, fmt.Errorf("'%s' is not a feature URN: %w", s, err)
	}

	if !strings.HasPrefix(parts[5], "V") {
		return URN{}, fmt.Errorf("'%s' is not a feature URN: version should be V<n>", s)
	}
	version, err := strconv.Atoi(parts[5][1:])
	if err != nil {
		return URN{}, fmt.Errorf("'%s' is not a feature URN: %w", s, err)
	}

	return URN{
		EntityType: parts[2],
		Tenant:     parts[3],
		Id:         id,
		Version:    version,
	}, nil
}

func (u URN) String() string {
	return fmt.Sprintf(
		"%s:%s:%s:%s:V%d",
		urnPrefix, u.EntityType, u.Tenant, u.Id.String(), u.Version,
	)
}

// IsZero is true for the zero URN, meaning "not assigned yet".
func (u URN) IsZero() bool {
	return u == URN{}
}

// WithVersion returns the URN of another version in the same lineage.
func (u URN) WithVersion(version int) URN {
	u.Version = version
	return u
}

func (u URN) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *URN) UnmarshalText(text []byte) error {
	parsed, err := ParseURN(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
