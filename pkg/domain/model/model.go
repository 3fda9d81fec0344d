package model

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// AttributeType constrains the values a feature property may hold.
type AttributeType string

const (
	TypeString  AttributeType = "STRING"
	TypeInteger AttributeType = "INTEGER"
	TypeDouble  AttributeType = "DOUBLE"
	TypeBoolean AttributeType = "BOOLEAN"
	TypeDate    AttributeType = "DATE"
	TypeUrl     AttributeType = "URL"
)

func AsAttributeType(s string) (AttributeType, error) {
	switch s {
	case string(TypeString):
		return TypeString, nil
	case string(TypeInteger):
		return TypeInteger, nil
	case string(TypeDouble):
		return TypeDouble, nil
	case string(TypeBoolean):
		return TypeBoolean, nil
	case string(TypeDate):
		return TypeDate, nil
	case string(TypeUrl):
		return TypeUrl, nil
	default:
		return "", fmt.Errorf("'%s' is not an AttributeType", s)
	}
}

// Accepts tells whether value conforms to the type.
//
// Values come from JSON, so numbers arrive as float64 and dates as
// RFC 3339 strings.
func (t AttributeType) Accepts(value any) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case float64:
			return v == float64(int64(v))
		case int, int64:
			return true
		case string:
			_, err := strconv.ParseInt(v, 10, 64)
			return err == nil
		}
		return false
	case TypeDouble:
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeDate:
		s, ok := value.(string)
		if !ok {
			return false
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	case TypeUrl:
		s, ok := value.(string)
		if !ok {
			return false
		}
		u, err := url.Parse(s)
		return err == nil && u.Scheme != ""
	default:
		return false
	}
}

// AttributeDefinition is one property declared by an attribute model.
type AttributeDefinition struct {
	Name      string        `yaml:"name" json:"name"`
	Type      AttributeType `yaml:"type" json:"type"`
	Mandatory bool          `yaml:"mandatory" json:"mandatory"`
}

// Finder resolves an attribute model name to its declared properties.
type Finder interface {
	// LoadAttributesByModel returns the declared attributes of model.
	// Unknown models return ErrMissing-unwrapping errors.
	LoadAttributesByModel(ctx context.Context, model string) ([]AttributeDefinition, error)
}
