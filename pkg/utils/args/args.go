// Package args bridges domain parsers and the flag package.
package args

// Adapter wraps a parse function as a flag.Value, remembering whether
// the flag appeared on the command line at all.
type Adapter[T interface{ String() string }] struct {
	parse func(string) (T, error)
	value T
	isSet bool
}

// Parser builds an Adapter for parse, ready to hand to flag.Var.
func Parser[T interface{ String() string }](parse func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parse: parse}
}

func (a *Adapter[T]) String() string {
	if !a.isSet {
		return ""
	}
	return a.value.String()
}

func (a *Adapter[T]) Set(raw string) error {
	parsed, err := a.parse(raw)
	if err != nil {
		return err
	}
	a.value = parsed
	a.isSet = true
	return nil
}

// Value returns the parsed value, or T's zero value when the flag was
// never given. Check IsSet to tell the two apart.
func (a *Adapter[T]) Value() T {
	return a.value
}

// IsSet reports whether Set was called with a parsable value.
func (a *Adapter[T]) IsSet() bool {
	return a.isSet
}
