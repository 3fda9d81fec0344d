package strings

import "strings"

// SplitIfNotEmpty splits s by comma, or returns nil when s is empty.
// (strings.Split would return [""] .)
func SplitIfNotEmpty(s string, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}

// SupplySuffix appends suffix to s unless s already ends with it.
func SupplySuffix(s string, suffix string) string {
	if strings.HasSuffix(s, suffix) {
		return s
	}
	return s + suffix
}
