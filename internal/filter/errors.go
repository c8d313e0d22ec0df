package filter

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownFieldError reports a filter, ordering or grouping key that is
// not in the schema.
type UnknownFieldError struct {
	Field string
	Known []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q (known fields: %s)", e.Field, strings.Join(e.Known, ", "))
}

// UnsupportedLookupError reports a lookup that does not exist or is not
// permitted for the field.
type UnsupportedLookupError struct {
	Field   string
	Lookup  string
	Allowed []Lookup
}

func (e *UnsupportedLookupError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("unsupported lookup %q for field %q", e.Lookup, e.Field)
	}
	allowed := make([]string, len(e.Allowed))
	for i, l := range e.Allowed {
		allowed[i] = string(l)
	}
	return fmt.Sprintf("unsupported lookup %q for field %q (allowed: %s)", e.Lookup, e.Field, strings.Join(allowed, ", "))
}

// InvalidValueError reports a value that cannot be used with its field
// and lookup, or an out-of-range pagination value.
type InvalidValueError struct {
	Field  string
	Lookup string
	Value  any
	Reason string
}

func (e *InvalidValueError) Error() string {
	key := e.Field
	if e.Lookup != "" && e.Lookup != string(LookupExact) {
		key = e.Field + keySeparator + e.Lookup
	}
	return fmt.Sprintf("invalid value for %q: %s", key, e.Reason)
}

// IsValidationError reports whether err is one of the filter validation
// error types, as opposed to a store or infrastructure failure.
func IsValidationError(err error) bool {
	var uf *UnknownFieldError
	var ul *UnsupportedLookupError
	var iv *InvalidValueError
	return errors.As(err, &uf) || errors.As(err, &ul) || errors.As(err, &iv)
}
