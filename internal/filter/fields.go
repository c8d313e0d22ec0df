// Package filter compiles field__lookup filter maps into parameterized
// SQL. The Schema is the single allow-list consulted for filtering,
// ordering and grouping; column identifiers only ever come from it, and
// caller values only ever travel as bound parameters.
package filter

import "sort"

// Kind classifies a field for value coercion and lookup permissions.
type Kind string

const (
	KindText    Kind = "text"
	KindInteger Kind = "integer"
	KindNumeric Kind = "numeric"
)

// Field maps a logical filter name to its column.
type Field struct {
	Name    string
	Column  string
	Kind    Kind
	Lookups []Lookup
}

func (f Field) allows(l Lookup) bool {
	for _, a := range f.Lookups {
		if a == l {
			return true
		}
	}
	return false
}

// Schema is the allow-list of filterable fields.
type Schema struct {
	pk     string
	fields map[string]Field
	names  []string
}

// NewSchema builds a schema. pkColumn is the tie-break column appended to
// every ordering. Fields without an explicit lookup set get the default
// set for their kind: text fields take exact/icontains/in, numeric and
// integer fields take exact/gt/gte/lt/lte/in.
func NewSchema(pkColumn string, fields ...Field) Schema {
	s := Schema{
		pk:     pkColumn,
		fields: make(map[string]Field, len(fields)),
		names:  make([]string, 0, len(fields)),
	}
	for _, f := range fields {
		if len(f.Lookups) == 0 {
			f.Lookups = defaultLookups(f.Kind)
		}
		s.fields[f.Name] = f
		s.names = append(s.names, f.Name)
	}
	sort.Strings(s.names)
	return s
}

func defaultLookups(kind Kind) []Lookup {
	switch kind {
	case KindInteger, KindNumeric:
		return []Lookup{LookupExact, LookupGT, LookupGTE, LookupLT, LookupLTE, LookupIn}
	default:
		return []Lookup{LookupExact, LookupIContains, LookupIn}
	}
}

// Field resolves a logical name, or returns UnknownFieldError.
func (s Schema) Field(name string) (Field, error) {
	f, ok := s.fields[name]
	if !ok {
		return Field{}, &UnknownFieldError{Field: name, Known: s.names}
	}
	return f, nil
}

// PK returns the tie-break column.
func (s Schema) PK() string {
	return s.pk
}

// Names lists the known logical field names, sorted.
func (s Schema) Names() []string {
	return s.names
}
