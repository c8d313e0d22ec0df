package filter

import "strings"

// OrderTerm is one validated ordering term.
type OrderTerm struct {
	Field Field
	Desc  bool
}

// ParseOrdering validates ordering specs against the schema. A leading
// "-" means descending. Every named field must be in the schema.
func ParseOrdering(s Schema, specs []string) ([]OrderTerm, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	terms := make([]OrderTerm, 0, len(specs))
	for _, spec := range specs {
		desc := strings.HasPrefix(spec, "-")
		name := strings.TrimPrefix(spec, "-")
		f, err := s.Field(name)
		if err != nil {
			return nil, err
		}
		terms = append(terms, OrderTerm{Field: f, Desc: desc})
	}
	return terms, nil
}
