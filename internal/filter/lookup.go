package filter

// Lookup is a filter operator, named by its key suffix. A key without a
// suffix means LookupExact.
type Lookup string

const (
	LookupExact     Lookup = "exact"
	LookupIContains Lookup = "icontains"
	LookupGT        Lookup = "gt"
	LookupGTE       Lookup = "gte"
	LookupLT        Lookup = "lt"
	LookupLTE       Lookup = "lte"
	LookupIn        Lookup = "in"
)

// IsValid reports whether l is one of the supported lookups.
func (l Lookup) IsValid() bool {
	switch l {
	case LookupExact, LookupIContains, LookupGT, LookupGTE, LookupLT, LookupLTE, LookupIn:
		return true
	}
	return false
}
