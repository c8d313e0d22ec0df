package filter

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

const keySeparator = "__"

// Clause is one compiled predicate. Clauses combine with AND. For
// LookupIn the coerced elements live in Values; every other lookup uses
// Value. Clauses are built only through Compile, so the query builder
// can trust Field and the coerced values.
type Clause struct {
	Field  Field
	Lookup Lookup
	Value  any
	Values []any
}

// Compile validates a filter map against the schema and returns the
// compiled clauses. Keys are processed in sorted order so the output,
// and the SQL built from it, is deterministic for a given map. The
// first invalid entry aborts the whole compilation; nothing is ever
// compiled partially.
func Compile(s Schema, filters map[string]any) ([]Clause, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]Clause, 0, len(keys))
	for _, key := range keys {
		c, err := compileOne(s, key, filters[key])
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

func compileOne(s Schema, key string, value any) (Clause, error) {
	name, lookup := SplitKey(key)
	f, err := s.Field(name)
	if err != nil {
		return Clause{}, err
	}
	if !lookup.IsValid() {
		return Clause{}, &UnsupportedLookupError{Field: name, Lookup: string(lookup)}
	}
	if !f.allows(lookup) {
		return Clause{}, &UnsupportedLookupError{Field: name, Lookup: string(lookup), Allowed: f.Lookups}
	}

	if lookup == LookupIn {
		values, err := coerceList(f, value)
		if err != nil {
			return Clause{}, err
		}
		return Clause{Field: f, Lookup: lookup, Values: values}, nil
	}

	v, err := coerceScalar(f, lookup, value)
	if err != nil {
		return Clause{}, err
	}
	return Clause{Field: f, Lookup: lookup, Value: v}, nil
}

// SplitKey splits a filter key on its last "__" into field name and
// lookup. A key without a separator is an exact lookup on the whole key.
func SplitKey(key string) (string, Lookup) {
	idx := strings.LastIndex(key, keySeparator)
	if idx < 0 {
		return key, LookupExact
	}
	return key[:idx], Lookup(key[idx+len(keySeparator):])
}

func coerceScalar(f Field, lookup Lookup, value any) (any, error) {
	if value == nil {
		return nil, &InvalidValueError{Field: f.Name, Lookup: string(lookup), Value: value, Reason: "value must not be null"}
	}
	switch f.Kind {
	case KindInteger:
		n, ok := toInt64(value)
		if !ok {
			return nil, &InvalidValueError{Field: f.Name, Lookup: string(lookup), Value: value, Reason: "value must be a whole number"}
		}
		return n, nil
	case KindNumeric:
		n, ok := toFloat64(value)
		if !ok {
			return nil, &InvalidValueError{Field: f.Name, Lookup: string(lookup), Value: value, Reason: "value must be a number"}
		}
		return n, nil
	default:
		str, ok := value.(string)
		if !ok {
			return nil, &InvalidValueError{Field: f.Name, Lookup: string(lookup), Value: value, Reason: "value must be a string"}
		}
		return str, nil
	}
}

func coerceList(f Field, value any) ([]any, error) {
	elems, ok := toSlice(value)
	if !ok {
		return nil, &InvalidValueError{Field: f.Name, Lookup: string(LookupIn), Value: value, Reason: "value must be a list"}
	}
	out := make([]any, 0, len(elems))
	for _, e := range elems {
		v, err := coerceScalar(f, LookupIn, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func toSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, true
	}
	return nil, false
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return v, true
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return n, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
