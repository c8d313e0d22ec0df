package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Search is an optional OR-group of case-insensitive substring matches,
// appended to the WHERE clause as one extra AND term. It is the only
// place the builder emits OR; compiled clauses always combine with AND.
type Search struct {
	Needle  string
	Columns []string
}

// Spec describes one query to build. Table, Columns and TieBreak are
// trusted identifiers owned by the caller's schema; Clauses, Search and
// Ordering carry the validated request.
type Spec struct {
	Table    string
	Columns  []string
	Clauses  []Clause
	Search   *Search
	Ordering []OrderTerm
	Page     Page
	TieBreak string
}

// BuildSelect renders the fetch query. Values are only ever bound as
// positional parameters. When TieBreak is set and the ordering does not
// already include it, it is appended ascending so identical requests
// page identically.
func BuildSelect(spec Spec) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(spec.Columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(spec.Table)

	args, err := writeWhere(&b, spec)
	if err != nil {
		return "", nil, err
	}
	writeOrderBy(&b, spec)
	args = writeLimit(&b, spec.Page, args)
	return b.String(), args, nil
}

// BuildCount renders the count query for the same WHERE clause as
// BuildSelect, without ordering or pagination.
func BuildCount(spec Spec) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(spec.Table)
	args, err := writeWhere(&b, spec)
	if err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

// BuildGroupCount renders a grouped count over the filtered rows.
// Rows with a NULL group value are excluded, as are empty strings for
// text fields. Groups order by count descending, then value, so the
// output is stable.
func BuildGroupCount(spec Spec, group Field) (string, []any, error) {
	parts, args, err := whereParts(spec)
	if err != nil {
		return "", nil, err
	}
	parts = append(parts, group.Column+" IS NOT NULL")
	if group.Kind == KindText {
		parts = append(parts, group.Column+" <> ''")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(group.Column)
	b.WriteString(", COUNT(*) FROM ")
	b.WriteString(spec.Table)
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(parts, " AND "))
	b.WriteString(" GROUP BY ")
	b.WriteString(group.Column)
	b.WriteString(" ORDER BY COUNT(*) DESC, ")
	b.WriteString(group.Column)
	b.WriteString(" ASC")
	return b.String(), args, nil
}

// BuildAggregate renders "SELECT <selectExpr> FROM <table>" with the
// spec's WHERE clause. selectExpr must be a trusted literal; request
// values never belong in it.
func BuildAggregate(spec Spec, selectExpr string) (string, []any, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(selectExpr)
	b.WriteString(" FROM ")
	b.WriteString(spec.Table)
	args, err := writeWhere(&b, spec)
	if err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

func writeWhere(b *strings.Builder, spec Spec) ([]any, error) {
	parts, args, err := whereParts(spec)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return args, nil
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(parts, " AND "))
	return args, nil
}

func whereParts(spec Spec) ([]string, []any, error) {
	parts := make([]string, 0, len(spec.Clauses)+1)
	args := make([]any, 0, len(spec.Clauses)+1)
	for _, c := range spec.Clauses {
		frag, clauseArgs, err := renderClause(c, len(args))
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, frag)
		args = append(args, clauseArgs...)
	}
	if spec.Search != nil && spec.Search.Needle != "" && len(spec.Search.Columns) > 0 {
		args = append(args, "%"+EscapeLike(spec.Search.Needle)+"%")
		ph := placeholder(len(args))
		ors := make([]string, len(spec.Search.Columns))
		for i, col := range spec.Search.Columns {
			ors[i] = col + " ILIKE " + ph
		}
		parts = append(parts, "("+strings.Join(ors, " OR ")+")")
	}
	return parts, args, nil
}

func renderClause(c Clause, argCount int) (string, []any, error) {
	col := c.Field.Column
	switch c.Lookup {
	case LookupExact:
		return col + " = " + placeholder(argCount+1), []any{c.Value}, nil
	case LookupGT:
		return col + " > " + placeholder(argCount+1), []any{c.Value}, nil
	case LookupGTE:
		return col + " >= " + placeholder(argCount+1), []any{c.Value}, nil
	case LookupLT:
		return col + " < " + placeholder(argCount+1), []any{c.Value}, nil
	case LookupLTE:
		return col + " <= " + placeholder(argCount+1), []any{c.Value}, nil
	case LookupIContains:
		needle, ok := c.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("filter: icontains on %q needs a string value", c.Field.Name)
		}
		return col + " ILIKE " + placeholder(argCount+1), []any{"%" + EscapeLike(needle) + "%"}, nil
	case LookupIn:
		if len(c.Values) == 0 {
			// Membership in an empty set matches nothing.
			return "FALSE", nil, nil
		}
		phs := make([]string, len(c.Values))
		for i := range c.Values {
			phs[i] = placeholder(argCount + 1 + i)
		}
		return col + " IN (" + strings.Join(phs, ", ") + ")", c.Values, nil
	}
	return "", nil, fmt.Errorf("filter: cannot render lookup %q", c.Lookup)
}

func writeOrderBy(b *strings.Builder, spec Spec) {
	terms := make([]string, 0, len(spec.Ordering)+1)
	tieBroken := spec.TieBreak == ""
	for _, t := range spec.Ordering {
		dir := " ASC"
		if t.Desc {
			dir = " DESC"
		}
		terms = append(terms, t.Field.Column+dir)
		if t.Field.Column == spec.TieBreak {
			tieBroken = true
		}
	}
	if !tieBroken {
		terms = append(terms, spec.TieBreak+" ASC")
	}
	if len(terms) == 0 {
		return
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(terms, ", "))
}

func writeLimit(b *strings.Builder, p Page, args []any) []any {
	if p.Size <= 0 {
		return args
	}
	args = append(args, p.Size)
	b.WriteString(" LIMIT " + placeholder(len(args)))
	args = append(args, p.Offset())
	b.WriteString(" OFFSET " + placeholder(len(args)))
	return args
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike neutralizes LIKE wildcards in user text so a needle like
// "100%" matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
