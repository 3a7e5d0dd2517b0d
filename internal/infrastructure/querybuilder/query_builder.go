// Package querybuilder assembles parameterised PostgreSQL SELECT statements
// for list endpoints whose filters are optional.
package querybuilder

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator is a comparison in a WHERE condition
type Operator int

const (
	Equal Operator = iota
	NotEqual
	GreaterThan
	GreaterOrEqual
	LessThan
	LessOrEqual
	// Any matches a column against a slice argument with = ANY($n)
	Any
)

func (o Operator) format(column string, placeholder int) string {
	switch o {
	case NotEqual:
		return fmt.Sprintf("%s <> $%d", column, placeholder)
	case GreaterThan:
		return fmt.Sprintf("%s > $%d", column, placeholder)
	case GreaterOrEqual:
		return fmt.Sprintf("%s >= $%d", column, placeholder)
	case LessThan:
		return fmt.Sprintf("%s < $%d", column, placeholder)
	case LessOrEqual:
		return fmt.Sprintf("%s <= $%d", column, placeholder)
	case Any:
		return fmt.Sprintf("%s = ANY($%d)", column, placeholder)
	default:
		return fmt.Sprintf("%s = $%d", column, placeholder)
	}
}

// Direction orders results
type Direction int

const (
	Asc Direction = iota
	Desc
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

type condition struct {
	column string
	op     Operator
	value  any
	raw    string
}

type join struct {
	table string
	on    string
}

type ordering struct {
	column string
	dir    Direction
}

// SelectBuilder builds one SELECT. Values always travel as arguments.
type SelectBuilder struct {
	columns    []string
	projection string
	table      string
	joins      []join
	conditions []condition
	orderBy    []ordering
	limit      int
	offset     int
}

// Select starts a query over the given columns
func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: columns}
}

// Project starts a query with a fixed projection owned by the caller.
// The expression is not validated and must never carry user input.
func Project(expr string) *SelectBuilder {
	return &SelectBuilder{projection: strings.TrimSpace(expr)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

// Join adds an inner join. The ON expression is owned by the caller and must
// never carry user input.
func (b *SelectBuilder) Join(table, on string) *SelectBuilder {
	b.joins = append(b.joins, join{table: table, on: strings.TrimSpace(on)})
	return b
}

// Where adds an AND condition
func (b *SelectBuilder) Where(column string, op Operator, value any) *SelectBuilder {
	b.conditions = append(b.conditions, condition{column: column, op: op, value: value})
	return b
}

func (b *SelectBuilder) WhereEqual(column string, value any) *SelectBuilder {
	return b.Where(column, Equal, value)
}

// WhereIf adds the condition only when ok is true
func (b *SelectBuilder) WhereIf(ok bool, column string, op Operator, value any) *SelectBuilder {
	if !ok {
		return b
	}
	return b.Where(column, op, value)
}

// WhereTrue adds a bare boolean column or its negation
func (b *SelectBuilder) WhereTrue(column string, want bool) *SelectBuilder {
	expr := column
	if !want {
		expr = "NOT " + column
	}
	b.conditions = append(b.conditions, condition{column: column, raw: expr})
	return b
}

func (b *SelectBuilder) OrderBy(column string, dir Direction) *SelectBuilder {
	b.orderBy = append(b.orderBy, ordering{column: column, dir: dir})
	return b
}

// Limit caps the result; zero leaves it unbounded
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = n
	return b
}

// ToSQL renders the statement and its positional arguments
func (b *SelectBuilder) ToSQL() (string, []any, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("querybuilder: FROM table is required")
	}
	if !identifier.MatchString(b.table) {
		return "", nil, fmt.Errorf("querybuilder: invalid table %q", b.table)
	}

	cols := "*"
	if b.projection != "" {
		cols = b.projection
	} else if len(b.columns) > 0 {
		for _, c := range b.columns {
			if !identifier.MatchString(c) {
				return "", nil, fmt.Errorf("querybuilder: invalid column %q", c)
			}
		}
		cols = strings.Join(b.columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", cols, b.table)
	for _, j := range b.joins {
		if !identifier.MatchString(j.table) {
			return "", nil, fmt.Errorf("querybuilder: invalid join table %q", j.table)
		}
		if j.on == "" {
			return "", nil, fmt.Errorf("querybuilder: join %s needs an ON clause", j.table)
		}
		fmt.Fprintf(&sb, " JOIN %s ON %s", j.table, j.on)
	}

	var args []any
	if len(b.conditions) > 0 {
		parts := make([]string, 0, len(b.conditions))
		for _, c := range b.conditions {
			if !identifier.MatchString(c.column) {
				return "", nil, fmt.Errorf("querybuilder: invalid column %q", c.column)
			}
			if c.raw != "" {
				parts = append(parts, c.raw)
				continue
			}
			args = append(args, c.value)
			parts = append(parts, c.op.format(c.column, len(args)))
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, 0, len(b.orderBy))
		for _, o := range b.orderBy {
			if !identifier.MatchString(o.column) {
				return "", nil, fmt.Errorf("querybuilder: invalid order column %q", o.column)
			}
			if o.dir == Desc {
				parts = append(parts, o.column+" DESC")
			} else {
				parts = append(parts, o.column)
			}
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if b.limit > 0 {
		args = append(args, b.limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if b.offset > 0 {
		args = append(args, b.offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}
	return sb.String(), args, nil
}
