package database

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor of a connection.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// WhereBuilder constructs parameterized WHERE clauses. Conditions are joined
// with AND; empty values are skipped so optional filters need no branching.
type WhereBuilder struct {
	dialect    Dialect
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder creates a WhereBuilder whose first parameter is index 1.
func NewWhereBuilder(d Dialect) *WhereBuilder {
	return &WhereBuilder{dialect: d, argIndex: 1}
}

func (wb *WhereBuilder) next(arg any) string {
	p := wb.dialect.Placeholder(wb.argIndex)
	wb.args = append(wb.args, arg)
	wb.argIndex++
	return p
}

// Add appends "column = value". Empty strings and zero IDs are skipped.
func (wb *WhereBuilder) Add(column string, value any) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return
		}
	case int64:
		if v == 0 {
			return
		}
	case nil:
		return
	}
	wb.conditions = append(wb.conditions, column+" = "+wb.next(value))
}

// AddSearch appends a case-insensitive substring match of term against any
// of columns. LIKE wildcards in term match literally.
func (wb *WhereBuilder) AddSearch(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"

	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf(`LOWER(%s) LIKE %s ESCAPE '\'`, col, wb.next(pattern))
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
}

// Build returns the clause with a leading " WHERE ", or "" and nil args when
// no condition was added.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex returns the index the next parameter would take, for
// appending LIMIT and OFFSET after Build.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
