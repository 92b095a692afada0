// Package query provides a small typed predicate builder so repository
// components never interpolate a value into SQL text. It replaces the
// ad-hoc "AND "-joined string concatenation the retrieved service used for
// audit event filtering (flagged as a migration hazard in §9) with a
// struct that renders to a parameterised WHERE clause plus its matching
// argument slice.
package query

import (
	"fmt"
	"strings"
)

type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "<>"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpIn           Operator = "IN"
	OpILike        Operator = "ILIKE"
)

// Predicate pairs a column with an operator and a bound value. It never
// carries raw SQL text; Column must be a known, caller-supplied identifier
// and Value is always passed as a driver parameter, never formatted into
// the query string.
type Predicate struct {
	Column string
	Op     Operator
	Value  any
}

// Builder accumulates Predicates and renders a single WHERE clause with
// Postgres-style positional parameters ($1, $2, ...).
type Builder struct {
	predicates []Predicate
	startAt    int
}

func New() *Builder {
	return &Builder{startAt: 1}
}

// StartAt overrides the first positional parameter index, for callers that
// have already consumed some parameter slots (e.g. an UPDATE's SET clause).
func (b *Builder) StartAt(n int) *Builder {
	b.startAt = n
	return b
}

func (b *Builder) Add(column string, op Operator, value any) *Builder {
	if value == nil {
		return b
	}
	b.predicates = append(b.predicates, Predicate{Column: column, Op: op, Value: value})
	return b
}

// AddIf only appends the predicate when cond is true, letting callers build
// optional filters without branching on nil pointers at each call site.
func (b *Builder) AddIf(cond bool, column string, op Operator, value any) *Builder {
	if !cond {
		return b
	}
	return b.Add(column, op, value)
}

// Render returns the WHERE clause (without the leading "WHERE") and the
// ordered argument slice to pass to the driver. An empty Builder renders
// to "TRUE" so callers can always splice the result into a query template.
func (b *Builder) Render() (string, []any) {
	if len(b.predicates) == 0 {
		return "TRUE", nil
	}
	clauses := make([]string, 0, len(b.predicates))
	args := make([]any, 0, len(b.predicates))
	idx := b.startAt
	for _, p := range b.predicates {
		if p.Op == OpIn {
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", p.Column, idx))
		} else {
			clauses = append(clauses, fmt.Sprintf("%s %s $%d", p.Column, p.Op, idx))
		}
		args = append(args, p.Value)
		idx++
	}
	return strings.Join(clauses, " AND "), args
}

// NextIndex is the positional index the next caller-appended parameter
// (e.g. LIMIT/OFFSET) should use.
func (b *Builder) NextIndex() int {
	return b.startAt + len(b.predicates)
}
