// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package postgres

import (
	"fmt"
	"strings"
)

// Assignments accumulates "column = $n" pairs for a partial UPDATE.
//
// Column names must come from constants in the calling repository, never
// from client input. Values are always bound as positional parameters.
type Assignments struct {
	columns []string
	args    []any
}

// Set appends an assignment.
func (assignments *Assignments) Set(column string, value any) *Assignments {
	assignments.columns = append(assignments.columns, column)
	assignments.args = append(assignments.args, value)
	return assignments
}

// SetRaw appends an assignment to a SQL expression without a parameter,
// e.g. "updated_at = NOW()".
func (assignments *Assignments) SetRaw(column, expression string) *Assignments {
	assignments.columns = append(assignments.columns, column+" = "+expression)
	return assignments
}

// Len returns the number of parameterized assignments.
func (assignments *Assignments) Len() int {
	return len(assignments.args)
}

// Build renders "UPDATE table SET ... WHERE key = $n RETURNING returning".
// The key value is bound as the last parameter.
func (assignments *Assignments) Build(table, keyColumn string, keyValue any, returning string) (string, []any) {
	clauses := make([]string, 0, len(assignments.columns))
	position := 0
	for _, column := range assignments.columns {
		if strings.Contains(column, " = ") {
			clauses = append(clauses, column)
			continue
		}
		position++
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, position))
	}

	args := append(append([]any{}, assignments.args...), keyValue)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, strings.Join(clauses, ", "), keyColumn, len(args))
	if returning != "" {
		query += " RETURNING " + returning
	}
	return query, args
}
