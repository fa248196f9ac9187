// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/whiphelmets/internal/platform/postgres"
)

/*
TestAssignments_Build verifies placeholders are numbered in order and the key
is bound last.
*/
func TestAssignments_Build(t *testing.T) {
	assignments := &postgres.Assignments{}
	assignments.Set("first_name", "Ana").
		SetRaw("updated_at", "NOW()").
		Set("phone", "1145678901")

	query, args := assignments.Build("users.account", "id", int64(7), "id")

	assert.Equal(t, "UPDATE users.account SET first_name = $1, updated_at = NOW(), phone = $2 WHERE id = $3 RETURNING id", query)
	assert.Equal(t, []any{"Ana", "1145678901", int64(7)}, args)
	assert.Equal(t, 2, assignments.Len())
}

/*
TestAssignments_NoReturning verifies the RETURNING clause is optional.
*/
func TestAssignments_NoReturning(t *testing.T) {
	assignments := &postgres.Assignments{}
	assignments.Set("stock", 3)

	query, args := assignments.Build("shop.product", "id", int64(1), "")

	assert.Equal(t, "UPDATE shop.product SET stock = $1 WHERE id = $2", query)
	assert.Len(t, args, 2)
}
