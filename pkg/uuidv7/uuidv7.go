// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package uuidv7 generates the time-ordered identifiers used for request IDs
and domain event IDs.

Version 7 values sort by creation time (millisecond precision), so event IDs
read in the order the events were produced.
*/
package uuidv7

import "github.com/google/uuid"

// New returns a UUIDv7 string. If the clock-based generator fails it falls
// back to a random version 4 value rather than failing the caller.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
