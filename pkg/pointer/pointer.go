// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pointer builds pointers to values, mostly for optional fields of
// partial updates.
package pointer

// To returns a pointer to a copy of v.
func To[T any](v T) *T {
	return &v
}
