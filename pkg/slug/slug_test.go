// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package slug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/whiphelmets/pkg/slug"
)

/*
TestFrom verifies slug generation from product names.
*/
func TestFrom(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Shaft Pro 500 Negro", "shaft-pro-500-negro"},
		{"Casco Integral Rápido", "casco-integral-rapido"},
		{"  LS2 -- FF353 / Rapid  ", "ls2-ff353-rapid"},
		{"Ñandú Edición", "nandu-edicion"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, slug.From(tt.input))
		})
	}
}

/*
TestFold verifies accent- and case-insensitive folding keeps word boundaries.
*/
func TestFold(t *testing.T) {
	assert.Equal(t, "casco integral rapido", slug.Fold("  Casco Integral RÁPIDO "))
	assert.Equal(t, "nandu", slug.Fold("Ñandú"))
	assert.Equal(t, slug.Fold("Rebatible"), slug.Fold("rebatible"))
}
