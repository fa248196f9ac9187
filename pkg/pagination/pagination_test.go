// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

/*
TestFromRequest verifies defaults and clamping of page and limit.
*/
func TestFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		want   pagination.Params
		offset int
	}{
		{"defaults", "", pagination.Params{Page: 1, Limit: 20}, 0},
		{"explicit", "?page=3&limit=10", pagination.Params{Page: 3, Limit: 10}, 20},
		{"negative_page", "?page=-2", pagination.Params{Page: 1, Limit: 20}, 0},
		{"limit_over_max", "?limit=500", pagination.Params{Page: 1, Limit: 20}, 0},
		{"garbage", "?page=two&limit=x", pagination.Params{Page: 1, Limit: 20}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pagination.FromRequest(httptest.NewRequest("GET", "/products"+tt.query, nil))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.offset, got.Offset())
		})
	}
}

/*
TestNewMeta verifies the page count rounds up.
*/
func TestNewMeta(t *testing.T) {
	assert.Equal(t, 3, pagination.NewMeta(1, 20, 41).TotalPages)
	assert.Equal(t, 0, pagination.NewMeta(1, 20, 0).TotalPages)
	assert.Equal(t, 0, pagination.NewMeta(1, 0, 10).TotalPages)
}
