// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/whiphelmets/internal/shop/catalog"
	"github.com/taibuivan/whiphelmets/pkg/pointer"
)

/*
TestApplyDiscount verifies the effective price formula and rounding to cents.
*/
func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		percent *int
		want    string
	}{
		{"no_discount", "895000", nil, "895000"},
		{"zero_percent", "895000", pointer.To(0), "895000"},
		{"ten_percent", "895000", pointer.To(10), "805500"},
		{"rounds_to_cents", "99.99", pointer.To(15), "84.99"},
		{"full_discount", "50000", pointer.To(100), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := catalog.ApplyDiscount(decimal.RequireFromString(tt.price), tt.percent)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

/*
TestSizes verifies the comma-delimited storage form of the size set.
*/
func TestSizes(t *testing.T) {
	assert.Equal(t, "S,M,L,XL", catalog.JoinSizes([]string{"S", " M", "L", "m", "XL", ""}))
	assert.Equal(t, []string{"S", "M", "L"}, catalog.SplitSizes("S, M,,L,s"))
	assert.Empty(t, catalog.SplitSizes(""))
}

/*
TestProduct_JSON verifies the computed effective price is exposed.
*/
func TestProduct_JSON(t *testing.T) {
	product := catalog.Product{
		ID:              1,
		Name:            "Casco FOX V3",
		Price:           decimal.RequireFromString("895000"),
		DiscountPercent: pointer.To(20),
		Status:          catalog.StatusActive,
	}

	raw, err := json.Marshal(product)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "716000", decoded["effective_price"])
	assert.Equal(t, "Casco FOX V3", decoded["name"])
}

/*
TestProduct_Purchasable verifies hidden and empty products cannot be bought.
*/
func TestProduct_Purchasable(t *testing.T) {
	assert.True(t, (&catalog.Product{Status: catalog.StatusActive, Stock: 1}).Purchasable())
	assert.False(t, (&catalog.Product{Status: catalog.StatusActive, Stock: 0}).Purchasable())
	assert.False(t, (&catalog.Product{Status: catalog.StatusHidden, Stock: 5}).Purchasable())
}
