// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package catalog manages the helmets and accessories offered by the store.

Prices are fixed-point ([decimal.Decimal]) end to end. Stock is only read
here; the order ledger is the single writer that decrements it during
checkout.
*/
package catalog

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// # Product Status

// Status controls whether a product is listed and purchasable.
type Status string

const (
	StatusActive     Status = "active"
	StatusOutOfStock Status = "out_of_stock"
	StatusHidden     Status = "hidden"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOutOfStock, StatusHidden:
		return true
	}
	return false
}

// # Domain Entities

// Product is a sellable catalog entry.
type Product struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Brand           string          `json:"brand"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent *int            `json:"discount_percent,omitempty"`
	Category        string          `json:"category"`
	Sizes           []string        `json:"sizes"`
	Stock           int             `json:"stock"`
	Image           string          `json:"image,omitempty"`
	Images          []string        `json:"images"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EffectivePrice is the price after the discount, rounded to cents.
func (p *Product) EffectivePrice() decimal.Decimal {
	return ApplyDiscount(p.Price, p.DiscountPercent)
}

// Purchasable reports whether the product can be added to an order.
func (p *Product) Purchasable() bool {
	return p.Status != StatusHidden && p.Stock > 0
}

// MarshalJSON adds the computed effective price to the payload.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		EffectivePrice decimal.Decimal `json:"effective_price"`
	}{plain(p), p.EffectivePrice()})
}

// ApplyDiscount returns price − price × percent / 100 rounded to cents.
// A nil or zero percent leaves the price unchanged.
func ApplyDiscount(price decimal.Decimal, percent *int) decimal.Decimal {
	if percent == nil || *percent <= 0 {
		return price.Round(2)
	}
	discount := price.Mul(decimal.NewFromInt(int64(*percent))).Div(decimal.NewFromInt(100))
	return price.Sub(discount).Round(2)
}

// # Sizes

// JoinSizes renders the size set in its stored comma-delimited form.
// Duplicates are dropped and order is kept.
func JoinSizes(sizes []string) string {
	return strings.Join(normalizeSizes(sizes), ",")
}

// SplitSizes parses the stored form back into a set.
func SplitSizes(raw string) []string {
	return normalizeSizes(strings.Split(raw, ","))
}

func normalizeSizes(sizes []string) []string {
	seen := make(map[string]struct{}, len(sizes))
	result := make([]string, 0, len(sizes))
	for _, size := range sizes {
		size = strings.TrimSpace(size)
		key := strings.ToUpper(size)
		if size == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, size)
	}
	return result
}

// # Field Identifiers

const (
	FieldName            = "name"
	FieldSlug            = "slug"
	FieldBrand           = "brand"
	FieldPrice           = "price"
	FieldDiscountPercent = "discount_percent"
	FieldCategory        = "category"
	FieldSizes           = "sizes"
	FieldStock           = "stock"
	FieldImage           = "image"
	FieldImages          = "images"
	FieldStatus          = "status"
)
