// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/taibuivan/whiphelmets/internal/platform/validate"
)

// # Inputs

// ProductInput carries every field of a new product.
type ProductInput struct {
	Name            string          `json:"name"`
	Slug            string          `json:"slug,omitempty"`
	Brand           string          `json:"brand"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent *int            `json:"discount_percent,omitempty"`
	Category        string          `json:"category"`
	Sizes           []string        `json:"sizes"`
	Stock           int             `json:"stock"`
	Image           string          `json:"image,omitempty"`
	Images          []string        `json:"images,omitempty"`
	Status          Status          `json:"status,omitempty"`
}

func (input *ProductInput) normalize() {
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.TrimSpace(input.Slug)
	input.Brand = strings.TrimSpace(input.Brand)
	input.Category = strings.TrimSpace(input.Category)
	input.Image = strings.TrimSpace(input.Image)
	input.Sizes = normalizeSizes(input.Sizes)
	if input.Status == "" {
		input.Status = StatusActive
	}
	if input.Images == nil {
		input.Images = []string{}
	}
}

func (input ProductInput) validate() error {
	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		MaxLen(FieldName, input.Name, 255).
		MaxLen(FieldBrand, input.Brand, 100).
		MaxLen(FieldCategory, input.Category, 100).
		Money(FieldPrice, input.Price).
		Custom(FieldPrice, !input.Price.IsPositive(), "Must be greater than zero").
		Custom(FieldStock, input.Stock < 0, "Must not be negative").
		Custom(FieldStatus, !input.Status.Valid(), "Must be one of: active, out_of_stock, hidden")

	validateDiscount(validator, input.DiscountPercent)
	validateImages(validator, input.Image, input.Images)
	if input.Slug != "" {
		validator.Slug(FieldSlug, input.Slug)
	}
	return validator.Err()
}

// ProductPatch is a partial update. Each non-nil field maps to exactly one
// column; a nil field is left untouched.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Brand       *string          `json:"brand,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Sizes       *[]string        `json:"sizes,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Images      *[]string        `json:"images,omitempty"`
	Status      *Status          `json:"status,omitempty"`

	// DiscountPercent is set when the key is present; ClearDiscount removes it.
	DiscountPercent *int `json:"discount_percent,omitempty"`
	ClearDiscount   bool `json:"clear_discount,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (patch ProductPatch) IsEmpty() bool {
	return patch.Name == nil && patch.Brand == nil && patch.Description == nil &&
		patch.Price == nil && patch.Category == nil && patch.Sizes == nil &&
		patch.Stock == nil && patch.Image == nil && patch.Images == nil &&
		patch.Status == nil && patch.DiscountPercent == nil && !patch.ClearDiscount
}

func (patch *ProductPatch) normalize() {
	for _, field := range []*string{patch.Name, patch.Brand, patch.Description, patch.Category, patch.Image} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
	if patch.Sizes != nil {
		sizes := normalizeSizes(*patch.Sizes)
		patch.Sizes = &sizes
	}
}

func (patch ProductPatch) validate() error {
	validator := &validate.Validator{}
	if patch.Name != nil {
		validator.Required(FieldName, *patch.Name).MaxLen(FieldName, *patch.Name, 255)
	}
	if patch.Brand != nil {
		validator.MaxLen(FieldBrand, *patch.Brand, 100)
	}
	if patch.Category != nil {
		validator.MaxLen(FieldCategory, *patch.Category, 100)
	}
	if patch.Price != nil {
		validator.Money(FieldPrice, *patch.Price).
			Custom(FieldPrice, !patch.Price.IsPositive(), "Must be greater than zero")
	}
	if patch.Stock != nil {
		validator.Custom(FieldStock, *patch.Stock < 0, "Must not be negative")
	}
	if patch.Status != nil {
		validator.Custom(FieldStatus, !patch.Status.Valid(), "Must be one of: active, out_of_stock, hidden")
	}
	validator.Custom(FieldDiscountPercent, patch.ClearDiscount && patch.DiscountPercent != nil, "Cannot set and clear the discount at once")
	validateDiscount(validator, patch.DiscountPercent)

	var image string
	var images []string
	if patch.Image != nil {
		image = *patch.Image
	}
	if patch.Images != nil {
		images = *patch.Images
	}
	validateImages(validator, image, images)
	return validator.Err()
}

func validateDiscount(validator *validate.Validator, percent *int) {
	if percent != nil {
		validator.Range(FieldDiscountPercent, *percent, 0, 100)
	}
}

// validateImages accepts absolute http(s) URLs and paths served by the
// storefront itself ("/assets/...").
func validateImages(validator *validate.Validator, image string, images []string) {
	if image != "" && !strings.HasPrefix(image, "/") {
		validator.URL(FieldImage, image)
	}
	for _, ref := range images {
		if !strings.HasPrefix(ref, "/") {
			validator.URL(FieldImages, ref)
		}
	}
}

// # Listing Filter

// Filter narrows a product listing.
type Filter struct {
	Category string
	Brand    string

	// Query matches name and brand, ignoring case and accents.
	Query string

	// IncludeHidden is only honoured for staff listings.
	IncludeHidden bool

	// InStock restricts the listing to products with stock > 0.
	InStock bool
}
