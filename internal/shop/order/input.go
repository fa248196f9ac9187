// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package order

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/taibuivan/whiphelmets/internal/platform/validate"
)

const (
	maxLines       = 50
	maxLineQty     = 99
	maxFieldLength = 255
)

// # Checkout Input

// LineInput is one requested product.
type LineInput struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
}

// CreateInput is a checkout request.
type CreateInput struct {
	Items         []LineInput   `json:"items"`
	Customer      Customer      `json:"customer"`
	PaymentMethod PaymentMethod `json:"payment_method"`

	// ExpectedTotal is the total the storefront displayed. When present it
	// must match the computed total, so a stale cart is refused instead of
	// charged at a different price.
	ExpectedTotal *decimal.Decimal `json:"expected_total,omitempty"`
}

func (input *CreateInput) normalize() {
	customer := &input.Customer
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Email = strings.ToLower(strings.TrimSpace(customer.Email))
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Address = strings.TrimSpace(customer.Address)
	customer.City = strings.TrimSpace(customer.City)
	customer.Zip = strings.TrimSpace(customer.Zip)
	input.PaymentMethod = PaymentMethod(strings.ToLower(strings.TrimSpace(string(input.PaymentMethod))))
	for i := range input.Items {
		input.Items[i].Size = strings.TrimSpace(input.Items[i].Size)
	}
}

func (input CreateInput) validate() error {
	validator := &validate.Validator{}
	customer := input.Customer

	validator.Required("customer.name", customer.Name).
		MaxLen("customer.name", customer.Name, maxFieldLength).
		Email("customer.email", customer.Email).
		Required("customer.phone", customer.Phone).
		Phone("customer.phone", customer.Phone).
		Required("customer.address", customer.Address).
		MaxLen("customer.address", customer.Address, maxFieldLength).
		MaxLen("customer.city", customer.City, 100).
		MaxLen("customer.zip", customer.Zip, 20).
		OneOf("payment_method", string(input.PaymentMethod), string(MethodMercadoPago), string(MethodTransfer)).
		Custom("items", len(input.Items) == 0, "At least one item is required").
		Custom("items", len(input.Items) > maxLines, fmt.Sprintf("At most %d items per order", maxLines))

	for i, line := range input.Items {
		field := fmt.Sprintf("items[%d]", i)
		validator.Custom(field+".product_id", line.ProductID <= 0, "Must be a valid product id").
			Range(field+".quantity", line.Quantity, 1, maxLineQty).
			MaxLen(field+".size", line.Size, 20)
	}

	// Repeated lines are merged before reservation, so the cap applies to
	// the merged quantity too.
	for _, merged := range mergeLines(input.Items) {
		validator.Custom("items", merged.Quantity > maxLineQty,
			fmt.Sprintf("Product %d: at most %d units per product and size", merged.ProductID, maxLineQty))
	}

	if input.ExpectedTotal != nil {
		validator.Money("expected_total", *input.ExpectedTotal)
	}
	return validator.Err()
}

// # Line Merging

// mergeLines folds repeated (product, size) pairs into one line and sorts
// the result by product id, then size. Reserving stock in this order means
// concurrent checkouts lock products in the same sequence.
func mergeLines(lines []LineInput) []LineInput {
	type key struct {
		productID int64
		size      string
	}
	index := make(map[key]int, len(lines))
	merged := make([]LineInput, 0, len(lines))

	for _, line := range lines {
		k := key{line.ProductID, strings.ToUpper(line.Size)}
		if position, seen := index[k]; seen {
			merged[position].Quantity += line.Quantity
			continue
		}
		index[k] = len(merged)
		merged = append(merged, line)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].ProductID != merged[j].ProductID {
			return merged[i].ProductID < merged[j].ProductID
		}
		return strings.ToUpper(merged[i].Size) < strings.ToUpper(merged[j].Size)
	})
	return merged
}

// quantitiesByProduct sums merged lines per product, keeping ascending id
// order.
func quantitiesByProduct(lines []LineInput) ([]int64, map[int64]int) {
	quantities := make(map[int64]int, len(lines))
	var ids []int64
	for _, line := range lines {
		if _, seen := quantities[line.ProductID]; !seen {
			ids = append(ids, line.ProductID)
		}
		quantities[line.ProductID] += line.Quantity
	}
	return ids, quantities
}

// # Status Input

// StatusInput is the body of a staff status change.
type StatusInput struct {
	Status Status `json:"status"`
}
