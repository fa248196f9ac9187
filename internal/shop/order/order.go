// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package order is the order ledger: checkout, order lookup and the order
status lifecycle.

Checkout is a single database transaction. Stock is reserved with a
conditional decrement per product, so two concurrent checkouts can never
sell the same unit twice, and any failure rolls back every reservation made
earlier in the same call.
*/
package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibuivan/whiphelmets/internal/platform/sec"
)

// # Order Status

// Status is the lifecycle position of an order.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPendingTransfer Status = "pending_transfer"
	StatusPaid            Status = "paid"
	StatusShipped         Status = "shipped"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusPendingTransfer, StatusPaid,
	StatusShipped, StatusDelivered, StatusCancelled,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, status := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// transitions is the strict lifecycle applied to automated updates.
var transitions = map[Status][]Status{
	StatusPending:         {StatusPaid, StatusCancelled},
	StatusPendingTransfer: {StatusPaid, StatusCancelled},
	StatusPaid:            {StatusShipped, StatusCancelled},
	StatusShipped:         {StatusDelivered},
}

// CanTransition reports whether the lifecycle allows from → to.
// Delivered and cancelled are terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// # Payment Method

// PaymentMethod selects how the order is settled.
type PaymentMethod string

const (
	MethodMercadoPago PaymentMethod = "mercadopago"
	MethodTransfer    PaymentMethod = "transfer"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	return m == MethodMercadoPago || m == MethodTransfer
}

// initialStatus is the status a freshly placed order starts in.
func (m PaymentMethod) initialStatus() Status {
	if m == MethodTransfer {
		return StatusPendingTransfer
	}
	return StatusPending
}

func (m PaymentMethod) numberPrefix() string {
	if m == MethodTransfer {
		return "TRF"
	}
	return "ORD"
}

// # Domain Entities

// Customer is the contact block captured at checkout.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// Order is a placed checkout and its immutable lines.
type Order struct {
	ID               int64           `json:"id"`
	Number           string          `json:"order_number"`
	UserID           *int64          `json:"user_id,omitempty"`
	Customer         Customer        `json:"customer"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	Status           Status          `json:"status"`
	PaymentID        string          `json:"payment_id,omitempty"`
	PreferenceID     string          `json:"-"`
	CheckoutURL      string          `json:"checkout_url,omitempty"`
	VerificationCode string          `json:"verification_code,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []Item          `json:"items"`
}

// Item is one order line. UnitPrice is the effective price captured at
// checkout and never follows later catalog changes.
type Item struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"`
	ProductDeleted bool            `json:"product_deleted,omitempty"`
	Size           string          `json:"size,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
}

// Subtotal is unit price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal sums the line subtotals.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// OwnedBy reports whether principal placed the order, by account or by
// contact email.
func (o *Order) OwnedBy(principal *sec.Principal) bool {
	if principal == nil {
		return false
	}
	if o.UserID != nil && *o.UserID == principal.UserID {
		return true
	}
	return principal.OwnsEmail(o.Customer.Email)
}

// DeletedProductName labels lines whose product no longer exists.
const DeletedProductName = "Deleted product"

// # Identifiers

const (
	// codeAlphabet omits 0/O and 1/I so codes survive being read aloud.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	numberSuffixLength     = 4
	verificationCodeLength = 6
)

// NewNumber returns a human-readable order number such as
// ORD-20260301120000-K7QX.
func NewNumber(method PaymentMethod, now time.Time) (string, error) {
	suffix, err := sec.GenerateCode(codeAlphabet, numberSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", method.numberPrefix(), now.UTC().Format("20060102150405"), suffix), nil
}

// NewVerificationCode returns the code a customer quotes on a bank transfer.
func NewVerificationCode() (string, error) {
	return sec.GenerateCode(codeAlphabet, verificationCodeLength)
}

// # Filters

// Filter narrows the staff order listing.
type Filter struct {
	Status Status
	Query  string
}
