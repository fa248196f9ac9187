// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package payment talks to the card payment provider (MercadoPago).

The order ledger uses it for two things: creating a hosted checkout
preference for a placed order, and fetching the authoritative state of a
payment announced by a webhook. The provider is never trusted through the
webhook body alone.
*/
package payment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
)

// # Contracts

// Gateway is a hosted-checkout payment provider.
type Gateway interface {
	// CreatePreference registers a checkout and returns the redirect URL.
	CreatePreference(ctx context.Context, request PreferenceRequest) (*Preference, error)

	// GetPayment fetches the current state of a payment.
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// ErrDisabled is returned when no provider credentials are configured.
var ErrDisabled = apperr.ServiceUnavailable("Card payments are not available")

// # Requests & Responses

// PreferenceItem is one priced line shown on the hosted checkout.
type PreferenceItem struct {
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Payer identifies the buyer to the provider.
type Payer struct {
	Name  string
	Email string
	Phone string
}

// PreferenceRequest describes a checkout for one order.
type PreferenceRequest struct {
	// ExternalReference is echoed back on payments; the order number.
	ExternalReference string
	Items             []PreferenceItem
	Payer             Payer
	SuccessURL        string
	FailureURL        string
	PendingURL        string
	NotificationURL   string
}

// Preference is a registered checkout.
type Preference struct {
	ID          string
	CheckoutURL string
}

// Payment is the provider's view of a payment attempt.
type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	Amount            decimal.Decimal
}

// # Status Mapping

// Outcome is the ledger-relevant meaning of a provider status.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomePending
	OutcomeApproved
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeApproved:
		return "approved"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MapStatus classifies a MercadoPago payment status.
func MapStatus(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return OutcomeApproved
	case "pending", "authorized", "in_process", "in_mediation":
		return OutcomePending
	case "rejected", "cancelled", "refunded", "charged_back":
		return OutcomeRejected
	default:
		return OutcomeUnknown
	}
}

// # Disabled Gateway

// Disabled is the [Gateway] used when card payments are not configured.
type Disabled struct{}

func (Disabled) CreatePreference(context.Context, PreferenceRequest) (*Preference, error) {
	return nil, ErrDisabled
}

func (Disabled) GetPayment(context.Context, string) (*Payment, error) {
	return nil, ErrDisabled
}
