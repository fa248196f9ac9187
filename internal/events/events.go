// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package events defines the domain events the storefront publishes after a
// state change has committed, and the payloads carried by each of them.
//
// Publishing is best effort. A failed publish is logged by the caller and
// never undoes the change that triggered it.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Type names an event. It doubles as the routing key on the broker.
type Type string

const (
	TypeUserRegistered         Type = "user.registered"
	TypePasswordResetRequested Type = "user.password_reset_requested"
	TypeOrderPlaced            Type = "order.placed"
	TypeOrderStatusChanged     Type = "order.status_changed"
)

// Envelope is the wire format of every event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into target.
func (envelope Envelope) Decode(target any) error {
	return json.Unmarshal(envelope.Payload, target)
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, eventType Type, payload any) error
}

// Noop discards every event. Used when no broker is configured.
type Noop struct{}

// Publish implements [Publisher].
func (Noop) Publish(context.Context, Type, any) error { return nil }

// # Payloads

// UserRegistered is emitted after an account is created.
type UserRegistered struct {
	UserID            int64  `json:"user_id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	VerificationToken string `json:"verification_token,omitempty"`
}

// PasswordResetRequested is emitted when a customer asks for a reset link.
type PasswordResetRequested struct {
	UserID     int64  `json:"user_id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	ResetToken string `json:"reset_token"`
}

// OrderPlacedItem is one line of an [OrderPlaced] event.
type OrderPlacedItem struct {
	ProductName string `json:"product_name"`
	Size        string `json:"size,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

// OrderPlaced is emitted after checkout commits.
type OrderPlaced struct {
	OrderNumber      string            `json:"order_number"`
	CustomerName     string            `json:"customer_name"`
	CustomerEmail    string            `json:"customer_email"`
	TotalAmount      string            `json:"total_amount"`
	PaymentMethod    string            `json:"payment_method"`
	Status           string            `json:"status"`
	VerificationCode string            `json:"verification_code,omitempty"`
	AccessToken      string            `json:"access_token,omitempty"`
	PlacedAt         time.Time         `json:"placed_at"`
	Items            []OrderPlacedItem `json:"items"`
}

// OrderStatusChanged is emitted after an order moves to another status.
type OrderStatusChanged struct {
	OrderNumber   string `json:"order_number"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	From          string `json:"from"`
	To            string `json:"to"`
}
