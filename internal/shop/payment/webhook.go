// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package payment

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Notification is an asynchronous payment announcement. Only the payment id
// is used; its state is always re-fetched from the provider.
type Notification struct {
	Type      string
	PaymentID string
}

// IsPayment reports whether the notification concerns a payment.
func (n Notification) IsPayment() bool {
	return n.Type == "payment" && n.PaymentID != ""
}

type notificationBody struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
	PaymentID json.RawMessage `json:"payment_id"`
}

// rawID accepts an identifier sent either as a JSON string or a number.
func rawID(raw json.RawMessage) string {
	value := strings.TrimSpace(string(raw))
	if value == "null" {
		return ""
	}
	return strings.Trim(value, `"`)
}

// ParseNotification reads a webhook from either its JSON body
// ({"type":"payment","data":{"id":"..."}}) or the legacy query form
// (?topic=payment&id=... or ?type=payment&data.id=...).
func ParseNotification(request *http.Request) Notification {
	query := request.URL.Query()
	notification := Notification{
		Type:      firstNonEmpty(query.Get("type"), query.Get("topic")),
		PaymentID: firstNonEmpty(query.Get("data.id"), query.Get("id")),
	}

	if request.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(request.Body, 64<<10))
		if err == nil && len(raw) > 0 {
			var body notificationBody
			if json.Unmarshal(raw, &body) == nil {
				notification.Type = firstNonEmpty(body.Type, notification.Type)
				notification.PaymentID = firstNonEmpty(rawID(body.Data.ID), rawID(body.PaymentID), notification.PaymentID)
				if notification.Type == "" && strings.HasPrefix(body.Action, "payment.") {
					notification.Type = "payment"
				}
			}
		}
	}

	notification.Type = strings.ToLower(strings.TrimSpace(notification.Type))
	notification.PaymentID = strings.TrimSpace(notification.PaymentID)
	return notification
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
