// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package payment_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/shop/payment"
)

func newClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *payment.MercadoPago {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := payment.NewMercadoPago(payment.MercadoPagoConfig{
		AccessToken: "TEST-token",
		BaseURL:     server.URL + "/",
		Timeout:     timeout,
	}, logger)
	require.NoError(t, err)
	return client
}

/*
TestMapStatus classifies every provider status the ledger reacts to.
*/
func TestMapStatus(t *testing.T) {
	tests := []struct {
		status  string
		outcome payment.Outcome
	}{
		{"approved", payment.OutcomeApproved},
		{" APPROVED ", payment.OutcomeApproved},
		{"pending", payment.OutcomePending},
		{"in_process", payment.OutcomePending},
		{"authorized", payment.OutcomePending},
		{"in_mediation", payment.OutcomePending},
		{"rejected", payment.OutcomeRejected},
		{"cancelled", payment.OutcomeRejected},
		{"refunded", payment.OutcomeRejected},
		{"charged_back", payment.OutcomeRejected},
		{"", payment.OutcomeUnknown},
		{"something_new", payment.OutcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.outcome, payment.MapStatus(tt.status))
		})
	}
}

/*
TestMercadoPago_CreatePreference checks the outgoing request and the parsed
answer.
*/
func TestMercadoPago_CreatePreference(t *testing.T) {
	var captured map[string]any
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/checkout/preferences", request.URL.Path)
		assert.Equal(t, "Bearer TEST-token", request.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(request.Body).Decode(&captured))

		writer.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(writer, `{"id":"123-abc","init_point":"https://www.mercadopago.com.ar/checkout/v1/redirect?pref_id=123-abc"}`)
	}, time.Second)

	preference, err := client.CreatePreference(context.Background(), payment.PreferenceRequest{
		ExternalReference: "ORD-20260301120000-K7QX",
		Items: []payment.PreferenceItem{
			{Title: "Casco FOX V3 (M)", Quantity: 2, UnitPrice: decimal.RequireFromString("895000.50")},
		},
		Payer:           payment.Payer{Name: "Lucía", Email: "lucia@example.com"},
		SuccessURL:      "https://shop.example.com/checkout/success",
		NotificationURL: "https://shop.example.com/api/v1/payments/webhook",
	})
	require.NoError(t, err)
	assert.Equal(t, "123-abc", preference.ID)
	assert.Contains(t, preference.CheckoutURL, "pref_id=123-abc")

	assert.Equal(t, "ORD-20260301120000-K7QX", captured["external_reference"])
	assert.Equal(t, "approved", captured["auto_return"])
	items := captured["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "ARS", item["currency_id"])
	assert.EqualValues(t, 895000.5, item["unit_price"])
	assert.EqualValues(t, 2, item["quantity"])
}

/*
TestMercadoPago_GetPayment parses a payment with a numeric id.
*/
func TestMercadoPago_GetPayment(t *testing.T) {
	client := newClient(t, func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, "/v1/payments/991", request.URL.Path)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(writer, `{"id":991,"status":"approved","status_detail":"accredited","external_reference":"ORD-1","transaction_amount":1790000}`)
	}, time.Second)

	found, err := client.GetPayment(context.Background(), "991")
	require.NoError(t, err)
	assert.Equal(t, "991", found.ID)
	assert.Equal(t, "approved", found.Status)
	assert.Equal(t, "ORD-1", found.ExternalReference)
	assert.True(t, decimal.NewFromInt(1790000).Equal(found.Amount))
}

/*
TestMercadoPago_Failures maps provider failures to client-safe errors.
*/
func TestMercadoPago_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    string
	}{
		{"server_error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}, "UPSTREAM_ERROR"},
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"invalid access token"}`)
		}, "UPSTREAM_ERROR"},
		{"not_found", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}, "NOT_FOUND"},
		{"malformed", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		}, "UPSTREAM_ERROR"},
		{"too_slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}, "UPSTREAM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, tt.handler, 100*time.Millisecond)

			_, err := client.GetPayment(context.Background(), "1")
			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, tt.code, ae.Code)
			assert.NotContains(t, ae.Message, "token")
		})
	}
}

/*
TestMercadoPago_InvalidInput verifies malformed ids and base URLs are
rejected before any request is sent.
*/
func TestMercadoPago_InvalidInput(t *testing.T) {
	calls := 0
	client := newClient(t, func(http.ResponseWriter, *http.Request) { calls++ }, time.Second)

	for _, id := range []string{"", "  ", "abc", "-4"} {
		_, err := client.GetPayment(context.Background(), id)
		assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code, "id %q", id)
	}
	assert.Zero(t, calls)

	_, err := payment.NewMercadoPago(payment.MercadoPagoConfig{AccessToken: "t", BaseURL: "not a url"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "mercadopago_base_url_invalid")
}

/*
TestDisabled reports card payments as unavailable.
*/
func TestDisabled(t *testing.T) {
	var gateway payment.Gateway = payment.Disabled{}

	_, err := gateway.CreatePreference(context.Background(), payment.PreferenceRequest{})
	assert.Equal(t, "SERVICE_UNAVAILABLE", apperr.As(err).Code)

	_, err = gateway.GetPayment(context.Background(), "1")
	assert.Equal(t, "SERVICE_UNAVAILABLE", apperr.As(err).Code)
}

/*
TestParseNotification accepts the JSON and the query-string webhook forms.
*/
func TestParseNotification(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		body      string
		typ       string
		paymentID string
	}{
		{"json_body", "/webhook", `{"type":"payment","data":{"id":"991"}}`, "payment", "991"},
		{"json_numeric_id", "/webhook", `{"type":"payment","data":{"id":991}}`, "payment", "991"},
		{"action_only", "/webhook", `{"action":"payment.created","data":{"id":"7"}}`, "payment", "7"},
		{"flat_payment_id", "/webhook", `{"type":"payment","payment_id":42,"status":"approved"}`, "payment", "42"},
		{"legacy_query", "/webhook?topic=payment&id=55", "", "payment", "55"},
		{"query_data_id", "/webhook?type=payment&data.id=66", "", "payment", "66"},
		{"other_topic", "/webhook?topic=merchant_order&id=1", "", "merchant_order", "1"},
		{"garbage", "/webhook", `not json`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			notification := payment.ParseNotification(request)
			assert.Equal(t, tt.typ, notification.Type)
			assert.Equal(t, tt.paymentID, notification.PaymentID)
			assert.Equal(t, tt.typ == "payment" && tt.paymentID != "", notification.IsPayment())
		})
	}
}
