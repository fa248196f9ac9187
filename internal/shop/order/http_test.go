// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/whiphelmets/internal/platform/middleware"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/shop/order"
)

type staticResolver map[string]*sec.Principal

func (resolver staticResolver) ResolvePrincipal(_ context.Context, token string) (*sec.Principal, error) {
	return resolver[token], nil
}

func newRouter(f *fixture) http.Handler {
	handler := order.NewHandler(f.service)
	router := chi.NewRouter()
	router.Use(middleware.Authenticate(staticResolver{
		"member-token": {UserID: 7, Username: "lucia", Role: sec.RoleUser, Email: "lucia@example.com"},
		"admin-token":  {UserID: 1, Username: "admin", Role: sec.RoleAdmin},
	}))
	router.Mount("/orders", handler.Routes())
	router.Mount("/payments", handler.PaymentRoutes())
	router.Mount("/admin/orders", handler.AdminRoutes())
	return router
}

func do(router http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

const checkoutBody = `{
	"items": [{"product_id": 1, "quantity": 2, "size": "M"}],
	"customer": {"name": "Lucía Fernández", "email": "lucia@example.com", "phone": "1145678901", "address": "Av. Corrientes 1234"},
	"payment_method": "transfer"
}`

/*
TestHandler_CheckoutAndRead places a guest order over HTTP and reads it back
with the returned access token.
*/
func TestHandler_CheckoutAndRead(t *testing.T) {
	f := newFixture(helmet(1, "Casco FOX V3", "895000", 5))
	router := newRouter(f)

	recorder := do(router, http.MethodPost, "/orders", "", checkoutBody)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var receipt struct {
		Number           string `json:"order_number"`
		TotalAmount      string `json:"total_amount"`
		Status           string `json:"status"`
		VerificationCode string `json:"verification_code"`
		AccessToken      string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &receipt))
	assert.Equal(t, "1790000", receipt.TotalAmount)
	assert.Equal(t, "pending_transfer", receipt.Status)
	assert.Len(t, receipt.VerificationCode, 6)
	require.NotEmpty(t, receipt.AccessToken)

	// Anonymous read without the token looks like a missing order
	recorder = do(router, http.MethodGet, "/orders/"+receipt.Number, "", "")
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = do(router, http.MethodGet, "/orders/"+receipt.Number+"?access_token="+receipt.AccessToken, "", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	// The contact email ties the guest order to the member account
	recorder = do(router, http.MethodGet, "/orders/"+receipt.Number, "member-token", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = do(router, http.MethodGet, "/orders", "member-token", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var mine []json.RawMessage
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &mine))
	assert.Len(t, mine, 1)
}

/*
TestHandler_StockInsufficient checks the structured conflict body.
*/
func TestHandler_StockInsufficient(t *testing.T) {
	f := newFixture(helmet(1, "Casco FOX V3", "895000", 1))

	recorder := do(newRouter(f), http.MethodPost, "/orders", "", checkoutBody)
	require.Equal(t, http.StatusConflict, recorder.Code)

	body := decode(t, recorder)
	assert.Equal(t, "STOCK_INSUFFICIENT", body.Code)
	require.Len(t, body.Details, 2)
	assert.Equal(t, "product_id", body.Details[0].Field)
	assert.Equal(t, "1", body.Details[0].Message)
	assert.Equal(t, "available", body.Details[1].Field)
	assert.Equal(t, "1", body.Details[1].Message)
}

/*
TestHandler_Errors covers authorization and malformed requests.
*/
func TestHandler_Errors(t *testing.T) {
	f := newFixture(helmet(1, "Casco FOX V3", "895000", 5))
	router := newRouter(f)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		body   string
		status int
	}{
		{"unknown_field", http.MethodPost, "/orders", "", `{"items":[],"coupon":"FREE"}`, http.StatusBadRequest},
		{"bad_json", http.MethodPost, "/orders", "", `{`, http.StatusBadRequest},
		{"list_requires_auth", http.MethodGet, "/orders", "", "", http.StatusUnauthorized},
		{"unknown_session", http.MethodGet, "/orders", "expired-token", "", http.StatusUnauthorized},
		{"admin_list_forbidden", http.MethodGet, "/admin/orders", "member-token", "", http.StatusForbidden},
		{"admin_list", http.MethodGet, "/admin/orders", "admin-token", "", http.StatusOK},
		{"admin_bad_status", http.MethodPatch, "/admin/orders/1/status", "admin-token", `{"status":"lost"}`, http.StatusBadRequest},
		{"admin_bad_id", http.MethodPatch, "/admin/orders/abc/status", "admin-token", `{"status":"paid"}`, http.StatusBadRequest},
		{"admin_missing_order", http.MethodPatch, "/admin/orders/99/status", "admin-token", `{"status":"paid"}`, http.StatusNotFound},
		{"webhook_other_topic", http.MethodPost, "/payments/webhook?topic=merchant_order&id=5", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := do(router, tt.method, tt.target, tt.token, tt.body)
			assert.Equal(t, tt.status, recorder.Code, recorder.Body.String())
		})
	}
}

/*
TestHandler_AdminStatusAndWebhook moves an order through staff and provider
updates.
*/
func TestHandler_AdminStatusAndWebhook(t *testing.T) {
	f := newFixture(helmet(1, "Casco FOX V3", "895000", 5))
	router := newRouter(f)

	body := strings.Replace(checkoutBody, `"transfer"`, `"mercadopago"`, 1)
	recorder := do(router, http.MethodPost, "/orders", "member-token", body)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var receipt struct {
		ID          int64  `json:"id"`
		Number      string `json:"order_number"`
		CheckoutURL string `json:"checkout_url"`
	}
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &receipt))
	assert.NotEmpty(t, receipt.CheckoutURL)

	f.gateway.approve("991", receipt.Number, f.ledger.product(1).Price.Mul(decimal.NewFromInt(2)))
	recorder = do(router, http.MethodPost, "/payments/webhook", "", `{"type":"payment","action":"payment.updated","data":{"id":"991"}}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	stored, err := f.ledger.FindByNumber(context.Background(), receipt.Number)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, stored.Status)
	assert.Equal(t, "991", stored.PaymentID)

	recorder = do(router, http.MethodPatch, "/admin/orders/"+strconv.FormatInt(receipt.ID, 10)+"/status", "admin-token", `{"status":"shipped"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	var updated struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(decode(t, recorder).Data, &updated))
	assert.Equal(t, "shipped", updated.Status)
}
