// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	mppreference "github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
)

// currencyID is the only currency the store sells in.
const currencyID = "ARS"

// defaultBaseURL is where the SDK sends requests unless overridden.
const defaultBaseURL = "https://api.mercadopago.com"

// MercadoPagoConfig holds the client settings.
type MercadoPagoConfig struct {
	AccessToken string
	// BaseURL redirects SDK traffic to another host (sandbox proxies, tests).
	BaseURL string
	Timeout time.Duration
}

// MercadoPago is a [Gateway] backed by the official MercadoPago SDK.
type MercadoPago struct {
	preferences mppreference.Client
	payments    mppayment.Client
	logger      *slog.Logger
}

// NewMercadoPago constructs the SDK clients. Every call is bounded by
// config.Timeout.
func NewMercadoPago(config MercadoPagoConfig, logger *slog.Logger) (*MercadoPago, error) {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: config.Timeout}
	base := strings.TrimRight(config.BaseURL, "/")
	if base != "" && base != defaultBaseURL {
		target, err := url.Parse(base)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("mercadopago_base_url_invalid: %q", config.BaseURL)
		}
		httpClient.Transport = rebaseTransport{target: target, next: http.DefaultTransport}
	}

	sdkConfig, err := mpconfig.New(config.AccessToken, mpconfig.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("mercadopago_config_failed: %w", err)
	}

	return &MercadoPago{
		preferences: mppreference.NewClient(sdkConfig),
		payments:    mppayment.NewClient(sdkConfig),
		logger:      logger,
	}, nil
}

// rebaseTransport rewrites the scheme and host of every SDK request.
type rebaseTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (transport rebaseTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	rebased := request.Clone(request.Context())
	rebased.URL.Scheme = transport.target.Scheme
	rebased.URL.Host = transport.target.Host
	rebased.Host = transport.target.Host
	return transport.next.RoundTrip(rebased)
}

// # Gateway Implementation

/*
CreatePreference registers a hosted checkout for one order.

Returns:
  - *Preference: The preference id and redirect URL
  - error: apperr.BadGateway on transport failures or non-2xx answers
*/
func (gateway *MercadoPago) CreatePreference(ctx context.Context, request PreferenceRequest) (*Preference, error) {
	body := mppreference.Request{
		Payer: &mppreference.PayerRequest{
			Name:  request.Payer.Name,
			Email: request.Payer.Email,
		},
		BackURLs: &mppreference.BackURLsRequest{
			Success: request.SuccessURL,
			Failure: request.FailureURL,
			Pending: request.PendingURL,
		},
		NotificationURL:   request.NotificationURL,
		ExternalReference: request.ExternalReference,
	}
	if request.Payer.Phone != "" {
		body.Payer.Phone = &mppreference.PhoneRequest{Number: request.Payer.Phone}
	}
	if request.SuccessURL != "" {
		body.AutoReturn = "approved"
	}
	for _, item := range request.Items {
		body.Items = append(body.Items, mppreference.ItemRequest{
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.Round(2).InexactFloat64(),
			CurrencyID: currencyID,
		})
	}

	started := time.Now()
	response, err := gateway.preferences.Create(ctx, body)
	if err != nil {
		return nil, gateway.translate(ctx, "create_preference", err)
	}
	gateway.logger.DebugContext(ctx, "payment_provider_call",
		slog.String("operation", "create_preference"),
		slog.Duration("latency", time.Since(started)),
	)

	if response == nil || response.ID == "" || response.InitPoint == "" {
		return nil, apperr.BadGateway("Payment provider returned an incomplete checkout", nil)
	}

	gateway.logger.InfoContext(ctx, "payment_preference_created",
		slog.String("order_number", request.ExternalReference),
		slog.String("preference_id", response.ID),
	)
	return &Preference{ID: response.ID, CheckoutURL: response.InitPoint}, nil
}

// GetPayment fetches a payment by id. Provider payment ids are numeric.
func (gateway *MercadoPago) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	id, err := strconv.Atoi(strings.TrimSpace(paymentID))
	if err != nil || id <= 0 {
		return nil, apperr.ValidationError("Missing payment id")
	}

	started := time.Now()
	response, err := gateway.payments.Get(ctx, id)
	if err != nil {
		return nil, gateway.translate(ctx, "get_payment", err)
	}
	gateway.logger.DebugContext(ctx, "payment_provider_call",
		slog.String("operation", "get_payment"),
		slog.Duration("latency", time.Since(started)),
	)

	return &Payment{
		ID:                strconv.Itoa(response.ID),
		Status:            response.Status,
		StatusDetail:      response.StatusDetail,
		ExternalReference: response.ExternalReference,
		Amount:            decimal.NewFromFloat(response.TransactionAmount),
	}, nil
}

// translate maps SDK failures to client-safe errors. Provider bodies and
// credentials never reach the message.
func (gateway *MercadoPago) translate(ctx context.Context, operation string, err error) error {
	var responseErr *mperror.ResponseError
	if errors.As(err, &responseErr) {
		if responseErr.StatusCode == http.StatusNotFound {
			return apperr.NotFound("Payment")
		}
		gateway.logger.WarnContext(ctx, "payment_provider_rejected",
			slog.String("operation", operation),
			slog.Int("status", responseErr.StatusCode),
		)
		return apperr.BadGateway("Payment provider rejected the request",
			fmt.Errorf("mercadopago_status_%d", responseErr.StatusCode))
	}

	gateway.logger.WarnContext(ctx, "payment_provider_unreachable",
		slog.String("operation", operation),
		slog.Any("error", err),
	)
	return apperr.BadGateway("Payment provider is unreachable", err)
}
