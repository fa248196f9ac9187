// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibuivan/whiphelmets/internal/events"
	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/shop/catalog"
	"github.com/taibuivan/whiphelmets/internal/shop/payment"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
	"github.com/taibuivan/whiphelmets/pkg/pointer"
	"github.com/taibuivan/whiphelmets/pkg/slice"
)

// maxNumberAttempts bounds checkout retries after an order number collision.
const maxNumberAttempts = 3

// # Contracts & Types

// LinkSigner issues and checks guest order-access tokens.
// Satisfied by [*sec.OrderLinkSigner].
type LinkSigner interface {
	Sign(orderNumber string) (string, error)
	Verify(token string) (string, error)
}

// Settings holds the public URLs handed to the payment provider.
type Settings struct {
	// PublicBaseURL is the storefront origin, without a trailing slash.
	PublicBaseURL string
}

// Receipt is what a customer gets back from checkout.
type Receipt struct {
	*Order

	// AccessToken lets a guest read the order later.
	AccessToken string `json:"access_token,omitempty"`

	// CheckoutError is set when the order was placed but the hosted
	// checkout could not be created. The customer may retry it.
	CheckoutError string `json:"checkout_error,omitempty"`
}

// Service implements the ledger use cases.
type Service struct {
	store     Store
	signer    LinkSigner
	gateway   payment.Gateway
	publisher events.Publisher
	settings  Settings
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a new [Service]. A nil gateway disables card checkout.
func NewService(
	store Store,
	signer LinkSigner,
	gateway payment.Gateway,
	publisher events.Publisher,
	settings Settings,
	logger *slog.Logger,
) *Service {
	if gateway == nil {
		gateway = payment.Disabled{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	settings.PublicBaseURL = strings.TrimRight(settings.PublicBaseURL, "/")
	return &Service{
		store:     store,
		signer:    signer,
		gateway:   gateway,
		publisher: publisher,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for order numbers.
func (service *Service) WithClock(now func() time.Time) *Service {
	service.now = now
	return service
}

// # Checkout

/*
CreateOrder places an order.

Description: Lines for the same product and size are merged. Inside one
transaction, stock of every product is reserved in ascending id order, the
unit price is captured from the product's effective price, and the order
and its lines are inserted. A failure at any step rolls every reservation
back. Card orders then get a hosted checkout; a provider failure is reported
in the receipt and does not undo the order.

Parameters:
  - context: context.Context
  - input: CreateInput
  - requester: *sec.Principal (nil for guest checkout)

Returns:
  - *Receipt: The placed order and a guest access token
  - error: Validation, STOCK_INSUFFICIENT, NotFound, Unprocessable or storage failures
*/
func (service *Service) CreateOrder(context context.Context, input CreateInput, requester *sec.Principal) (*Receipt, error) {

	// ── 1. Validate ──
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}

	lines := mergeLines(input.Items)
	productIDs, quantities := quantitiesByProduct(lines)

	// ── 2. Reserve, price and persist in one transaction ──
	var order *Order
	var err error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		order, err = service.newOrder(input, requester)
		if err != nil {
			return nil, err
		}

		err = service.store.WithinTx(context, func(tx Tx) error {
			return service.placeOrder(context, tx, order, lines, productIDs, quantities, input.ExpectedTotal)
		})
		if !errors.Is(err, ErrNumberTaken) {
			break
		}
		service.logger.WarnContext(context, "order_number_collision",
			slog.String("order_number", order.Number),
			slog.Int("attempt", attempt),
		)
	}
	if err != nil {
		if errors.Is(err, ErrNumberTaken) {
			return nil, fmt.Errorf("order_create_failed: %w", err)
		}
		return nil, err
	}

	service.logger.InfoContext(context, "order_created",
		slog.String("order_number", order.Number),
		slog.String("payment_method", string(order.PaymentMethod)),
		slog.String("total", order.TotalAmount.StringFixed(2)),
		slog.Int("lines", len(order.Items)),
	)

	// ── 3. Post-commit side effects ──
	receipt := &Receipt{Order: order}
	if token, err := service.signer.Sign(order.Number); err != nil {
		service.logger.WarnContext(context, "order_link_sign_failed", slog.Any("error", err))
	} else {
		receipt.AccessToken = token
	}

	service.publish(context, events.TypeOrderPlaced, placedEvent(order, receipt.AccessToken))

	if order.PaymentMethod == MethodMercadoPago {
		if err := service.attachCheckout(context, order); err != nil {
			receipt.CheckoutError = "Payment provider is unavailable, retry the checkout later"
		}
	}

	return receipt, nil
}

func (service *Service) newOrder(input CreateInput, requester *sec.Principal) (*Order, error) {
	number, err := NewNumber(input.PaymentMethod, service.now())
	if err != nil {
		return nil, err
	}

	order := &Order{
		Number:        number,
		Customer:      input.Customer,
		PaymentMethod: input.PaymentMethod,
		Status:        input.PaymentMethod.initialStatus(),
	}
	if requester != nil {
		order.UserID = pointer.To(requester.UserID)
	}
	if input.PaymentMethod == MethodTransfer {
		if order.VerificationCode, err = NewVerificationCode(); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (service *Service) placeOrder(
	context context.Context,
	tx Tx,
	order *Order,
	lines []LineInput,
	productIDs []int64,
	quantities map[int64]int,
	expectedTotal *decimal.Decimal,
) error {
	products := make(map[int64]*catalog.Product, len(productIDs))
	for _, id := range productIDs {
		product, err := tx.ReserveStock(context, id, quantities[id])
		if err != nil {
			if ae := apperr.As(err); ae != nil && ae.Code == "STOCK_INSUFFICIENT" {
				service.logger.InfoContext(context, "stock_insufficient",
					slog.Int64("product_id", id),
					slog.Int("requested", quantities[id]),
				)
			}
			return err
		}
		products[id] = product
	}

	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		product := products[line.ProductID]
		size, err := matchSize(product, line.Size)
		if err != nil {
			return err
		}
		items = append(items, Item{
			ProductID:   product.ID,
			ProductName: product.Name,
			Size:        size,
			Quantity:    line.Quantity,
			UnitPrice:   product.EffectivePrice(),
		})
	}

	order.Items = items
	order.TotalAmount = order.ItemsTotal()

	if expectedTotal != nil && !expectedTotal.Round(2).Equal(order.TotalAmount) {
		return apperr.Unprocessable(fmt.Sprintf("Cart total changed, the current total is %s", order.TotalAmount.StringFixed(2)))
	}

	if err := tx.InsertOrder(context, order); err != nil {
		return err
	}
	return tx.InsertItems(context, order.ID, order.Items)
}

// matchSize resolves the requested size against the product's size set,
// returning the catalog spelling. A line may omit the size.
func matchSize(product *catalog.Product, requested string) (string, error) {
	if requested == "" {
		return "", nil
	}
	for _, size := range product.Sizes {
		if strings.EqualFold(size, requested) {
			return size, nil
		}
	}

	message := fmt.Sprintf("%s has no sizes", product.Name)
	if len(product.Sizes) > 0 {
		message = fmt.Sprintf("Must be one of: %s", strings.Join(product.Sizes, ", "))
	}
	return "", apperr.ValidationError("Invalid size", apperr.FieldError{Field: "items.size", Message: message})
}

// # Reads

/*
GetOrder returns an order with its lines.

Description: Staff see every order. Anyone else sees an order only when it
belongs to them (by account or contact email) or when accessToken is a valid
link for that order number. Every other case is reported as not found so
order numbers cannot be guessed.
*/
func (service *Service) GetOrder(context context.Context, number string, requester *sec.Principal, accessToken string) (*Order, error) {
	order, err := service.store.FindByNumber(context, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if !service.canRead(order, requester, accessToken) {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (service *Service) canRead(order *Order, requester *sec.Principal, accessToken string) bool {
	if requester.IsAdmin() || order.OwnedBy(requester) {
		return true
	}
	if accessToken == "" {
		return false
	}
	granted, err := service.signer.Verify(accessToken)
	return err == nil && granted == order.Number
}

// ListOrdersForUser returns the requester's orders, newest first.
func (service *Service) ListOrdersForUser(context context.Context, requester *sec.Principal) ([]*Order, error) {
	if requester == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return service.store.ListForOwner(context, requester.UserID, requester.Email)
}

// ListOrders returns one page of orders for staff.
func (service *Service) ListOrders(context context.Context, filter Filter, page pagination.Params) ([]*Order, int, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.ValidationError("Invalid filter", apperr.FieldError{Field: "status", Message: "Unknown status"})
	}
	return service.store.List(context, filter, page)
}

// # Status Changes

/*
UpdateStatus sets an order's status on behalf of staff.

Description: Any known status may be set from any other, so staff can
correct mistakes. Setting the current status again is a no-op. Stock is
not restored on cancellation.

Parameters:
  - context: context.Context
  - orderID: int64
  - status: Status

Returns:
  - *Order: The order after the change
  - error: Validation, ErrOrderNotFound or storage failures
*/
func (service *Service) UpdateStatus(context context.Context, orderID int64, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, apperr.ValidationError("Invalid status", apperr.FieldError{
			Field:   "status",
			Message: "Must be one of: pending, pending_transfer, paid, shipped, delivered, cancelled",
		})
	}

	var previous Status
	var changed *Order
	err := service.store.WithinTx(context, func(tx Tx) error {
		current, err := tx.LockOrderByID(context, orderID)
		if err != nil {
			return err
		}
		previous = current.Status
		if current.Status == status {
			return nil
		}
		if err := tx.SetStatus(context, current.ID, status, ""); err != nil {
			return err
		}
		changed = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed != nil {
		service.statusChanged(context, changed, previous, status, "staff")
	}
	return service.store.FindByID(context, orderID)
}

/*
ApplyPaymentNotification reconciles an order with a provider webhook.

Description: The payment is re-fetched from the provider; the webhook body
is never trusted. Approved payments move the order to paid, rejected ones
to cancelled, and everything else is ignored. Unlike staff updates, the
strict lifecycle applies: an illegal transition (for example a late
approval of a cancelled order) is logged and skipped. An approved payment
for less than the order total is never applied.

Returns:
  - error: Only provider or storage failures, so the provider retries them
*/
func (service *Service) ApplyPaymentNotification(context context.Context, notification payment.Notification) error {
	if !notification.IsPayment() {
		service.logger.DebugContext(context, "payment_notification_ignored", slog.String("type", notification.Type))
		return nil
	}

	current, err := service.gateway.GetPayment(context, notification.PaymentID)
	if err != nil {
		return err
	}

	outcome := payment.MapStatus(current.Status)
	var target Status
	switch outcome {
	case payment.OutcomeApproved:
		target = StatusPaid
	case payment.OutcomeRejected:
		target = StatusCancelled
	default:
		service.logger.InfoContext(context, "payment_notification_no_change",
			slog.String("payment_id", current.ID),
			slog.String("payment_status", current.Status),
		)
		return nil
	}

	var previous Status
	var changed *Order
	err = service.store.WithinTx(context, func(tx Tx) error {
		order, err := tx.LockOrder(context, current.ExternalReference)
		if err != nil {
			return err
		}
		previous = order.Status

		if order.Status == target {
			return nil
		}
		if !CanTransition(order.Status, target) {
			service.logger.WarnContext(context, "order_transition_rejected",
				slog.String("order_number", order.Number),
				slog.String("from", string(order.Status)),
				slog.String("to", string(target)),
				slog.String("payment_id", current.ID),
			)
			return nil
		}
		if target == StatusPaid && current.Amount.LessThan(order.TotalAmount) {
			service.logger.WarnContext(context, "payment_amount_mismatch",
				slog.String("order_number", order.Number),
				slog.String("expected", order.TotalAmount.StringFixed(2)),
				slog.String("received", current.Amount.StringFixed(2)),
			)
			return nil
		}

		if err := tx.SetStatus(context, order.ID, target, current.ID); err != nil {
			return err
		}
		changed = order
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			service.logger.WarnContext(context, "payment_notification_unknown_order",
				slog.String("payment_id", current.ID),
				slog.String("external_reference", current.ExternalReference),
			)
			return nil
		}
		return err
	}

	if changed != nil {
		service.statusChanged(context, changed, previous, target, "payment")
	}
	return nil
}

// # Hosted Checkout

/*
StartCheckout (re)creates the hosted checkout of a card order that is still
awaiting payment. Access rules are those of [Service.GetOrder].
*/
func (service *Service) StartCheckout(context context.Context, number string, requester *sec.Principal, accessToken string) (*Order, error) {
	order, err := service.GetOrder(context, number, requester, accessToken)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != MethodMercadoPago {
		return nil, apperr.Unprocessable("Order is not paid by card")
	}
	if order.Status != StatusPending {
		return nil, apperr.Conflict("Order is no longer awaiting payment")
	}

	if err := service.attachCheckout(context, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (service *Service) attachCheckout(context context.Context, order *Order) error {
	request := payment.PreferenceRequest{
		ExternalReference: order.Number,
		Payer: payment.Payer{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			Phone: order.Customer.Phone,
		},
	}
	for _, item := range order.Items {
		title := item.ProductName
		if item.Size != "" {
			title = fmt.Sprintf("%s (%s)", title, item.Size)
		}
		request.Items = append(request.Items, payment.PreferenceItem{
			Title:     title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	if base := service.settings.PublicBaseURL; base != "" {
		query := "?order=" + url.QueryEscape(order.Number)
		request.SuccessURL = base + "/checkout/success" + query
		request.FailureURL = base + "/checkout/failure" + query
		request.PendingURL = base + "/checkout/pending" + query
		request.NotificationURL = base + "/api/v1/payments/webhook"
	}

	preference, err := service.gateway.CreatePreference(context, request)
	if err != nil {
		service.logger.WarnContext(context, "checkout_preference_failed",
			slog.String("order_number", order.Number),
			slog.Any("error", err),
		)
		return err
	}

	if err := service.store.SetCheckout(context, order.ID, preference.ID, preference.CheckoutURL); err != nil {
		return err
	}
	order.PreferenceID = preference.ID
	order.CheckoutURL = preference.CheckoutURL
	return nil
}

// # Events

func placedEvent(order *Order, accessToken string) events.OrderPlaced {
	return events.OrderPlaced{
		OrderNumber:      order.Number,
		CustomerName:     order.Customer.Name,
		CustomerEmail:    order.Customer.Email,
		TotalAmount:      order.TotalAmount.StringFixed(2),
		PaymentMethod:    string(order.PaymentMethod),
		Status:           string(order.Status),
		VerificationCode: order.VerificationCode,
		AccessToken:      accessToken,
		PlacedAt:         order.CreatedAt,
		Items: slice.Map(order.Items, func(item Item) events.OrderPlacedItem {
			return events.OrderPlacedItem{
				ProductName: item.ProductName,
				Size:        item.Size,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice.StringFixed(2),
			}
		}),
	}
}

func (service *Service) statusChanged(context context.Context, order *Order, from, to Status, source string) {
	service.logger.InfoContext(context, "order_status_changed",
		slog.String("order_number", order.Number),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("source", source),
	)
	service.publish(context, events.TypeOrderStatusChanged, events.OrderStatusChanged{
		OrderNumber:   order.Number,
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		From:          string(from),
		To:            string(to),
	})
}

func (service *Service) publish(context context.Context, eventType events.Type, payload any) {
	if err := service.publisher.Publish(context, eventType, payload); err != nil {
		service.logger.WarnContext(context, "event_publish_failed",
			slog.String("type", string(eventType)),
			slog.Any("error", err),
		)
	}
}
