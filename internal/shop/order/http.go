// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package order

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/whiphelmets/internal/platform/middleware"
	requestutil "github.com/taibuivan/whiphelmets/internal/platform/request"
	"github.com/taibuivan/whiphelmets/internal/platform/respond"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/platform/validate"
	"github.com/taibuivan/whiphelmets/internal/shop/payment"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// accessTokenHeader is an alternative to the access_token query parameter.
const accessTokenHeader = "X-Order-Token"

// Handler implements the checkout, order and payment webhook endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the customer order endpoints. Guests may check out; the
// principal, when present, comes from the authentication middleware.
//
// # Endpoints
//   - POST /                         : Checkout
//   - GET  /                         : Caller's orders (authenticated)
//   - GET  /{order_number}           : One order (owner, staff or access_token)
//   - POST /{order_number}/checkout  : Retry the hosted card checkout
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", handler.create)
	router.With(middleware.RequireAuth).Get("/", handler.listMine)
	router.Get("/{order_number}", handler.get)
	router.Post("/{order_number}/checkout", handler.checkout)

	return router
}

// PaymentRoutes returns the provider webhook.
func (handler *Handler) PaymentRoutes() chi.Router {
	router := chi.NewRouter()
	router.Post("/webhook", handler.webhook)
	return router
}

// AdminRoutes returns staff order management.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireRole(sec.RoleAdmin))

	router.Get("/", handler.list)
	router.Patch("/{id}/status", handler.updateStatus)

	return router
}

func accessToken(request *http.Request) string {
	if token := request.URL.Query().Get("access_token"); token != "" {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(request.Header.Get(accessTokenHeader))
}

// # Customer Endpoints

/*
Create places an order.

POST /api/v1/orders

Request:
  - Body: CreateInput (items, customer, payment_method, optional expected_total)

Response:
  - 201: Receipt (order, access_token, checkout_url or checkout_error)
  - 400: Validation failure
  - 404: Unknown or hidden product
  - 409: STOCK_INSUFFICIENT naming the product and available quantity
  - 422: expected_total does not match
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input CreateInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	receipt, err := handler.service.CreateOrder(request.Context(), input, requestutil.Principal(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, receipt)
}

/*
ListMine returns the caller's orders, newest first.

GET /api/v1/orders

Response:
  - 200: []Order
  - 401: Not authenticated
*/
func (handler *Handler) listMine(writer http.ResponseWriter, request *http.Request) {
	orders, err := handler.service.ListOrdersForUser(request.Context(), requestutil.Principal(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, orders)
}

/*
Get returns one order with its lines.

GET /api/v1/orders/{order_number}?access_token=...

Response:
  - 200: Order
  - 404: Unknown order, or not visible to the caller
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	order, err := handler.service.GetOrder(
		request.Context(),
		requestutil.Param(request, "order_number"),
		requestutil.Principal(request),
		accessToken(request),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, order)
}

/*
Checkout recreates the hosted card checkout of a pending order.

POST /api/v1/orders/{order_number}/checkout

Response:
  - 200: Order with checkout_url
  - 404: Unknown order, or not visible to the caller
  - 409: Order no longer pending
  - 502: Payment provider failure
  - 503: Card payments not configured
*/
func (handler *Handler) checkout(writer http.ResponseWriter, request *http.Request) {
	order, err := handler.service.StartCheckout(
		request.Context(),
		requestutil.Param(request, "order_number"),
		requestutil.Principal(request),
		accessToken(request),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, order)
}

/*
Webhook receives payment notifications from the provider.

POST /api/v1/payments/webhook

Response:
  - 200: Processed or ignored
  - 5xx: Provider or storage failure; the provider retries
*/
func (handler *Handler) webhook(writer http.ResponseWriter, request *http.Request) {
	notification := payment.ParseNotification(request)
	if err := handler.service.ApplyPaymentNotification(request.Context(), notification); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"status": "ok"})
}

// # Staff Endpoints

/*
List returns one page of orders.

GET /api/v1/admin/orders?status=&q=&page=&limit=

Response:
  - 200: Paginated []Order
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	filter := Filter{
		Status: Status(request.URL.Query().Get("status")),
		Query:  request.URL.Query().Get("q"),
	}
	page := pagination.FromRequest(request)

	orders, total, err := handler.service.ListOrders(request.Context(), filter, page)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, orders, pagination.NewMeta(page.Page, page.Limit, total))
}

/*
UpdateStatus sets an order's status.

PATCH /api/v1/admin/orders/{id}/status

Request:
  - Body: StatusInput

Response:
  - 200: Order
  - 400: Unknown status
  - 404: Unknown order
*/
func (handler *Handler) updateStatus(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input StatusInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	order, err := handler.service.UpdateStatus(request.Context(), id, input.Status)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, order)
}
