// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package order_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/taibuivan/whiphelmets/internal/events"
	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/shop/catalog"
	"github.com/taibuivan/whiphelmets/internal/shop/order"
	"github.com/taibuivan/whiphelmets/internal/shop/payment"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// # In-Memory Ledger

// memoryLedger serialises transactions behind one mutex and undoes every
// write of a failed transaction from a snapshot, like a database rollback.
type memoryLedger struct {
	mu       sync.Mutex
	products map[int64]*catalog.Product
	orders   []*order.Order
	nextID   int64
	clock    time.Time

	// collisions makes the next n InsertOrder calls report a taken number.
	collisions int
	// failItems makes InsertItems fail, simulating a lost connection.
	failItems bool
}

func newLedger(products ...*catalog.Product) *memoryLedger {
	ledger := &memoryLedger{products: map[int64]*catalog.Product{}, clock: epoch}
	for _, product := range products {
		ledger.products[product.ID] = product
	}
	return ledger
}

type ledgerSnapshot struct {
	products map[int64]catalog.Product
	orders   []order.Order
}

func (ledger *memoryLedger) snapshot() ledgerSnapshot {
	snap := ledgerSnapshot{products: map[int64]catalog.Product{}}
	for id, product := range ledger.products {
		snap.products[id] = *product
	}
	for _, o := range ledger.orders {
		snap.orders = append(snap.orders, *o)
	}
	return snap
}

func (ledger *memoryLedger) restore(snap ledgerSnapshot) {
	for id, product := range snap.products {
		copied := product
		ledger.products[id] = &copied
	}
	ledger.orders = nil
	for _, o := range snap.orders {
		copied := o
		ledger.orders = append(ledger.orders, &copied)
	}
}

func (ledger *memoryLedger) WithinTx(ctx context.Context, fn func(tx order.Tx) error) error {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	snap := ledger.snapshot()
	if err := fn(ledgerTx{ledger}); err != nil {
		ledger.restore(snap)
		return err
	}
	return nil
}

func cloneOrder(o *order.Order) *order.Order {
	copied := *o
	copied.Items = append([]order.Item{}, o.Items...)
	return &copied
}

func (ledger *memoryLedger) findLocked(match func(*order.Order) bool) (*order.Order, error) {
	for _, o := range ledger.orders {
		if match(o) {
			return cloneOrder(o), nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (ledger *memoryLedger) FindByNumber(_ context.Context, number string) (*order.Order, error) {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return ledger.findLocked(func(o *order.Order) bool { return o.Number == number })
}

func (ledger *memoryLedger) FindByID(_ context.Context, id int64) (*order.Order, error) {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return ledger.findLocked(func(o *order.Order) bool { return o.ID == id })
}

func (ledger *memoryLedger) ListForOwner(_ context.Context, userID int64, email string) ([]*order.Order, error) {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	result := []*order.Order{}
	for _, o := range ledger.orders {
		byUser := userID > 0 && o.UserID != nil && *o.UserID == userID
		byEmail := email != "" && strings.EqualFold(o.Customer.Email, email)
		if byUser || byEmail {
			result = append(result, cloneOrder(o))
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (ledger *memoryLedger) List(_ context.Context, filter order.Filter, page pagination.Params) ([]*order.Order, int, error) {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()

	result := []*order.Order{}
	for _, o := range ledger.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		result = append(result, cloneOrder(o))
	}
	return result, len(result), nil
}

func (ledger *memoryLedger) SetCheckout(_ context.Context, id int64, preferenceID, checkoutURL string) error {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	for _, o := range ledger.orders {
		if o.ID == id {
			o.PreferenceID = preferenceID
			o.CheckoutURL = checkoutURL
			return nil
		}
	}
	return order.ErrOrderNotFound
}

// stock returns the current stock of a product.
func (ledger *memoryLedger) stock(id int64) int {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return ledger.products[id].Stock
}

func (ledger *memoryLedger) product(id int64) catalog.Product {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return *ledger.products[id]
}

func (ledger *memoryLedger) orderCount() int {
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	return len(ledger.orders)
}

// ledgerTx runs with the ledger mutex already held.
type ledgerTx struct{ ledger *memoryLedger }

func (tx ledgerTx) ReserveStock(_ context.Context, productID int64, quantity int) (*catalog.Product, error) {
	product, ok := tx.ledger.products[productID]
	if !ok || product.Status == catalog.StatusHidden {
		return nil, catalog.ErrProductNotFound
	}
	if product.Stock < quantity {
		return nil, apperr.StockInsufficient(product.ID, product.Name, product.Stock)
	}
	product.Stock -= quantity
	if product.Stock == 0 && product.Status == catalog.StatusActive {
		product.Status = catalog.StatusOutOfStock
	}
	copied := *product
	return &copied, nil
}

func (tx ledgerTx) InsertOrder(_ context.Context, o *order.Order) error {
	ledger := tx.ledger
	if ledger.collisions > 0 {
		ledger.collisions--
		return order.ErrNumberTaken
	}
	for _, existing := range ledger.orders {
		if existing.Number == o.Number {
			return order.ErrNumberTaken
		}
	}
	ledger.nextID++
	ledger.clock = ledger.clock.Add(time.Minute)
	o.ID = ledger.nextID
	o.CreatedAt = ledger.clock
	o.UpdatedAt = ledger.clock
	ledger.orders = append(ledger.orders, cloneOrder(o))
	return nil
}

func (tx ledgerTx) InsertItems(_ context.Context, orderID int64, items []order.Item) error {
	if tx.ledger.failItems {
		return errors.New("connection reset by peer")
	}
	for _, o := range tx.ledger.orders {
		if o.ID == orderID {
			for i := range items {
				items[i].ID = int64(i + 1)
			}
			o.Items = append([]order.Item{}, items...)
			return nil
		}
	}
	return order.ErrOrderNotFound
}

func (tx ledgerTx) LockOrder(_ context.Context, number string) (*order.Order, error) {
	return tx.ledger.findLocked(func(o *order.Order) bool { return o.Number == number })
}

func (tx ledgerTx) LockOrderByID(_ context.Context, id int64) (*order.Order, error) {
	return tx.ledger.findLocked(func(o *order.Order) bool { return o.ID == id })
}

func (tx ledgerTx) SetStatus(_ context.Context, id int64, status order.Status, paymentID string) error {
	for _, o := range tx.ledger.orders {
		if o.ID == id {
			o.Status = status
			if paymentID != "" {
				o.PaymentID = paymentID
			}
			return nil
		}
	}
	return order.ErrOrderNotFound
}

// # Collaborators

type fakeGateway struct {
	mu            sync.Mutex
	payments      map[string]*payment.Payment
	preferenceErr error
	getErr        error
	preferences   []payment.PreferenceRequest
	getCalls      int
}

func newGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*payment.Payment{}}
}

func (gateway *fakeGateway) CreatePreference(_ context.Context, request payment.PreferenceRequest) (*payment.Preference, error) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if gateway.preferenceErr != nil {
		return nil, gateway.preferenceErr
	}
	gateway.preferences = append(gateway.preferences, request)
	return &payment.Preference{
		ID:          "pref-" + request.ExternalReference,
		CheckoutURL: "https://checkout.example.com/" + request.ExternalReference,
	}, nil
}

func (gateway *fakeGateway) GetPayment(_ context.Context, paymentID string) (*payment.Payment, error) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	gateway.getCalls++
	if gateway.getErr != nil {
		return nil, gateway.getErr
	}
	found, ok := gateway.payments[paymentID]
	if !ok {
		return nil, apperr.NotFound("Payment")
	}
	return found, nil
}

func (gateway *fakeGateway) approve(paymentID, orderNumber string, amount decimal.Decimal) {
	gateway.setPayment(paymentID, "approved", orderNumber, amount)
}

func (gateway *fakeGateway) setPayment(paymentID, status, orderNumber string, amount decimal.Decimal) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	gateway.payments[paymentID] = &payment.Payment{
		ID:                paymentID,
		Status:            status,
		ExternalReference: orderNumber,
		Amount:            amount,
	}
}

type published struct {
	eventType events.Type
	payload   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (publisher *recordingPublisher) Publish(_ context.Context, eventType events.Type, payload any) error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	publisher.events = append(publisher.events, published{eventType, payload})
	return nil
}

func (publisher *recordingPublisher) count(eventType events.Type) int {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	n := 0
	for _, event := range publisher.events {
		if event.eventType == eventType {
			n++
		}
	}
	return n
}

func (publisher *recordingPublisher) last(eventType events.Type) any {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	for i := len(publisher.events) - 1; i >= 0; i-- {
		if publisher.events[i].eventType == eventType {
			return publisher.events[i].payload
		}
	}
	return nil
}

// # Fixtures

type fixture struct {
	ledger    *memoryLedger
	gateway   *fakeGateway
	publisher *recordingPublisher
	signer    *sec.OrderLinkSigner
	service   *order.Service
}

func newFixture(products ...*catalog.Product) *fixture {
	f := &fixture{
		ledger:    newLedger(products...),
		gateway:   newGateway(),
		publisher: &recordingPublisher{},
		signer:    sec.NewOrderLinkSigner("test-secret", "whiphelmets", time.Hour),
	}
	f.service = order.NewService(f.ledger, f.signer, f.gateway, f.publisher,
		order.Settings{PublicBaseURL: "https://shop.example.com/"}, discardLogger()).
		WithClock(func() time.Time { return epoch })
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func helmet(id int64, name, price string, stock int) *catalog.Product {
	return &catalog.Product{
		ID:     id,
		Name:   name,
		Slug:   strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Brand:  "Fox",
		Price:  decimal.RequireFromString(price),
		Sizes:  []string{"S", "M", "L", "XL"},
		Stock:  stock,
		Status: catalog.StatusActive,
		Images: []string{},
	}
}

func customer() order.Customer {
	return order.Customer{
		Name:    "Lucía Fernández",
		Email:   "Lucia@Example.com",
		Phone:   "+54 11 4567-8901",
		Address: "Av. Corrientes 1234",
		City:    "CABA",
		Zip:     "1043",
	}
}

func transferInput(lines ...order.LineInput) order.CreateInput {
	return order.CreateInput{Items: lines, Customer: customer(), PaymentMethod: order.MethodTransfer}
}

func line(productID int64, quantity int) order.LineInput {
	return order.LineInput{ProductID: productID, Quantity: quantity}
}

func appCode(err error) string {
	if ae := apperr.As(err); ae != nil {
		return ae.Code
	}
	return ""
}
