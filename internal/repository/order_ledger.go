package repository

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/GTDGit/pesapal_api/internal/models"
	"github.com/GTDGit/pesapal_api/internal/utils"
)

// NewOrder holds the fields an order is created with.
type NewOrder struct {
	TrackingID        string
	MerchantReference string
	Environment       models.Environment
	OrderData         json.RawMessage
}

// OrderLedger is the in-memory, process-lifetime store of orders keyed by
// tracking id.
//
// Status has two authoritative writers, the IPN webhook and the browser
// redirect, applied last-write-wins in arrival order. Polls only fill the
// diagnostic GatewayStatus so a stale poll cannot move Status backwards.
type OrderLedger struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
	order  []string // insertion order for List
	clock  clockz.Clock
}

// NewOrderLedger creates an empty ledger. A nil clock means the real clock.
func NewOrderLedger(clock clockz.Clock) *OrderLedger {
	if clock == nil {
		clock = clockz.RealClock
	}
	return &OrderLedger{
		orders: make(map[string]*models.Order),
		clock:  clock,
	}
}

// Create inserts a new order with status "initiated". It never overwrites.
func (l *OrderLedger) Create(in NewOrder) (*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.orders[in.TrackingID]; exists {
		return nil, utils.ErrDuplicateOrder
	}

	o := &models.Order{
		TrackingID:        in.TrackingID,
		MerchantReference: in.MerchantReference,
		Environment:       in.Environment,
		OrderData:         in.OrderData,
		Status:            models.OrderStatusInitiated,
		CreatedAt:         l.clock.Now(),
	}
	l.orders[in.TrackingID] = o
	l.order = append(l.order, in.TrackingID)
	return o.Clone(), nil
}

// ApplyNotification records an IPN status update and keeps the raw body.
func (l *OrderLedger) ApplyNotification(trackingID, status string, paymentMethod *string, raw json.RawMessage) (*models.Order, error) {
	return l.update(trackingID, func(o *models.Order, now time.Time) {
		o.Status = status
		o.PaymentMethod = paymentMethod
		o.UpdatedAt = &now
		o.Notification = raw
	})
}

// ApplyRedirectCallback marks an order completed when the customer is
// redirected back from the gateway.
func (l *OrderLedger) ApplyRedirectCallback(trackingID string) (*models.Order, error) {
	return l.update(trackingID, func(o *models.Order, now time.Time) {
		o.Status = models.OrderStatusCompleted
		o.CallbackReceivedAt = &now
	})
}

// RecordPollResult stores a gateway status snapshot. Status is left untouched.
func (l *OrderLedger) RecordPollResult(trackingID string, snapshot json.RawMessage) (*models.Order, error) {
	return l.update(trackingID, func(o *models.Order, now time.Time) {
		o.GatewayStatus = snapshot
		o.LastCheckedAt = &now
	})
}

// Get returns a copy of the order.
func (l *OrderLedger) Get(trackingID string) (*models.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[trackingID]
	if !ok {
		return nil, utils.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// List returns copies of all orders in insertion order.
func (l *OrderLedger) List() []*models.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.Order, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.orders[id].Clone())
	}
	return out
}

// update applies fn to a copy of the record and swaps it in whole.
func (l *OrderLedger) update(trackingID string, fn func(o *models.Order, now time.Time)) (*models.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.orders[trackingID]
	if !ok {
		return nil, utils.ErrOrderNotFound
	}

	next := cur.Clone()
	fn(next, l.clock.Now())
	l.orders[trackingID] = next
	return next.Clone(), nil
}
