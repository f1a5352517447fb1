package sse

import (
	"time"

	"github.com/GTDGit/pesapal_api/internal/models"
)

// OrderNotifier is the interface services use to emit order events.
type OrderNotifier interface {
	NotifyOrderCreated(order *models.Order)
	NotifyOrderStatusChanged(order *models.Order)
	NotifyOrderPolled(order *models.Order)
}

// HubNotifier implements OrderNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyOrderCreated(order *models.Order) {
	n.broadcast(EventOrderCreated, order)
}

func (n *HubNotifier) NotifyOrderStatusChanged(order *models.Order) {
	n.broadcast(EventOrderStatusChanged, order)
}

func (n *HubNotifier) NotifyOrderPolled(order *models.Order) {
	n.broadcast(EventOrderPolled, order)
}

func (n *HubNotifier) broadcast(eventType EventType, order *models.Order) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(orderToEvent(eventType, order))
}

func orderToEvent(eventType EventType, order *models.Order) *OrderEvent {
	return &OrderEvent{
		Event:             eventType,
		TrackingID:        order.TrackingID,
		MerchantReference: order.MerchantReference,
		Environment:       string(order.Environment),
		Status:            order.Status,
		PaymentMethod:     order.PaymentMethod,
		Timestamp:         time.Now(),
	}
}

// NopNotifier is a no-op implementation for when SSE is not needed.
type NopNotifier struct{}

func (n *NopNotifier) NotifyOrderCreated(order *models.Order)       {}
func (n *NopNotifier) NotifyOrderStatusChanged(order *models.Order) {}
func (n *NopNotifier) NotifyOrderPolled(order *models.Order)        {}
