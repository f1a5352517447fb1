package models

import (
	"encoding/json"
	"time"
)

// Environment selects which gateway credential set an order goes through.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	return e == EnvSandbox || e == EnvProduction
}

// Local order statuses. Webhook notifications may set any gateway status
// string (e.g. "COMPLETED", "FAILED") on top of these.
const (
	OrderStatusInitiated = "initiated"
	OrderStatusCompleted = "completed"
)

// Order is the locally tracked view of one submitted payment order.
// Status is only changed by webhook notifications and redirect callbacks;
// poll results land in GatewayStatus.
type Order struct {
	TrackingID         string          `json:"trackingId"`
	MerchantReference  string          `json:"merchantReference,omitempty"`
	Environment        Environment     `json:"environment"`
	OrderData          json.RawMessage `json:"orderData,omitempty"`
	Status             string          `json:"status"`
	PaymentMethod      *string         `json:"paymentMethod,omitempty"`
	Notification       json.RawMessage `json:"notification,omitempty"`
	GatewayStatus      json.RawMessage `json:"gatewayStatus,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          *time.Time      `json:"updatedAt,omitempty"`
	CallbackReceivedAt *time.Time      `json:"callbackReceivedAt,omitempty"`
	LastCheckedAt      *time.Time      `json:"lastCheckedAt,omitempty"`
}

// Clone returns a copy that shares no pointer fields with o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.PaymentMethod = clonePtr(o.PaymentMethod)
	c.UpdatedAt = clonePtr(o.UpdatedAt)
	c.CallbackReceivedAt = clonePtr(o.CallbackReceivedAt)
	c.LastCheckedAt = clonePtr(o.LastCheckedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
