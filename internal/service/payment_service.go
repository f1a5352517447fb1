package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/pesapal_api/internal/models"
	"github.com/GTDGit/pesapal_api/internal/repository"
	"github.com/GTDGit/pesapal_api/internal/sse"
	"github.com/GTDGit/pesapal_api/pkg/pesapal"
)

// Defaults applied to incomplete payment requests.
const (
	DefaultCurrency  = "KES"
	DefaultFirstName = "Customer"
	DefaultLastName  = "User"
)

// OrderMirror receives a copy of every order after it changes.
type OrderMirror interface {
	Put(ctx context.Context, order *models.Order) error
}

// InitiateRequest is a customer payment request as received from the checkout form.
type InitiateRequest struct {
	Environment models.Environment
	Currency    string
	Amount      float64
	Description string
	Email       string
	Phone       string
	FirstName   string
	LastName    string
}

// InitiateResult describes a submitted order. RedirectURL is empty when the
// gateway did not return one.
type InitiateResult struct {
	TrackingID        string             `json:"trackingId"`
	MerchantReference string             `json:"merchantReference"`
	RedirectURL       string             `json:"redirectUrl"`
	Environment       models.Environment `json:"environment"`
	Raw               json.RawMessage    `json:"raw,omitempty"`
}

// StatusResult merges the local record with a fresh gateway poll.
type StatusResult struct {
	TrackingID    string             `json:"trackingId"`
	Environment   models.Environment `json:"environment"`
	LocalStatus   string             `json:"localStatus"`
	PaymentMethod *string            `json:"paymentMethod,omitempty"`
	GatewayStatus json.RawMessage    `json:"gatewayStatus"`
}

// PaymentService coordinates gateway calls with the order ledger.
type PaymentService struct {
	gateways *GatewayRegistry
	ledger   *repository.OrderLedger
	notifier sse.OrderNotifier
	mirror   OrderMirror
}

// NewPaymentService creates a new PaymentService. A nil notifier disables events.
func NewPaymentService(gateways *GatewayRegistry, ledger *repository.OrderLedger, notifier sse.OrderNotifier) *PaymentService {
	if notifier == nil {
		notifier = &sse.NopNotifier{}
	}
	return &PaymentService{
		gateways: gateways,
		ledger:   ledger,
		notifier: notifier,
	}
}

// SetMirror enables mirroring of order records.
func (s *PaymentService) SetMirror(mirror OrderMirror) {
	s.mirror = mirror
}

// Environments lists the environments with configured credentials.
func (s *PaymentService) Environments() []models.Environment {
	return s.gateways.Environments()
}

// RegisterIPN explicitly (re)registers the IPN URL for env.
func (s *PaymentService) RegisterIPN(ctx context.Context, env models.Environment) (string, error) {
	gw, err := s.gateways.Get(env)
	if err != nil {
		return "", err
	}
	ipnID, err := gw.RegisterIPN(ctx)
	if err != nil {
		return "", err
	}
	log.Info().Str("environment", string(env)).Str("ipn_id", ipnID).Msg("IPN registered")
	return ipnID, nil
}

// InitiatePayment submits an order to the gateway and records it locally.
// The record is created even when the gateway returns no redirect URL.
func (s *PaymentService) InitiatePayment(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	gw, err := s.gateways.Get(req.Environment)
	if err != nil {
		return nil, err
	}

	order := buildOrderRequest(req, gw.CallbackURL())
	resp, err := gw.SubmitOrder(ctx, order)
	if err != nil {
		log.Error().Err(err).Str("merchant_reference", order.ID).Str("environment", string(req.Environment)).Msg("Order submission failed")
		return nil, err
	}

	trackingID := resp.OrderTrackingID
	if trackingID == "" {
		trackingID = order.ID
	}

	orderData, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	created, err := s.ledger.Create(repository.NewOrder{
		TrackingID:        trackingID,
		MerchantReference: order.ID,
		Environment:       req.Environment,
		OrderData:         orderData,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, created, s.notifier.NotifyOrderCreated)

	if resp.RedirectURL == "" {
		log.Warn().Str("tracking_id", trackingID).RawJSON("response", nonEmptyJSON(resp.Raw)).Msg("Gateway returned no redirect URL")
	}
	log.Info().Str("tracking_id", trackingID).Str("merchant_reference", order.ID).Str("environment", string(req.Environment)).Msg("Payment initiated")

	return &InitiateResult{
		TrackingID:        trackingID,
		MerchantReference: order.ID,
		RedirectURL:       resp.RedirectURL,
		Environment:       req.Environment,
		Raw:               resp.Raw,
	}, nil
}

func buildOrderRequest(req InitiateRequest, callbackURL string) *pesapal.OrderRequest {
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		firstName = DefaultFirstName
	}
	lastName := strings.TrimSpace(req.LastName)
	if lastName == "" {
		lastName = DefaultLastName
	}

	return &pesapal.OrderRequest{
		ID:          uuid.New().String(),
		Currency:    currency,
		Amount:      req.Amount,
		Description: req.Description,
		CallbackURL: callbackURL,
		BillingAddress: &pesapal.BillingAddress{
			EmailAddress: req.Email,
			PhoneNumber:  req.Phone,
			FirstName:    firstName,
			LastName:     lastName,
		},
	}
}

// HandleNotification applies an IPN webhook. ErrOrderNotFound is returned for
// unknown orders so the caller can log it; the gateway is still acknowledged.
func (s *PaymentService) HandleNotification(ctx context.Context, n *pesapal.IPNNotification, raw json.RawMessage) (*models.Order, error) {
	if n == nil || n.OrderTrackingID == "" {
		return nil, &pesapal.ValidationError{Field: "OrderTrackingId"}
	}

	var paymentMethod *string
	if n.PaymentMethod != "" {
		pm := n.PaymentMethod
		paymentMethod = &pm
	}

	updated, err := s.ledger.ApplyNotification(n.OrderTrackingID, n.Status, paymentMethod, raw)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, s.notifier.NotifyOrderStatusChanged)

	log.Info().Str("tracking_id", n.OrderTrackingID).Str("status", n.Status).Str("payment_method", n.PaymentMethod).Msg("IPN applied")
	return updated, nil
}

// HandleRedirect marks an order completed after the customer returns from the gateway.
func (s *PaymentService) HandleRedirect(ctx context.Context, trackingID, merchantReference string) (*models.Order, error) {
	if trackingID == "" {
		return nil, &pesapal.ValidationError{Field: "OrderTrackingId"}
	}

	updated, err := s.ledger.ApplyRedirectCallback(trackingID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, s.notifier.NotifyOrderStatusChanged)

	log.Info().Str("tracking_id", trackingID).Str("merchant_reference", merchantReference).Msg("Redirect callback applied")
	return updated, nil
}

// CheckStatus polls the gateway for a known order and records the snapshot.
// The local status is reported as-is; polls never change it.
func (s *PaymentService) CheckStatus(ctx context.Context, trackingID string) (*StatusResult, error) {
	order, err := s.ledger.Get(trackingID)
	if err != nil {
		return nil, err
	}

	gw, err := s.gateways.Get(order.Environment)
	if err != nil {
		return nil, err
	}

	resp, err := gw.GetTransactionStatus(ctx, trackingID)
	if err != nil {
		log.Error().Err(err).Str("tracking_id", trackingID).Msg("Status poll failed")
		return nil, err
	}

	updated, err := s.ledger.RecordPollResult(trackingID, resp.Raw)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, updated, s.notifier.NotifyOrderPolled)

	if resp.PaymentStatusDescription != "" && !strings.EqualFold(resp.PaymentStatusDescription, updated.Status) {
		log.Debug().
			Str("tracking_id", trackingID).
			Str("local_status", updated.Status).
			Str("gateway_status", resp.PaymentStatusDescription).
			Msg("Local and gateway status differ")
	}

	return &StatusResult{
		TrackingID:    updated.TrackingID,
		Environment:   updated.Environment,
		LocalStatus:   updated.Status,
		PaymentMethod: updated.PaymentMethod,
		GatewayStatus: updated.GatewayStatus,
	}, nil
}

// PaymentMethods returns the gateway's payment method list for env.
func (s *PaymentService) PaymentMethods(ctx context.Context, env models.Environment) (json.RawMessage, error) {
	gw, err := s.gateways.Get(env)
	if err != nil {
		return nil, err
	}
	return gw.GetPaymentMethods(ctx)
}

// Orders returns all orders in creation order.
func (s *PaymentService) Orders() []*models.Order {
	return s.ledger.List()
}

// Order returns one order.
func (s *PaymentService) Order(trackingID string) (*models.Order, error) {
	return s.ledger.Get(trackingID)
}

// publish emits an order event and mirrors the record. Mirror failures are
// logged only.
func (s *PaymentService) publish(ctx context.Context, order *models.Order, notify func(*models.Order)) {
	notify(order)

	if s.mirror == nil {
		return
	}
	if err := s.mirror.Put(ctx, order); err != nil {
		log.Warn().Err(err).Str("tracking_id", order.TrackingID).Msg("Order mirror write failed")
	}
}

func nonEmptyJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}
