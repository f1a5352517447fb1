package pesapal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RegisterIPN registers the callback URL for IPN delivery and caches the
// returned id, replacing any previous one.
func (c *Client) RegisterIPN(ctx context.Context) (string, error) {
	c.ipnMu.Lock()
	defer c.ipnMu.Unlock()
	return c.registerIPNLocked(ctx)
}

// registerIPNLocked must be called with ipnMu held
func (c *Client) registerIPNLocked(ctx context.Context) (string, error) {
	req := RegisterIPNRequest{
		URL:                 c.config.CallbackURL,
		IPNNotificationType: ipnNotificationType,
	}

	var resp RegisterIPNResponse
	if _, err := c.authorizedRequest(ctx, http.MethodPost, "/api/URLSetup/RegisterIPN", nil, req, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	if resp.IPNID == "" {
		return "", fmt.Errorf("%w: response has no ipn_id%s", ErrRegistration, resp.Error.suffix())
	}

	c.ipnID = resp.IPNID
	return c.ipnID, nil
}

// SubmitOrder validates and submits an order. The IPN is registered on first
// use. A response without redirect_url is returned as-is, not as an error.
func (c *Client) SubmitOrder(ctx context.Context, order *OrderRequest) (*SubmitOrderResponse, error) {
	if order == nil {
		return nil, &ValidationError{Field: "amount"}
	}
	if err := order.validate(); err != nil {
		return nil, err
	}

	c.ipnMu.Lock()
	ipnID := c.ipnID
	if ipnID == "" {
		var err error
		if ipnID, err = c.registerIPNLocked(ctx); err != nil {
			c.ipnMu.Unlock()
			return nil, err
		}
	}
	c.ipnMu.Unlock()

	payload := *order
	payload.NotificationID = ipnID

	var resp SubmitOrderResponse
	raw, err := c.authorizedRequest(ctx, http.MethodPost, "/api/Transactions/SubmitOrderRequest", nil, payload, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	resp.Raw = raw
	// Reflect what was sent so callers can record it
	order.NotificationID = ipnID
	return &resp, nil
}

// GetTransactionStatus queries the gateway for an order's current status.
func (c *Client) GetTransactionStatus(ctx context.Context, orderTrackingID string) (*TransactionStatusResponse, error) {
	query := url.Values{}
	query.Set("orderTrackingId", orderTrackingID)

	var resp TransactionStatusResponse
	raw, err := c.authorizedRequest(ctx, http.MethodGet, "/api/Transactions/GetTransactionStatus", query, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusQuery, err)
	}
	resp.Raw = raw
	return &resp, nil
}

// GetPaymentMethods returns the gateway's payment method list verbatim.
func (c *Client) GetPaymentMethods(ctx context.Context) (json.RawMessage, error) {
	var resp json.RawMessage
	if _, err := c.authorizedRequest(ctx, http.MethodGet, "/api/Transactions/GetPaymentMethods", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMethodsQuery, err)
	}
	return resp, nil
}
