package pesapal

import (
	"encoding/json"
	"fmt"
)

// APIError is the error object Pesapal embeds in otherwise 200 responses
type APIError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (e *APIError) suffix() string {
	if e == nil || (e.Message == "" && e.Code == "") {
		return ""
	}
	return fmt.Sprintf(" (%s: %s)", e.Code, e.Message)
}

// TokenResponse is the response from Auth/RequestToken
type TokenResponse struct {
	Token      string    `json:"token"`
	ExpiryDate string    `json:"expiryDate,omitempty"`
	Status     string    `json:"status,omitempty"`
	Message    string    `json:"message,omitempty"`
	Error      *APIError `json:"error,omitempty"`
}

// RegisterIPNResponse is the response from URLSetup/RegisterIPN
type RegisterIPNResponse struct {
	URL                 string    `json:"url"`
	CreatedDate         string    `json:"created_date,omitempty"`
	IPNID               string    `json:"ipn_id"`
	NotificationType    int       `json:"notification_type,omitempty"`
	IPNNotificationType string    `json:"ipn_notification_type_description,omitempty"`
	IPNStatus           int       `json:"ipn_status,omitempty"`
	Status              string    `json:"status,omitempty"`
	Error               *APIError `json:"error,omitempty"`
}

// SubmitOrderResponse is the response from Transactions/SubmitOrderRequest.
// RedirectURL is empty when the gateway did not provide one.
type SubmitOrderResponse struct {
	OrderTrackingID   string          `json:"order_tracking_id"`
	MerchantReference string          `json:"merchant_reference"`
	RedirectURL       string          `json:"redirect_url"`
	Status            string          `json:"status,omitempty"`
	Error             *APIError       `json:"error,omitempty"`
	Raw               json.RawMessage `json:"-"`
}

// TransactionStatusResponse is the response from Transactions/GetTransactionStatus
type TransactionStatusResponse struct {
	PaymentMethod            string          `json:"payment_method"`
	Amount                   float64         `json:"amount"`
	CreatedDate              string          `json:"created_date"`
	ConfirmationCode         string          `json:"confirmation_code"`
	PaymentStatusDescription string          `json:"payment_status_description"`
	Description              string          `json:"description"`
	Message                  string          `json:"message"`
	PaymentAccount           string          `json:"payment_account"`
	CallBackURL              string          `json:"call_back_url"`
	StatusCode               int             `json:"status_code"`
	MerchantReference        string          `json:"merchant_reference"`
	PaymentStatusCode        string          `json:"payment_status_code"`
	Currency                 string          `json:"currency"`
	Status                   string          `json:"status"`
	Error                    *APIError       `json:"error,omitempty"`
	Raw                      json.RawMessage `json:"-"`
}

// Payment status codes reported in TransactionStatusResponse.StatusCode
const (
	StatusCodeInvalid   = 0
	StatusCodeCompleted = 1
	StatusCodeFailed    = 2
	StatusCodeReversed  = 3
)

// IPNNotification is the body Pesapal POSTs to the registered IPN URL.
// Only the capitalized field convention is supported.
type IPNNotification struct {
	OrderTrackingID        string `json:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference"`
	OrderNotificationType  string `json:"OrderNotificationType"`
	Status                 string `json:"Status"`
	PaymentMethod          string `json:"PaymentMethod"`
}
