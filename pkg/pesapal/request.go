package pesapal

import (
	"encoding/json"
	"math"
)

// TokenRequest is the body of Auth/RequestToken
type TokenRequest struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

// RegisterIPNRequest is the body of URLSetup/RegisterIPN
type RegisterIPNRequest struct {
	URL                 string `json:"url"`
	IPNNotificationType string `json:"ipn_notification_type"`
}

// BillingAddress is the customer block of an order
type BillingAddress struct {
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	MiddleName   string `json:"middle_name,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	Line1        string `json:"line_1,omitempty"`
	Line2        string `json:"line_2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
}

// OrderRequest is the body of Transactions/SubmitOrderRequest.
// Extra carries optional gateway fields (branch, cancellation_url,
// redirect_mode, ...) and is flattened into the top-level JSON object.
type OrderRequest struct {
	ID             string          `json:"id"`
	Currency       string          `json:"currency"`
	Amount         float64         `json:"amount"`
	Description    string          `json:"description"`
	CallbackURL    string          `json:"callback_url"`
	NotificationID string          `json:"notification_id"`
	BillingAddress *BillingAddress `json:"billing_address"`
	Extra          map[string]any  `json:"-"`
}

// orderRequestFields avoids recursing into OrderRequest.MarshalJSON.
type orderRequestFields OrderRequest

// MarshalJSON merges Extra into the object; typed fields win on conflict.
func (o OrderRequest) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(orderRequestFields(o))
	if err != nil {
		return nil, err
	}
	if len(o.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]any, len(o.Extra)+7)
	for k, v := range o.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// validate checks required fields in a fixed order so the reported field is
// deterministic.
func (o *OrderRequest) validate() error {
	switch {
	case o.Amount == 0:
		return &ValidationError{Field: "amount"}
	case math.IsNaN(o.Amount) || math.IsInf(o.Amount, 0) || o.Amount < 0:
		return &ValidationError{Field: "amount", Reason: "must be a positive finite number"}
	case o.Currency == "":
		return &ValidationError{Field: "currency"}
	case o.Description == "":
		return &ValidationError{Field: "description"}
	case o.CallbackURL == "":
		return &ValidationError{Field: "callback_url"}
	case o.BillingAddress == nil:
		return &ValidationError{Field: "billing_address"}
	}
	return nil
}
