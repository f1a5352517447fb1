package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zoobzio/clockz"
)

const (
	// SandboxBaseURL is the Pesapal v3 sandbox API URL
	SandboxBaseURL = "https://cybqa.pesapal.com/pesapalv3"
	// ProductionBaseURL is the Pesapal v3 production API URL
	ProductionBaseURL = "https://pay.pesapal.com/v3"

	// DefaultTimeout bounds every outgoing gateway call.
	DefaultTimeout = 30 * time.Second

	// tokenLifetime is how long an issued token is reused. Pesapal tokens
	// are valid for ~60 minutes, refresh at 55.
	tokenLifetime = 3300 * time.Second

	// ipnNotificationType is the delivery method registered for IPN callbacks.
	ipnNotificationType = "POST"
)

// Config holds Pesapal API configuration for one environment
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	Timeout        time.Duration
	Clock          clockz.Clock
}

// accessToken keeps the bearer value and its expiry together so readers never
// observe the value of one exchange with the expiry of another.
type accessToken struct {
	value     string
	expiresAt time.Time
}

// Client is the Pesapal API client with a cached bearer token and a cached
// IPN registration.
type Client struct {
	httpClient *http.Client
	config     Config
	clock      clockz.Clock
	debug      bool

	tokenMu sync.RWMutex
	token   accessToken

	ipnMu sync.Mutex
	ipnID string
}

// NewClient creates a new Pesapal client. Consumer key and secret are required.
func NewClient(config Config) (*Client, error) {
	if config.ConsumerKey == "" || config.ConsumerSecret == "" {
		return nil, errors.New("pesapal: consumer key and secret must be provided")
	}
	if config.BaseURL == "" {
		config.BaseURL = SandboxBaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	clock := config.Clock
	if clock == nil {
		clock = clockz.RealClock
	}

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		clock:      clock,
		debug:      os.Getenv("ENV") == "development",
	}, nil
}

// CallbackURL returns the IPN/redirect URL this client registers.
func (c *Client) CallbackURL() string {
	return c.config.CallbackURL
}

// IPNID returns the cached IPN registration id, or "" if none yet.
func (c *Client) IPNID() string {
	c.ipnMu.Lock()
	defer c.ipnMu.Unlock()
	return c.ipnID
}

// EnsureToken returns the cached token while it is valid, otherwise performs a
// credential exchange and caches the result for tokenLifetime.
func (c *Client) EnsureToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	tok := c.token
	c.tokenMu.RUnlock()
	if tok.value != "" && c.clock.Now().Before(tok.expiresAt) {
		return tok.value, nil
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	// Double check, another caller may have refreshed while we waited
	if c.token.value != "" && c.clock.Now().Before(c.token.expiresAt) {
		return c.token.value, nil
	}

	req := TokenRequest{
		ConsumerKey:    c.config.ConsumerKey,
		ConsumerSecret: c.config.ConsumerSecret,
	}
	var resp TokenResponse
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/Auth/RequestToken", nil, req, "", &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: response has no token%s", ErrAuth, resp.Error.suffix())
	}

	c.token = accessToken{
		value:     resp.Token,
		expiresAt: c.clock.Now().Add(tokenLifetime),
	}
	return c.token.value, nil
}

// maxResponseSize is the maximum allowed response body size (10MB)
const maxResponseSize = 10 * 1024 * 1024

// doRequest performs a JSON request against the gateway and decodes the
// response into result. It returns the raw response body.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any, token string, result any) ([]byte, error) {
	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	if c.debug {
		ev := log.Debug().Str("method", method).Str("endpoint", endpoint)
		if payload != nil {
			ev = ev.RawJSON("request", sanitizeForLog(payload))
		}
		ev.Msg("[PESAPAL] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			RawJSON("response", sanitizeForLog(respBody)).
			Msg("[PESAPAL] Incoming response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, fmt.Errorf("unexpected HTTP status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return respBody, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return respBody, nil
}

// authorizedRequest is doRequest with a bearer token from EnsureToken.
func (c *Client) authorizedRequest(ctx context.Context, method, path string, query url.Values, body any, result any) ([]byte, error) {
	token, err := c.EnsureToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.doRequest(ctx, method, path, query, body, token, result)
}

// sanitizeForLog masks credentials and tokens in a JSON body before logging.
// Any JSON value is accepted; an empty body logs as null.
func sanitizeForLog(data []byte) []byte {
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("null")
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return []byte(`{"_error": "failed to parse for sanitization"}`)
	}

	sensitiveFields := []string{"secret", "token", "consumer_key", "password"}
	sanitizeValue(v, sensitiveFields)

	sanitized, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"_error": "failed to marshal sanitized data"}`)
	}
	return sanitized
}

// sanitizeValue recursively masks sensitive object keys inside v
func sanitizeValue(v any, sensitiveFields []string) {
	switch val := v.(type) {
	case map[string]any:
		for key, nested := range val {
			if isSensitiveKey(key, sensitiveFields) {
				val[key] = "***MASKED***"
				continue
			}
			sanitizeValue(nested, sensitiveFields)
		}
	case []any:
		for _, item := range val {
			sanitizeValue(item, sensitiveFields)
		}
	}
}

func isSensitiveKey(key string, sensitiveFields []string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}
