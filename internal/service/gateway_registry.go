package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/GTDGit/pesapal_api/internal/models"
	"github.com/GTDGit/pesapal_api/internal/utils"
	"github.com/GTDGit/pesapal_api/pkg/pesapal"
)

// GatewayClient is the set of gateway operations the payment service needs.
// *pesapal.Client satisfies it.
type GatewayClient interface {
	// RegisterIPN registers the callback URL and caches the IPN id
	RegisterIPN(ctx context.Context) (string, error)

	// SubmitOrder submits an order, registering the IPN first if needed
	SubmitOrder(ctx context.Context, order *pesapal.OrderRequest) (*pesapal.SubmitOrderResponse, error)

	// GetTransactionStatus polls the gateway for an order
	GetTransactionStatus(ctx context.Context, orderTrackingID string) (*pesapal.TransactionStatusResponse, error)

	// GetPaymentMethods lists the payment methods enabled for the merchant
	GetPaymentMethods(ctx context.Context) (json.RawMessage, error)

	// CallbackURL is where the gateway redirects customers and posts IPNs
	CallbackURL() string
}

var _ GatewayClient = (*pesapal.Client)(nil)

// GatewayRegistry maps each environment to the client holding its credentials.
// Clients are registered at startup before the registry is shared.
type GatewayRegistry struct {
	clients map[models.Environment]GatewayClient
}

// NewGatewayRegistry creates an empty registry.
func NewGatewayRegistry() *GatewayRegistry {
	return &GatewayRegistry{
		clients: make(map[models.Environment]GatewayClient),
	}
}

// Register adds or replaces the client for an environment.
func (r *GatewayRegistry) Register(env models.Environment, client GatewayClient) {
	r.clients[env] = client
}

// Get returns the client for env.
func (r *GatewayRegistry) Get(env models.Environment) (GatewayClient, error) {
	if !env.Valid() {
		return nil, utils.ErrInvalidEnvironment
	}
	client, ok := r.clients[env]
	if !ok {
		return nil, utils.ErrEnvironmentNotConfigured
	}
	return client, nil
}

// Environments returns configured environments, sandbox first.
func (r *GatewayRegistry) Environments() []models.Environment {
	var out []models.Environment
	for _, env := range []models.Environment{models.EnvSandbox, models.EnvProduction} {
		if _, ok := r.clients[env]; ok {
			out = append(out, env)
		}
	}
	return out
}

// ParseEnvironment maps user input to an Environment. Empty input means sandbox.
func ParseEnvironment(raw string) (models.Environment, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return models.EnvSandbox, nil
	}
	env := models.Environment(raw)
	if !env.Valid() {
		return "", utils.ErrInvalidEnvironment
	}
	return env, nil
}
