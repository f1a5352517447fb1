package utils

import "errors"

// Common application errors used across services.
var (
	ErrOrderNotFound            = errors.New("ORDER_NOT_FOUND")
	ErrDuplicateOrder           = errors.New("DUPLICATE_ORDER")
	ErrInvalidEnvironment       = errors.New("INVALID_ENVIRONMENT")
	ErrEnvironmentNotConfigured = errors.New("ENVIRONMENT_NOT_CONFIGURED")
	ErrInvalidToken             = errors.New("INVALID_TOKEN")
)
