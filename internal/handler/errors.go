package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/pesapal_api/internal/utils"
	"github.com/GTDGit/pesapal_api/pkg/pesapal"
)

// writeError maps service and gateway errors onto the response envelope.
func writeError(c *gin.Context, err error) {
	var validationErr *pesapal.ValidationError
	switch {
	case errors.As(err, &validationErr):
		code := "MISSING_FIELD"
		if validationErr.Reason != "" {
			code = "INVALID_FIELD"
		}
		utils.Error(c, 400, code, validationErr.Error())
	case errors.Is(err, utils.ErrInvalidEnvironment):
		utils.Error(c, 400, "INVALID_ENVIRONMENT", "Environment must be 'sandbox' or 'production'")
	case errors.Is(err, utils.ErrEnvironmentNotConfigured):
		utils.Error(c, 400, "ENVIRONMENT_NOT_CONFIGURED", "No credentials configured for this environment")
	case errors.Is(err, utils.ErrOrderNotFound):
		utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, utils.ErrDuplicateOrder):
		utils.Error(c, 409, "DUPLICATE_ORDER", "Order already exists")
	case errors.Is(err, pesapal.ErrAuth):
		utils.Error(c, 502, "GATEWAY_AUTH_FAILED", err.Error())
	case errors.Is(err, pesapal.ErrRegistration):
		utils.Error(c, 502, "IPN_REGISTRATION_FAILED", err.Error())
	case errors.Is(err, pesapal.ErrSubmission):
		utils.Error(c, 502, "ORDER_SUBMISSION_FAILED", err.Error())
	case errors.Is(err, pesapal.ErrStatusQuery):
		utils.Error(c, 502, "STATUS_QUERY_FAILED", err.Error())
	case errors.Is(err, pesapal.ErrMethodsQuery):
		utils.Error(c, 502, "METHODS_QUERY_FAILED", err.Error())
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
		utils.Error(c, 500, "INTERNAL_ERROR", "Internal server error")
	}
}
