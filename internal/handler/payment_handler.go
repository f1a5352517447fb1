package handler

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/pesapal_api/internal/service"
	"github.com/GTDGit/pesapal_api/internal/utils"
	"github.com/GTDGit/pesapal_api/pkg/pesapal"
)

const maxNotificationSize = 1 << 20

// PaymentHandler handles checkout, gateway callback and status endpoints.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type registerIPNRequest struct {
	Environment string `json:"environment"`
}

// initiatePaymentForm is the checkout form body.
type initiatePaymentForm struct {
	Environment string  `form:"environment"`
	Currency    string  `form:"currency"`
	Amount      float64 `form:"amount"`
	Description string  `form:"description"`
	Email       string  `form:"customer_email" binding:"omitempty,email"`
	Phone       string  `form:"phone_number"`
	FirstName   string  `form:"first_name"`
	LastName    string  `form:"last_name"`
}

// RegisterIPN handles POST /payment/register-ipn
func (h *PaymentHandler) RegisterIPN(c *gin.Context) {
	req := registerIPNRequest{Environment: c.Query("environment")}
	if c.Request.ContentLength != 0 {
		// Chunked requests report -1 and may still carry no body.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
			return
		}
	}

	env, err := service.ParseEnvironment(req.Environment)
	if err != nil {
		writeError(c, err)
		return
	}

	ipnID, err := h.paymentService.RegisterIPN(c.Request.Context(), env)
	if err != nil {
		writeError(c, err)
		return
	}

	utils.Success(c, 200, "IPN registered", gin.H{
		"ipnId":       ipnID,
		"environment": env,
	})
}

// InitiatePayment handles POST /payment/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var form initiatePaymentForm
	if err := c.ShouldBind(&form); err != nil || !validAmount(form.Amount) {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid payment request")
		return
	}

	env, err := service.ParseEnvironment(form.Environment)
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.paymentService.InitiatePayment(c.Request.Context(), service.InitiateRequest{
		Environment: env,
		Currency:    strings.ToUpper(strings.TrimSpace(form.Currency)),
		Amount:      form.Amount,
		Description: strings.TrimSpace(form.Description),
		Email:       strings.TrimSpace(form.Email),
		Phone:       strings.TrimSpace(form.Phone),
		FirstName:   form.FirstName,
		LastName:    form.LastName,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	data := gin.H{
		"trackingId":        res.TrackingID,
		"merchantReference": res.MerchantReference,
		"redirectUrl":       res.RedirectURL,
		"environment":       res.Environment,
	}
	if res.RedirectURL == "" {
		data["gatewayResponse"] = res.Raw
		utils.ErrorWithData(c, 502, "NO_REDIRECT_URL", "Gateway did not return a redirect URL", data)
		return
	}

	utils.Success(c, 201, "Payment initiated", data)
}

// validAmount accepts zero so the missing amount is reported by field name.
func validAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount >= 0
}

// PaymentCallback handles GET /payment/callback, where the customer's
// browser lands after paying. Unknown orders are logged and still acknowledged.
func (h *PaymentHandler) PaymentCallback(c *gin.Context) {
	trackingID := c.Query("OrderTrackingId")
	merchantRef := c.Query("OrderMerchantReference")

	data := gin.H{
		"orderTrackingId":        trackingID,
		"orderMerchantReference": merchantRef,
	}

	order, err := h.paymentService.HandleRedirect(c.Request.Context(), trackingID, merchantRef)
	if err != nil {
		logCallbackError(err, trackingID, "redirect")
	} else {
		data["status"] = order.Status
	}

	utils.Success(c, 200, "Payment callback received", data)
}

// PaymentNotification handles POST /payment/callback, the IPN webhook.
// Pesapal retries until it gets a 200, so every parsable notification is
// acknowledged even when the order is unknown here.
func (h *PaymentHandler) PaymentNotification(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotificationSize+1))
	if err == nil && len(body) > maxNotificationSize {
		utils.Error(c, 413, "PAYLOAD_TOO_LARGE", "Notification body too large")
		return
	}
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		utils.Error(c, 400, "INVALID_REQUEST", "Empty notification body")
		return
	}

	var n pesapal.IPNNotification
	if err := json.Unmarshal(body, &n); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid notification JSON")
		return
	}
	if n.OrderTrackingID == "" {
		utils.Error(c, 400, "MISSING_FIELD", "missing required field: OrderTrackingId")
		return
	}

	if _, err := h.paymentService.HandleNotification(c.Request.Context(), &n, json.RawMessage(body)); err != nil {
		logCallbackError(err, n.OrderTrackingID, "ipn")
	}

	notificationType := n.OrderNotificationType
	if notificationType == "" {
		notificationType = "IPNCHANGE"
	}
	utils.Success(c, 200, "Notification received", gin.H{
		"orderNotificationType":  notificationType,
		"orderTrackingId":        n.OrderTrackingID,
		"orderMerchantReference": n.OrderMerchantReference,
		"status":                 200,
	})
}

func logCallbackError(err error, trackingID, source string) {
	if errors.Is(err, utils.ErrOrderNotFound) {
		log.Warn().Str("tracking_id", trackingID).Str("source", source).Msg("Callback for unknown order acknowledged")
		return
	}
	log.Error().Err(err).Str("tracking_id", trackingID).Str("source", source).Msg("Failed to apply callback")
}

// GetStatus handles GET /payment/status/:trackingId
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	res, err := h.paymentService.CheckStatus(c.Request.Context(), c.Param("trackingId"))
	if err != nil {
		writeError(c, err)
		return
	}
	utils.Success(c, 200, "Status retrieved", res)
}

// GetPaymentMethods handles GET /payment/methods
func (h *PaymentHandler) GetPaymentMethods(c *gin.Context) {
	env, err := service.ParseEnvironment(c.Query("environment"))
	if err != nil {
		writeError(c, err)
		return
	}

	methods, err := h.paymentService.PaymentMethods(c.Request.Context(), env)
	if err != nil {
		writeError(c, err)
		return
	}
	utils.Success(c, 200, "Payment methods retrieved", methods)
}
