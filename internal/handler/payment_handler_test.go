package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"

	"github.com/GTDGit/pesapal_api/internal/middleware"
	"github.com/GTDGit/pesapal_api/internal/models"
	"github.com/GTDGit/pesapal_api/internal/repository"
	"github.com/GTDGit/pesapal_api/internal/service"
	"github.com/GTDGit/pesapal_api/internal/sse"
	"github.com/GTDGit/pesapal_api/internal/utils"
	"github.com/GTDGit/pesapal_api/pkg/pesapal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// gatewayStub serves the Pesapal endpoints used by the handlers.
type gatewayStub struct {
	mu          sync.Mutex
	submitBody  string
	statusCode  int
	lastOrder   map[string]any
	submitCalls int
}

func newGatewayStub(t *testing.T) (*gatewayStub, *httptest.Server) {
	g := &gatewayStub{
		submitBody: `{"order_tracking_id":"T1","merchant_reference":"ref","redirect_url":"https://pay.example/T1","status":"200"}`,
		statusCode: http.StatusOK,
	}
	srv := httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(srv.Close)
	return g, srv
}

func (g *gatewayStub) set(fn func(g *gatewayStub)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g)
}

func (g *gatewayStub) snapshot() (order map[string]any, submitCalls int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastOrder, g.submitCalls
}

func (g *gatewayStub) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	g.mu.Lock()
	defer g.mu.Unlock()

	switch r.URL.Path {
	case "/api/Auth/RequestToken":
		_, _ = w.Write([]byte(`{"token":"tok","status":"200"}`))
	case "/api/URLSetup/RegisterIPN":
		_, _ = w.Write([]byte(`{"ipn_id":"ipn-9","status":"200"}`))
	case "/api/Transactions/SubmitOrderRequest":
		g.submitCalls++
		_ = json.NewDecoder(r.Body).Decode(&g.lastOrder)
		_, _ = w.Write([]byte(g.submitBody))
	case "/api/Transactions/GetTransactionStatus":
		w.WriteHeader(g.statusCode)
		_, _ = w.Write([]byte(`{"status_code":1,"payment_status_description":"Completed","payment_method":"MpesaKE"}`))
	case "/api/Transactions/GetPaymentMethods":
		_, _ = w.Write([]byte(`[{"name":"MPESA"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testServer struct {
	router  *gin.Engine
	gateway *gatewayStub
	svc     *service.PaymentService
	hub     *sse.Hub
}

func newTestServer(t *testing.T, adminSecret string) *testServer {
	t.Helper()
	gateway, srv := newGatewayStub(t)

	client, err := pesapal.NewClient(pesapal.Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		CallbackURL:    "http://localhost:5000/payment/callback",
		Timeout:        5 * time.Second,
	})
	require.NoError(t, err)

	registry := service.NewGatewayRegistry()
	registry.Register(models.EnvSandbox, client)

	hub := sse.NewHub()
	svc := service.NewPaymentService(registry, repository.NewOrderLedger(clockz.NewFakeClock()), sse.NewHubNotifier(hub))

	payments := NewPaymentHandler(svc)
	orders := NewOrderHandler(svc)
	health := NewHealthHandler(svc, hub)
	guard := middleware.NewJWTMiddleware(adminSecret, middleware.NewInvalidAuthRateLimiter(clockz.NewFakeClock()))

	r := gin.New()
	r.Use(gin.Recovery(), middleware.LoggingMiddleware())
	r.GET("/health", health.GetHealth)
	r.POST("/payment/register-ipn", payments.RegisterIPN)
	r.POST("/payment/initiate", payments.InitiatePayment)
	r.GET("/payment/callback", payments.PaymentCallback)
	r.POST("/payment/callback", payments.PaymentNotification)
	r.GET("/payment/status/:trackingId", payments.GetStatus)
	r.GET("/payment/methods", payments.GetPaymentMethods)
	admin := r.Group("/orders", guard.Handle())
	admin.GET("", orders.ListOrders)
	admin.GET("/:trackingId", orders.GetOrder)

	return &testServer{router: r, gateway: gateway, svc: svc, hub: hub}
}

func (s *testServer) do(req *http.Request) (*httptest.ResponseRecorder, utils.Response) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var resp utils.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func (s *testServer) postForm(path string, form url.Values) (*httptest.ResponseRecorder, utils.Response) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *testServer) postJSON(path, body string) (*httptest.ResponseRecorder, utils.Response) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *testServer) get(path string) (*httptest.ResponseRecorder, utils.Response) {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func checkoutForm() url.Values {
	return url.Values{
		"amount":         {"100"},
		"description":    {"Test order"},
		"customer_email": {"jane@example.com"},
		"phone_number":   {"0712345678"},
	}
}

func dataMap(t *testing.T, resp utils.Response) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestInitiatePayment(t *testing.T) {
	s := newTestServer(t, "")

	w, resp := s.postForm("/payment/initiate", checkoutForm())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, resp.Success)

	data := dataMap(t, resp)
	assert.Equal(t, "T1", data["trackingId"])
	assert.Equal(t, "https://pay.example/T1", data["redirectUrl"])
	assert.Equal(t, "sandbox", data["environment"])

	sent, _ := s.gateway.snapshot()
	assert.Equal(t, "KES", sent["currency"])
	assert.Equal(t, "ipn-9", sent["notification_id"])
}

func TestInitiatePaymentBadAmount(t *testing.T) {
	s := newTestServer(t, "")
	form := checkoutForm()
	form.Set("amount", "lots")

	w, resp := s.postForm("/payment/initiate", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	_, calls := s.gateway.snapshot()
	assert.Zero(t, calls)
}

func TestInitiatePaymentUnusableAmount(t *testing.T) {
	s := newTestServer(t, "")

	for _, amount := range []string{"NaN", "Inf", "-Inf", "-100"} {
		form := checkoutForm()
		form.Set("amount", amount)

		w, resp := s.postForm("/payment/initiate", form)
		assert.Equal(t, http.StatusBadRequest, w.Code, amount)
		assert.Equal(t, "INVALID_REQUEST", resp.Error.Code, amount)
	}

	_, calls := s.gateway.snapshot()
	assert.Zero(t, calls)
	assert.Empty(t, s.svc.Orders())
}

func TestInitiatePaymentMissingField(t *testing.T) {
	s := newTestServer(t, "")
	form := checkoutForm()
	form.Del("description")

	w, resp := s.postForm("/payment/initiate", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FIELD", resp.Error.Code)
	assert.Contains(t, resp.Message, "description")
}

func TestInitiatePaymentInvalidEmail(t *testing.T) {
	s := newTestServer(t, "")
	form := checkoutForm()
	form.Set("customer_email", "not-an-email")

	w, _ := s.postForm("/payment/initiate", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitiatePaymentUnconfiguredEnvironment(t *testing.T) {
	s := newTestServer(t, "")
	form := checkoutForm()
	form.Set("environment", "production")

	w, resp := s.postForm("/payment/initiate", form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ENVIRONMENT_NOT_CONFIGURED", resp.Error.Code)
}

func TestInitiatePaymentWithoutRedirect(t *testing.T) {
	s := newTestServer(t, "")
	s.gateway.set(func(g *gatewayStub) {
		g.submitBody = `{"order_tracking_id":"T2","status":"500","error":{"code":"x","message":"declined"}}`
	})

	w, resp := s.postForm("/payment/initiate", checkoutForm())
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "NO_REDIRECT_URL", resp.Error.Code)

	_, err := s.svc.Order("T2")
	assert.NoError(t, err)
}

func TestNotificationAcknowledged(t *testing.T) {
	s := newTestServer(t, "")
	_, _ = s.postForm("/payment/initiate", checkoutForm())

	w, resp := s.postJSON("/payment/callback", `{"OrderTrackingId":"T1","Status":"COMPLETED","PaymentMethod":"MPESA","OrderNotificationType":"IPNCHANGE","OrderMerchantReference":"ref"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	data := dataMap(t, resp)
	assert.Equal(t, "IPNCHANGE", data["orderNotificationType"])
	assert.Equal(t, "T1", data["orderTrackingId"])
	assert.Equal(t, "ref", data["orderMerchantReference"])
	assert.EqualValues(t, 200, data["status"])

	order, err := s.svc.Order("T1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", order.Status)
	require.NotNil(t, order.PaymentMethod)
	assert.Equal(t, "MPESA", *order.PaymentMethod)
	assert.Contains(t, string(order.Notification), `"OrderTrackingId":"T1"`)
}

func TestNotificationUnknownOrderStillAcknowledged(t *testing.T) {
	s := newTestServer(t, "")

	w, resp := s.postJSON("/payment/callback", `{"OrderTrackingId":"ghost","Status":"COMPLETED"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Empty(t, s.svc.Orders())
}

func TestNotificationBadBody(t *testing.T) {
	s := newTestServer(t, "")

	for _, body := range []string{"", "{not json", `{"Status":"COMPLETED"}`} {
		w, resp := s.postJSON("/payment/callback", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.False(t, resp.Success)
	}
}

func TestNotificationLargeBody(t *testing.T) {
	s := newTestServer(t, "")
	_, _ = s.postForm("/payment/initiate", checkoutForm())

	padding := strings.Repeat("x", 70*1024)
	w, resp := s.postJSON("/payment/callback", `{"OrderTrackingId":"T1","Status":"COMPLETED","Padding":"`+padding+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	order, err := s.svc.Order("T1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", order.Status)

	padding = strings.Repeat("x", maxNotificationSize)
	w, resp = s.postJSON("/payment/callback", `{"OrderTrackingId":"T1","Status":"FAILED","Padding":"`+padding+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", resp.Error.Code)

	order, err = s.svc.Order("T1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", order.Status)
}

func TestRedirectCallback(t *testing.T) {
	s := newTestServer(t, "")
	_, _ = s.postForm("/payment/initiate", checkoutForm())

	w, resp := s.get("/payment/callback?OrderTrackingId=T1&OrderMerchantReference=ref")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusCompleted, dataMap(t, resp)["status"])

	w, resp = s.get("/payment/callback?OrderTrackingId=ghost")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestStatusMergesLocalAndGateway(t *testing.T) {
	s := newTestServer(t, "")
	_, _ = s.postForm("/payment/initiate", checkoutForm())

	w, resp := s.get("/payment/status/T1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := dataMap(t, resp)
	assert.Equal(t, "T1", data["trackingId"])
	assert.Equal(t, models.OrderStatusInitiated, data["localStatus"])
	gatewayStatus, ok := data["gatewayStatus"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Completed", gatewayStatus["payment_status_description"])
}

func TestStatusUnknownAndGatewayFailure(t *testing.T) {
	s := newTestServer(t, "")

	w, resp := s.get("/payment/status/ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", resp.Error.Code)

	_, _ = s.postForm("/payment/initiate", checkoutForm())
	s.gateway.set(func(g *gatewayStub) { g.statusCode = http.StatusInternalServerError })
	w, resp = s.get("/payment/status/T1")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "STATUS_QUERY_FAILED", resp.Error.Code)
}

func TestRegisterIPNAndMethods(t *testing.T) {
	s := newTestServer(t, "")

	w, resp := s.postJSON("/payment/register-ipn", `{"environment":"sandbox"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ipn-9", dataMap(t, resp)["ipnId"])

	w, resp = s.postJSON("/payment/register-ipn", `{"environment":"staging"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ENVIRONMENT", resp.Error.Code)

	w, resp = s.get("/payment/methods")
	require.Equal(t, http.StatusOK, w.Code)
	methods, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, methods, 1)
}

func TestRegisterIPNEmptyChunkedBody(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/payment/register-ipn", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1

	w, resp := s.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, resp)
	assert.Equal(t, "ipn-9", data["ipnId"])
	assert.Equal(t, string(models.EnvSandbox), data["environment"])

	req = httptest.NewRequest(http.MethodPost, "/payment/register-ipn", strings.NewReader("{bad"))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1

	w, resp = s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
}

func TestOrdersRequireAdminToken(t *testing.T) {
	s := newTestServer(t, "s3cret")
	_, _ = s.postForm("/payment/initiate", checkoutForm())

	w, _ := s.get("/orders")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := utils.GenerateJWT("s3cret", "ops", time.Hour, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w, resp := s.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta.Count)
	assert.Equal(t, 1, *resp.Meta.Count)

	req = httptest.NewRequest(http.MethodGet, "/orders/T1?token="+token, nil)
	w, resp = s.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "T1", dataMap(t, resp)["trackingId"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	w, resp := s.get("/health")
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, resp)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, []any{"sandbox"}, data["environments"])
}
