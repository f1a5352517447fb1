package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/pesapal_api/internal/cache"
	"github.com/GTDGit/pesapal_api/internal/config"
	"github.com/GTDGit/pesapal_api/internal/handler"
	"github.com/GTDGit/pesapal_api/internal/middleware"
	"github.com/GTDGit/pesapal_api/internal/models"
	"github.com/GTDGit/pesapal_api/internal/repository"
	"github.com/GTDGit/pesapal_api/internal/service"
	"github.com/GTDGit/pesapal_api/internal/sse"
	"github.com/GTDGit/pesapal_api/pkg/pesapal"
)

// main is the application entrypoint for the Pesapal payment API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting pesapal api")

	// 3. Initialize Pesapal clients, one per configured environment
	gateways := service.NewGatewayRegistry()
	for _, env := range []models.Environment{models.EnvSandbox, models.EnvProduction} {
		envCfg := cfg.Pesapal.Environment(env)
		if !envCfg.Configured() {
			log.Info().Str("environment", string(env)).Msg("Pesapal environment not configured, skipping")
			continue
		}
		client, err := pesapal.NewClient(pesapal.Config{
			BaseURL:        envCfg.BaseURL,
			ConsumerKey:    envCfg.ConsumerKey,
			ConsumerSecret: envCfg.ConsumerSecret,
			CallbackURL:    envCfg.CallbackURL,
			Timeout:        cfg.Pesapal.HTTPTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Str("environment", string(env)).Msg("Pesapal client initialization failed")
		}
		gateways.Register(env, client)
		log.Info().Str("environment", string(env)).Str("base_url", envCfg.BaseURL).Msg("Pesapal environment registered")
	}

	// 4. Ledger, event hub and service
	ledger := repository.NewOrderLedger(nil)
	hub := sse.NewHub()
	paymentSvc := service.NewPaymentService(gateways, ledger, sse.NewHubNotifier(hub))

	// 4a. Optional Redis order mirror
	if cfg.Redis.Host != "" {
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis connection failed - order mirror disabled")
		} else {
			defer redisClient.Close()
			paymentSvc.SetMirror(cache.NewOrderCache(redisClient, cfg.Redis.MirrorTTL))
			log.Info().Dur("ttl", cfg.Redis.MirrorTTL).Msg("order mirror enabled")
		}
	}

	// 5. Initialize handlers
	handlers := &Handlers{
		Health:  handler.NewHealthHandler(paymentSvc, hub),
		Payment: handler.NewPaymentHandler(paymentSvc),
		Order:   handler.NewOrderHandler(paymentSvc),
		SSE:     handler.NewSSEHandler(hub),
	}

	// 6. Initialize middleware
	rateLimiter := middleware.NewInvalidAuthRateLimiter(nil)
	jwtMw := middleware.NewJWTMiddleware(cfg.Admin.JWTSecret, rateLimiter)
	if !jwtMw.Enabled() {
		log.Warn().Msg("ADMIN_JWT_SECRET not set - /orders routes are unauthenticated")
	}

	// 7. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, jwtMw)

	// 8. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runRateLimiterCleanup(ctx, rateLimiter, 5*time.Minute)

	// 9. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 10. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	// 11. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health  *handler.HealthHandler
	Payment *handler.PaymentHandler
	Order   *handler.OrderHandler
	SSE     *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware) {
	router.GET("/health", handlers.Health.GetHealth)

	payment := router.Group("/payment")
	{
		payment.POST("/register-ipn", handlers.Payment.RegisterIPN)
		payment.POST("/initiate", handlers.Payment.InitiatePayment)

		// Customer redirect (GET) and Pesapal IPN (POST) share one URL
		payment.GET("/callback", handlers.Payment.PaymentCallback)
		payment.POST("/callback", handlers.Payment.PaymentNotification)

		payment.GET("/status/:trackingId", handlers.Payment.GetStatus)
		payment.GET("/methods", handlers.Payment.GetPaymentMethods)
	}

	// Diagnostic order routes
	orders := router.Group("/orders")
	orders.Use(jwtMiddleware.Handle())
	{
		orders.GET("", handlers.Order.ListOrders)
		orders.GET("/stream", handlers.SSE.Stream)
		orders.GET("/:trackingId", handlers.Order.GetOrder)
	}
}

// runRateLimiterCleanup evicts expired invalid-auth entries until ctx is done.
func runRateLimiterCleanup(ctx context.Context, rl *middleware.InvalidAuthRateLimiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
