package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/config"
	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redisclient"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AuthService is the auth behaviour the handlers use.
type AuthService interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*service.AuthResponse, error)
	Login(ctx context.Context, req *service.LoginRequest) (*service.AuthResponse, error)
	Authenticate(token string) (*auth.Identity, error)
	GetMe(ctx context.Context, userID int64) (*models.User, error)
}

// CatalogService is the catalog behaviour the handlers use.
type CatalogService interface {
	ListMembers(ctx context.Context) ([]models.Member, error)
	GetMember(ctx context.Context, id int64) (*models.Member, error)
	ListProducts(ctx context.Context, category string) ([]models.ProductWithMember, error)
	GetProduct(ctx context.Context, id int64) (*models.ProductWithMember, error)
	UpcomingEvents(ctx context.Context) ([]models.ScheduleEvent, error)
	FeaturedEvents(ctx context.Context) ([]models.ScheduleEvent, error)
	EventsByMonth(ctx context.Context, month string) ([]models.ScheduleEvent, error)
}

// OrderService is the order behaviour the handlers use.
type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, idempotencyKey string, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error)
	GetMyOrders(ctx context.Context, userID int64) ([]models.OrderWithItems, error)
	PaymentCallback(ctx context.Context, n *payment.Notification) error
}

// RateLimiter counts requests per fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, limiter, subject string, max int64, window time.Duration) (*redisclient.RateLimitResult, error)
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	auth       AuthService
	catalog    CatalogService
	orders     OrderService
	limiter    RateLimiter
	readiness  map[string]Pinger
	production bool
	origin     string
	limits     config.RateLimitConfig
}

// Options carries the HTTP-facing configuration.
type Options struct {
	Production  bool
	FrontendURL string
	RateLimit   config.RateLimitConfig
	// Readiness lists dependencies pinged by /ready, by name.
	Readiness map[string]Pinger
}

// NewHandler creates a new HTTP handler. limiter may be nil to disable rate limiting.
func NewHandler(authSvc AuthService, catalog CatalogService, orders OrderService, limiter RateLimiter, opts Options) *Handler {
	return &Handler{
		auth:       authSvc,
		catalog:    catalog,
		orders:     orders,
		limiter:    limiter,
		readiness:  opts.Readiness,
		production: opts.Production,
		origin:     opts.FrontendURL,
		limits:     opts.RateLimit,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(accessLogMiddleware())
	router.Use(corsMiddleware(h.origin))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Notifications are signature-verified and arrive from a handful of gateway
	// IPs, so they stay out of the per-IP api limit.
	router.POST("/api/orders/payment-callback", h.paymentCallback)

	api := router.Group("/api")
	api.Use(h.rateLimitMiddleware("api", h.limits.APIMax, h.limits.APIWindow,
		"too many requests, please try again later"))

	authLimit := h.rateLimitMiddleware("auth", h.limits.AuthMax, h.limits.AuthWindow,
		"too many login attempts, please try again later")
	paymentLimit := h.rateLimitMiddleware("payment", h.limits.PaymentMax, h.limits.PaymentWindow,
		"too many transactions, please try again later")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authLimit, h.register)
		authGroup.POST("/login", authLimit, h.login)
		authGroup.GET("/me", h.bearerAuth(), h.getMe)
		authGroup.POST("/logout", h.bearerAuth(), h.logout)
	}

	members := api.Group("/members")
	{
		members.GET("", h.listMembers)
		members.GET("/:id", h.getMember)
	}

	products := api.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/category/:category", h.listProductsByCategory)
		products.GET("/:id", h.getProduct)
	}

	orders := api.Group("/orders")
	{
		orders.POST("", h.bearerAuth(), paymentLimit, h.createOrder)
		orders.GET("/my-orders", h.bearerAuth(), h.getMyOrders)
	}

	schedule := api.Group("/schedule")
	{
		schedule.GET("", h.upcomingEvents)
		schedule.GET("/featured", h.featuredEvents)
		schedule.GET("/month/:month", h.eventsByMonth)
	}

	router.NoRoute(func(c *gin.Context) {
		respondFailure(c, http.StatusNotFound, "endpoint not found")
	})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	respond(c, http.StatusOK, "server is running", gin.H{
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

// readinessCheck pings every dependency and reports which ones are down
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.readiness))
	ready := true
	for name, p := range h.readiness {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, envelope{Success: false, Message: "not ready", Data: checks})
		return
	}
	respond(c, http.StatusOK, "ready", checks)
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// identity returns the caller set by bearerAuth.
func identity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

func (h *Handler) bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, &apperr.Error{Kind: apperr.KindValidation, Message: "invalid request body", Err: err})
		return false
	}
	return true
}
