package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	identityKey     = "identity"
)

// requestIDMiddleware tags each request with an id, reusing the caller's if sent.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(util.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// accessLogMiddleware logs one line per request through zap.
func accessLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		util.LoggerFromContext(c.Request.Context()).Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// corsMiddleware allows the configured frontend origin with credentials.
func corsMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := origin
		if origin == "*" {
			if reqOrigin := c.GetHeader("Origin"); reqOrigin != "" {
				allowed = reqOrigin
			}
		}
		c.Header("Access-Control-Allow-Origin", allowed)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimitMiddleware enforces a fixed window per client IP. Limiter errors
// let the request through.
func (h *Handler) rateLimitMiddleware(name string, max int64, window time.Duration, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}

		res, err := h.limiter.Allow(c.Request.Context(), name, c.ClientIP(), max, window)
		if err != nil {
			util.LoggerFromContext(c.Request.Context()).Warn("Rate limiter unavailable",
				zap.String("limiter", name),
				zap.Error(err))
			c.Next()
			return
		}

		c.Header("RateLimit-Limit", strconv.FormatInt(max, 10))
		c.Header("RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		c.Header("RateLimit-Reset", strconv.Itoa(int(res.ResetIn.Round(time.Second).Seconds())))

		if !res.Allowed {
			util.RateLimitedTotal.WithLabelValues(name).Inc()
			c.Header("Retry-After", strconv.Itoa(int(res.ResetIn.Round(time.Second).Seconds())))
			respondFailure(c, http.StatusTooManyRequests, message)
			return
		}
		c.Next()
	}
}

// bearerAuth requires a valid "Authorization: Bearer <token>" header and
// stores the caller's identity on the context.
func (h *Handler) bearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondFailure(c, http.StatusUnauthorized, "no token provided, access denied")
			return
		}

		identity, err := h.auth.Authenticate(strings.TrimSpace(token))
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}
