// Package httpapi wires the bot's HTTP surface: tracing, correlation ids,
// redacting access logs, panic recovery, metrics, security headers, webhook
// secret verification and rate limiting in front of the webhook endpoint.
package httpapi

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-pdf-library-bot/internal/config"
	"github.com/tbourn/go-pdf-library-bot/internal/http/handlers"
	"github.com/tbourn/go-pdf-library-bot/internal/http/middleware"
)

// WebhookPath is where Telegram delivers updates.
const WebhookPath = "/webhook"

// maxUpdateBytes caps request bodies. Updates are small JSON documents.
const maxUpdateBytes = 1 << 20

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Security headers
//
// The banner and health routes sit behind the per-IP limiter. The webhook
// verifies its secret before the limiter, so verified Telegram deliveries
// bypass it.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxUpdateBytes))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// promhttp negotiates its own compression.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())

	pages := r.Group("", rl.Handler(), gzip.Gzip(gzip.DefaultCompression))
	pages.GET("/", h.Index)
	pages.GET("/health", h.Health)

	r.POST(WebhookPath,
		middleware.WebhookSecret(cfg.Bot.WebhookSecret),
		rl.Handler(),
		h.Webhook,
	)
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
