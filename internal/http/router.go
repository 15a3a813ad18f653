// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-template-backend/internal/config"
	"github.com/tbourn/go-template-backend/internal/errcode"
	"github.com/tbourn/go-template-backend/internal/http/handlers"
	"github.com/tbourn/go-template-backend/internal/http/middleware"
	"github.com/tbourn/go-template-backend/internal/repo"
	"github.com/tbourn/go-template-backend/internal/services"
)

// idempotencyShim adapts the repository free functions to the
// handlers.IdempotencyStore interface and the middleware lookup.
type idempotencyShim struct {
	db *gorm.DB
}

// Find proxies repo.GetIdempotency; a miss is not an error.
func (s idempotencyShim) Find(ctx context.Context, userID, scope, key string, now time.Time) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return rec.ResourceID, true, nil
}

// Save proxies repo.CreateIdempotency. A concurrent duplicate already holds
// a result for the key, so it is not an error.
func (s idempotencyShim) Save(ctx context.Context, userID, scope, key, resourceID string, status int, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key, resourceID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Exists is the middleware.IdempotencyLookup view of Find.
func (s idempotencyShim) Exists(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
	_, found, err := s.Find(ctx, userID, scope, key, now)
	return found, err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID + Identity: correlation id and caller id
//  3. Logger: structured, redacted logs with a request-scoped logger
//  4. Recovery: capture panics after logger
//  5. CallerContext: client ip / user agent for the failure audit
//  6. Body size limiter and gzip
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
//
// POST /templates additionally passes the AI limiter, since each call costs
// a vendor request.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, ai services.Generator, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	idem := idempotencyShim{db: db}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())
	r.Use(middleware.Identity())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to the JSON error envelope (with request id)
	r.Use(middleware.Recovery())

	// 5) Audit context
	r.Use(middleware.CallerContext())

	// 6) Body size limit and compression
	r.Use(limitBody(cfg.MaxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		idem.Exists,
	))

	// 9) Token-bucket rate limiter per user/IP
	if cfg.RateRPS > 0 {
		r.Use(middleware.NewRateLimiter("global", cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler())
	}

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Public API base
	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		NoStorePrefixes: []string{joinPath(apiBase, "/templates")},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/ai
	reg := errcode.MustBuiltin()
	svc := services.NewTemplateService(db, ai, reg, services.NewFailureLogService(db))
	h := handlers.New(svc, idem)
	h.IdempotencyTTL = cfg.IdempotencyTTL

	createChain := []gin.HandlerFunc{h.CreateTemplate}
	if cfg.AI.RateRPS > 0 {
		aiLimiter := middleware.NewRateLimiter("ai", cfg.AI.RateRPS, cfg.AI.RateBurst, middleware.KeyByUserOrIP())
		createChain = append([]gin.HandlerFunc{aiLimiter.Handler()}, createChain...)
	}

	api := groupWithPrefix(r, apiBase)
	{
		api.POST("/templates", createChain...)
		api.GET("/templates", h.ListTemplates)
		api.GET("/templates/:id", h.GetTemplate)
		api.GET("/templates/:id/history", h.TemplateHistory)
		api.POST("/templates/:id/approve-request", h.RequestApproval)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath joins a normalized base path and a route.
func joinPath(base, route string) string {
	if base == "" || base == "/" {
		return route
	}
	return base + route
}
