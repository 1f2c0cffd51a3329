// Package httpapi exposes the tailoring service over HTTP
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/degradation"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tailor"
)

// maxBodyBytes bounds a request body; tasks are capped well below this
const maxBodyBytes = 1 << 20

// Tailorer is the part of the tailoring service the API calls
type Tailorer interface {
	Tailor(ctx context.Context, req tailor.Request) (*tailor.Response, error)
	Preview(ctx context.Context, req tailor.Request) (*tailor.PreviewResponse, error)
}

// HealthChecker reports dependency health
type HealthChecker interface {
	Check() degradation.SystemHealth
}

// Options configure the handler
type Options struct {
	AuthToken      string
	RequestTimeout time.Duration
	// MetricsPath serves Prometheus metrics when set
	MetricsPath string
}

// Handler serves the tailoring and health routes
type Handler struct {
	service Tailorer
	health  HealthChecker
	opts    Options
	logger  *zap.Logger
}

// NewHandler creates a handler. health may be nil.
func NewHandler(service Tailorer, health HealthChecker, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, health: health, opts: opts, logger: logger}
}

// NewRouter builds the gin engine with every route registered
func NewRouter(h *Handler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), h.accessLog())
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers the API and health endpoints, plus metrics when enabled
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/v1", h.requireToken())
	v1.POST("/tailor", h.handleTailor)
	v1.POST("/tailor/preview", h.handlePreview)

	router.GET("/health", h.handleHealth)
	router.GET("/health/live", h.handleLiveness)
	if h.opts.MetricsPath != "" {
		router.GET(h.opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

func (h *Handler) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.opts.AuthToken == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.AuthToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (h *Handler) bind(c *gin.Context) (tailor.Request, bool) {
	var req tailor.Request
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return req, false
	}
	return req, true
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.opts.RequestTimeout > 0 {
		return context.WithTimeout(c.Request.Context(), h.opts.RequestTimeout)
	}
	return context.WithCancel(c.Request.Context())
}

func (h *Handler) handleTailor(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	resp, err := h.service.Tailor(ctx, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		h.logger.Warn("Tailoring hit the request timeout",
			zap.String("session_id", resp.SessionID),
			zap.Duration("timeout", h.opts.RequestTimeout))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handlePreview(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	resp, err := h.service.Preview(ctx, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *tailor.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}
	h.logger.Error("Tailoring request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// handleHealth answers 503 only when dependencies are severely degraded
func (h *Handler) handleHealth(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": degradation.LevelNone.String()})
		return
	}
	sys := h.health.Check()
	status := http.StatusOK
	if sys.Overall == degradation.LevelSevere {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":       sys.Overall.String(),
		"dependencies": sys.Dependencies,
		"timestamp":    sys.Timestamp.Unix(),
	})
}

func (h *Handler) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now().Unix()})
}
