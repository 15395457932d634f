package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/safar/go-pos-store/internal/auth"
	"github.com/safar/go-pos-store/internal/logging"
	"github.com/safar/go-pos-store/internal/metrics"
	"github.com/safar/go-pos-store/internal/models"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	userKey         = "user"
)

// RequestContext echoes or assigns a request id and stores a request-scoped
// logger in the request context.
func RequestContext(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)

		ctx := c.Request.Context()
		fields := []zap.Field{zap.String("request_id", rid)}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}

		ctx = logging.ContextWithLogger(ctx, base.With(fields...))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AccessLog writes one line per request and records HTTP metrics keyed by
// the route template.
func AccessLog(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())

		logging.FromContext(c.Request.Context()).Info("http_access",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.Int("bytes", c.Writer.Size()),
		)
	}
}

func tokenFromRequest(c *gin.Context) string {
	if token, err := c.Cookie(auth.CookieName); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireAuth rejects requests without a valid session token and stores the
// caller's user row on the context.
func RequireAuth(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.Resolve(c.Request.Context(), tokenFromRequest(c))
		if err != nil {
			logger := logging.FromContext(c.Request.Context())
			if errors.Is(err, auth.ErrUnauthorized) {
				logger.Debug("auth_rejected", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{Message: "Unauthorized"})
				return
			}
			logger.Error("auth_failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Message: "Server error", Error: err.Error()})
			return
		}

		c.Set(userKey, user)
		ctx := logging.ContextWithLogger(c.Request.Context(),
			logging.FromContext(c.Request.Context()).With(zap.String("username", user.Username)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// cashier returns the display name of the authenticated caller, or the
// username when no display name is set.
func cashier(c *gin.Context) string {
	if user, ok := c.Get(userKey); ok {
		if u, ok := user.(*models.User); ok {
			if u.Name != "" {
				return u.Name
			}
			return u.Username
		}
	}
	return ""
}
