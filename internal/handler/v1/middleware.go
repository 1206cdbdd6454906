package v1

import (
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/prod-golang-projects/oralscreen/config"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/internal/service"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/oralscreen/pkg/metrics"
)

const headerRequestID = "X-Request-ID"

// RequestLogger tags each request with an id and logs it on completion.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ctxRequestID, requestID)
		c.Header(headerRequestID, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if p := principalFrom(c); !p.IsAnonymous() {
			fields = append(fields, zap.String("user", p.Username))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func Metrics(m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.InFlightGauge.Inc()
		defer m.InFlightGauge.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     cfg.AllowedMethods,
		AllowHeaders:     cfg.AllowedHeaders,
		ExposeHeaders:    []string{headerRequestID, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           cfg.MaxAge,
	}
	if slices.Contains(cfg.AllowedOrigins, "*") {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
	}
	return cors.New(cc)
}

// LimitBodySize caps request bodies; multipart parsing fails past the limit.
func LimitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP. Idle buckets are
// swept lazily on access.
type IPRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewIPRateLimiter(cfg config.RateLimitConfig) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.BurstSize,
		idleTTL:  3 * time.Minute,
		now:      time.Now,
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}

// LoadPrincipal resolves the session cookie into a principal. Missing or
// invalid cookies leave the request anonymous.
func LoadPrincipal(sessions *auth.SessionManager, cookieName string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		claims, err := sessions.Validate(token)
		if err != nil {
			log.Debug("ignoring session cookie", zap.Error(err))
			c.Next()
			return
		}

		c.Set(ctxPrincipal, claims.Principal())
		c.Next()
	}
}

// RequireRole redirects anonymous browsers to the login page and rejects
// callers holding a different role.
func (h *Handler) RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalFrom(c)
		if p.IsAnonymous() {
			h.respondServiceError(c, service.ErrUnauthenticated)
			c.Abort()
			return
		}
		if p.Role != role {
			h.respondServiceError(c, service.ErrForbidden)
			return
		}
		c.Next()
	}
}

func (h *Handler) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c).IsAnonymous() {
			h.respondServiceError(c, service.ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ProtectReports lets a generated report through only to callers who may
// see its record. Other static files pass untouched.
func (h *Handler) ProtectReports() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := path.Base(c.Param("filepath"))
		key, ok := strings.CutPrefix(strings.TrimSuffix(name, ".pdf"), "report_")
		if !ok || !strings.HasSuffix(name, ".pdf") {
			c.Next()
			return
		}
		if _, err := h.records.Get(c.Request.Context(), callerFrom(c), key); err != nil {
			h.respondServiceError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
