package httpapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/Fi44er/tradecycle/internal/models"
	"github.com/Fi44er/tradecycle/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const userKey = "user"

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			s.abort(c, apperr.Unauthorized("missing bearer token"))
			return
		}

		user, err := s.service.Authenticate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			s.abort(c, err)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.IsAdmin() {
			s.abort(c, apperr.Forbidden("admin role required"))
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}
		if user := currentUser(c); user != nil {
			fields["user_id"] = user.ID
		}

		entry := s.logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request")
		}
	}
}

func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.metrics == nil {
			c.Next()
			return
		}
		s.metrics.InFlight(1)
		start := time.Now()
		c.Next()
		s.metrics.InFlight(-1)
		s.metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		s.logger.Errorf("Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(apperr.Internal(nil)))
	})
}

const maxLimiterKeys = 10000

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	logger   *utils.Logger
}

// NewRateLimiter returns a limiter allowing rps requests per second per key.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int, logger *utils.Logger) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(rps),
		burst:    burst,
		logger:   logger,
	}
}

func (rl *RateLimiter) Allow(key string, now time.Time) bool {
	if rl.rate <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiterKeys {
			rl.prune(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// prune drops buckets idle for over a minute; if none are, it starts over.
func (rl *RateLimiter) prune(now time.Time) {
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > time.Minute {
			delete(rl.limiters, key)
		}
	}
	if len(rl.limiters) >= maxLimiterKeys {
		rl.limiters = make(map[string]*limiterEntry)
	}
}

// Middleware keys on the authenticated user when there is one, else the client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if user := currentUser(c); user != nil {
			key = "user:" + user.ID
		}

		if !rl.Allow(key, time.Now()) {
			rl.logger.Warnf("Rate limit exceeded for %s on %s", key, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"detail": "too many requests",
				"kind":   "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
