// Package api is the HTTP layer of craftcon: console commands, summaries
// and plugin actions over JSON, guarded by bearer tokens with roles.
package api

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/db"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

// Context keys set by the middleware.
const (
	ctxRequestID = "request_id"
	ctxToken     = "token"
)

// localToken stands in for a real token when authentication is disabled.
var localToken = &db.Token{ID: "local", Label: "local", Role: db.RoleAdmin}

// AuthMiddleware verifies bearer tokens and enforces role permissions.
type AuthMiddleware struct {
	cfg    *config.Config
	tokens TokenStore
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(cfg *config.Config, tokens TokenStore) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg, tokens: tokens}
}

// RequireAuth resolves the bearer token. With auth_disabled every request
// is treated as a local admin.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.cfg.GetApplicationData().Security.AuthDisabled {
			c.Set(ctxToken, localToken)
			c.Next()
			return
		}

		if am.tokens == nil {
			fail(c, http.StatusServiceUnavailable, "token store unavailable")
			c.Abort()
			return
		}

		secret := extractBearerToken(c.GetHeader("Authorization"))
		if secret == "" {
			fail(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		tok, err := am.tokens.Authenticate(secret)
		if err != nil {
			if !errors.Is(err, db.ErrInvalidToken) {
				log.Error().Err(err).Msg("token lookup failed")
			}
			fail(c, http.StatusUnauthorized, "invalid or revoked token")
			c.Abort()
			return
		}

		c.Set(ctxToken, tok)
		c.Next()
	}
}

// RequirePermission rejects requests whose token lacks permission.
func (am *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := tokenFrom(c)
		if tok == nil {
			fail(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}
		if !tok.HasPermission(permission) {
			c.JSON(http.StatusForbidden, gin.H{
				"success":  false,
				"error":    "insufficient permissions",
				"required": permission,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// IPWhitelist restricts access to whitelisted addresses and CIDRs.
func (am *AuthMiddleware) IPWhitelist() gin.HandlerFunc {
	whitelist := am.cfg.GetApplicationData().Security.IPWhitelist

	return func(c *gin.Context) {
		if len(whitelist) == 0 {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		for _, entry := range whitelist {
			if clientIP == entry {
				c.Next()
				return
			}
			if _, cidr, err := net.ParseCIDR(entry); err == nil && cidr.Contains(net.ParseIP(clientIP)) {
				c.Next()
				return
			}
		}

		fail(c, http.StatusForbidden, "access denied: IP not whitelisted")
		c.Abort()
	}
}

func tokenFrom(c *gin.Context) *db.Token {
	v, ok := c.Get(ctxToken)
	if !ok {
		return nil
	}
	tok, _ := v.(*db.Token)
	return tok
}

// RateLimiter is a per-client-IP token bucket.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	rate    int
	burst   int
	now     func() time.Time
}

type clientBucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with a
// burst of twice that. rps <= 0 disables limiting.
func NewRateLimiter(rps int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientBucket),
		rate:    rps,
		burst:   rps * 2,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.rate <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	bucket, ok := rl.clients[key]
	if !ok {
		bucket = &clientBucket{tokens: float64(rl.burst), lastCheck: now}
		rl.clients[key] = bucket
		if len(rl.clients) > 1024 {
			rl.evict(now)
		}
	}

	bucket.tokens += now.Sub(bucket.lastCheck).Seconds() * float64(rl.rate)
	if bucket.tokens > float64(rl.burst) {
		bucket.tokens = float64(rl.burst)
	}
	bucket.lastCheck = now

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// evict drops buckets that have refilled completely.
func (rl *RateLimiter) evict(now time.Time) {
	full := time.Duration(float64(time.Second) * float64(rl.burst) / float64(rl.rate))
	for k, b := range rl.clients {
		if now.Sub(b.lastCheck) > full {
			delete(rl.clients, k)
		}
	}
}

// Middleware rate limits by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			fail(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestID assigns every request an id, keeping a sane incoming one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// SecurityHeaders adds security-related HTTP headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Server", "craftcon")
		c.Next()
	}
}

// RequestLogger logs each request and counts it by route and status.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.GetOrCreateCounter(fmt.Sprintf(`craftcon_http_requests_total{route=%q,status="%d"}`, route, status)).Inc()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(ctxRequestID)).
			Msg("api request")
	}
}

func extractBearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
