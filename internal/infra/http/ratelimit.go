package http

import (
	"net/http"
	"strconv"
	"time"

	"sealtrail/internal/domain"
	cryptoinfra "sealtrail/internal/infra/crypto"

	"github.com/gin-gonic/gin"
)

const routeGenerate = "sessions:generate"

// maxContextKeyLen bounds caller-supplied session contexts used verbatim in
// limiter keys; longer values are hashed.
const maxContextKeyLen = 128

// limiterKey buckets by session context when the caller sent one and by
// client address otherwise.
func limiterKey(clientIP, contextID, route string) string {
	var subject string
	switch {
	case contextID == "":
		subject = "client:" + clientIP
	case len(contextID) > maxContextKeyLen:
		subject = "context_hash:" + cryptoinfra.SHA256Hex([]byte(contextID))
	default:
		subject = "context:" + contextID
	}
	return subject + ":endpoint:" + route
}

// enforceRateLimit reports whether the request may proceed. A failing
// limiter lets the request through.
func (s *Server) enforceRateLimit(c *gin.Context, route, contextID string) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	ctx := c.Request.Context()
	key := limiterKey(c.ClientIP(), contextID, route)
	decision, err := s.rateLimiter.Allow(ctx, key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "rate_limit_unavailable", "route", route, "error", err)
		return true
	}
	setRateLimitHeaders(c.Writer.Header(), decision, s.now())
	if decision.Allowed {
		return true
	}
	writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
	return false
}

func setRateLimitHeaders(h http.Header, d domain.RateLimitDecision, now time.Time) {
	if d.Limit > 0 {
		h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	}
	if d.Remaining >= 0 {
		h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	}
	if d.ResetAt.IsZero() {
		return
	}
	h.Set("RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		wait := max(d.ResetAt.Sub(now), 0)
		h.Set("Retry-After", strconv.Itoa(int(wait.Seconds())))
	}
}
