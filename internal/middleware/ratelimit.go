package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/ratelimit"
	"github.com/charlesng35/skybook/pkg/errors"
	"github.com/charlesng35/skybook/pkg/response"
)

// Checker is satisfied by *ratelimit.Limiter.
type Checker interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) ratelimit.Decision
}

// RatePolicy names a request budget. A policy with a non-positive limit or
// window is disabled.
type RatePolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p RatePolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// RateLimit throttles requests per caller under policy. Authenticated callers
// are keyed by user id, everyone else by client IP. The limiter fails open, so
// a store outage never rejects traffic.
func RateLimit(limiter Checker, policy RatePolicy) gin.HandlerFunc {
	name := policy.Name
	if name == "" {
		name = "default"
	}
	return func(c *gin.Context) {
		if limiter == nil || !policy.enabled() {
			c.Next()
			return
		}

		decision := limiter.Check(c.Request.Context(), name+":"+callerKey(c), policy.Limit, policy.Window)
		resetSeconds := int64(math.Ceil(float64(decision.ResetTime) / 1000))

		c.Header("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetSeconds, 10))

		if !decision.Allowed {
			retryAfter := int64(math.Ceil(time.Until(decision.ResetAt()).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}

func callerKey(c *gin.Context) string {
	if userID := c.GetString(CtxUserIDKey); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}
