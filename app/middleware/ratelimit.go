package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type bucketLimiter interface {
	Allow(bucket, clientKey string) (bool, time.Duration)
}

type RateLimitMiddleware struct {
	limiter bucketLimiter
}

func NewRateLimitMiddleware(limiter bucketLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit gates a route on the named bucket, keyed by client address.
// Rejected requests get a 429 with a Retry-After hint; they are never
// dropped silently.
func (m *RateLimitMiddleware) Limit(bucket string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientKey := c.RealIP()
			allowed, retryAfter := m.limiter.Allow(bucket, clientKey)
			if !allowed {
				seconds := int(retryAfter.Round(time.Second).Seconds())
				if seconds < 1 {
					seconds = 1
				}
				logrus.WithFields(logrus.Fields{
					"bucket":    bucket,
					"remote_ip": clientKey,
				}).Warn("Rate limit exceeded")
				c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": "too many requests, please try again later",
				})
			}
			return next(c)
		}
	}
}
