package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// NewActivationLimiter allows perMinute attempts per minute with an equal
// burst. A non-positive perMinute disables throttling.
func NewActivationLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// Throttle rejects requests once limiter is exhausted. The rejection body is
// built by reject so each route keeps its own response shape; a nil reject
// answers with TooManyRequests.
func Throttle(limiter *rate.Limiter, reject func(c echo.Context) error) echo.MiddlewareFunc {
	if reject == nil {
		reject = TooManyRequests
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				log.Warn().
					Str("path", c.Path()).
					Str("remote_ip", c.RealIP()).
					Msg("request throttled")
				c.Response().Header().Set("Retry-After", "60")
				return reject(c)
			}
			return next(c)
		}
	}
}

// TooManyRequests is the reject func used when Throttle is given nil.
func TooManyRequests(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too_many_requests"})
}
