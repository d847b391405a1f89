package ratelimit

import (
	"strconv"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// MsgTooManyRequests is the message sent with a 429 response.
const MsgTooManyRequests = "Too many requests from this IP, please try again later."

// IPMiddleware limits requests by client IP using limiter. Limiter errors
// fail open: the request proceeds and the error is logged.
func IPMiddleware(limiter Limiter, limit int, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()
		if ip == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Unable to determine client IP address",
			})
		}

		result, err := limiter.Allow(c.UserContext(), ip)
		if err != nil {
			logger.Warn("Rate limit check failed", "ip", ip, "error", err)
			return c.Next()
		}

		setRateLimitHeaders(c, result, limit)

		if !result.Allowed {
			return sendRateLimitExceeded(c, result)
		}

		return c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(c *fiber.Ctx, result *Result, limit int) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// sendRateLimitExceeded sends a 429 Too Many Requests response.
func sendRateLimitExceeded(c *fiber.Ctx, result *Result) error {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
	return tooManyRequests(c)
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"success": false,
		"message": MsgTooManyRequests,
	})
}
