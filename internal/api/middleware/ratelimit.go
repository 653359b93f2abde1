package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ctchen222/tictactoe-history/internal/api/response"
	"ctchen222/tictactoe-history/internal/repository"
)

// RateLimit allows limit requests per client IP inside each window for the
// routes it guards. When the counter store is unreachable requests pass.
func RateLimit(attempts repository.AttemptRepository, scope string, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := scope + ":" + c.ClientIP()

		count, ttl, err := attempts.Hit(ctx, key, window)
		if err != nil {
			slog.WarnContext(ctx, "Rate limiter unavailable, letting request through", "ratelimit.key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(limit-count, 0), 10))
		if count > limit {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			response.ErrorResponse(c, http.StatusTooManyRequests, "too many authentication attempts")
			c.Abort()
			return
		}
		c.Next()
	}
}
