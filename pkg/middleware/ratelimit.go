package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// NewRateLimiterMiddleware protects the operational API with a per-IP
// in-memory limiter. This surface serves probes and dashboards only, so
// the limits stay tight.
func NewRateLimiterMiddleware() echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(10),
				Burst:     30,
				ExpiresIn: 3 * time.Minute,
			},
		),

		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},

		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, errorResponse{
				Status:  http.StatusForbidden,
				Message: "Access forbidden",
			})
		},

		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, errorResponse{
				Status:  http.StatusTooManyRequests,
				Message: "Too many requests, slow down",
			})
		},
	}

	return middleware.RateLimiterWithConfig(config)
}
