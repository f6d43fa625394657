package middleware

import (
	"github.com/labstack/echo/v4"
)

const hstsValue = "max-age=31536000"

// APIHeaders marks every response as uncacheable and not to be content
// sniffed. HSTS is only sent on requests that arrived over https.
func APIHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")
			h.Set(echo.HeaderCacheControl, "no-store")
			if c.Scheme() == "https" {
				h.Set(echo.HeaderStrictTransportSecurity, hstsValue)
			}
			return next(c)
		}
	}
}
