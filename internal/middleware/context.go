package middleware

import (
	"github.com/google/uuid"
	"github.com/harborpaws/resolve/internal/context"
	"github.com/labstack/echo/v4"
)

// HeaderActor names the identity behind a request for audit rows
const HeaderActor = "X-Actor"

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			actor := req.Header.Get(HeaderActor)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetReferer(ctx, req.Referer())
			ctx = context.SetActor(ctx, actor)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
