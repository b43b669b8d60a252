// Package auth guards internal HTTP routes with a shared API key. Webhook
// routes are excluded; they authenticate via the gateway's payload signature.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-billing/app/dto"
)

const apiKeyHeader = "X-API-Key"

type APIKeyMiddleware struct {
	apiKey string
}

func NewAPIKeyMiddleware(apiKey string) *APIKeyMiddleware {
	return &APIKeyMiddleware{apiKey: apiKey}
}

func (m *APIKeyMiddleware) RequireInternalAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if m.apiKey == "" {
				// No key configured means the deployment fronts this service
				// with its own perimeter; pass through.
				return next(ctx)
			}

			provided := ctx.Request().Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(m.apiKey)) != 1 {
				return ctx.JSON(http.StatusUnauthorized, &dto.ErrorResponse{Error: "unauthorized"})
			}

			return next(ctx)
		}
	}
}
