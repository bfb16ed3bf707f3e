package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-match-api/internal/service"
	appErrors "github.com/noah-isme/tutor-match-api/pkg/errors"
	"github.com/noah-isme/tutor-match-api/pkg/response"
)

// Gate decides whether a role may perform an action.
type Gate interface {
	Authorize(action service.Action, role string) error
}

// RBAC rejects the request early when the caller's role may not perform action.
// Services repeat the check, so routes without RBAC are still guarded.
func RBAC(gate Gate, action service.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := gate.Authorize(action, claims.Role); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
