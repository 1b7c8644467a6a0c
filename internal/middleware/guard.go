package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/teamfaces/teamfaces/internal/guard"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/response"
)

// Guard applies the route guard to a route group. Run it after OptionalJWT.
// Server-side there is no loading state; redirects become HTTP statuses.
func Guard(req guard.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := guard.State{Identity: IdentityFrom(c)}
		out := guard.Decide(state, req, c.Request.URL.RequestURI())
		switch out.Decision {
		case guard.Render:
			c.Next()
			return
		case guard.RedirectLogin:
			c.Header("Location", out.Location)
			response.Unauthorized(c, "sign in required")
		case guard.RedirectHome:
			response.SeeOther(c, out.Location)
		case guard.RedirectUnauthorized:
			response.Forbidden(c, "insufficient permissions")
		default:
			response.ServiceUnavailable(c, "session not ready")
		}
		c.Abort()
	}
}

// RequirePermission allows only roles holding perm.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := IdentityFrom(c)
		if ident == nil {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !models.Can(ident.Role, perm) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
