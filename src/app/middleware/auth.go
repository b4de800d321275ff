package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"tapround/src/app/http/response"
	"tapround/src/core/domain"
	"tapround/src/core/ports"
)

// PrincipalKey is the context key for the authenticated caller.
const PrincipalKey = "principal"

// Authenticate resolves the caller from the access token cookie, falling
// back to an "Authorization: Bearer" header. Requests without a valid
// token are rejected with 401.
func Authenticate(resolver ports.PrincipalResolver, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			token = bearerToken(c.GetHeader("Authorization"))
		}

		principal, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			response.FromDomainError(c, err, GetRequestID(c))
			c.Abort()
			return
		}

		c.Set(PrincipalKey, principal)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// RequireAdmin rejects callers without the ADMIN role with 403.
// It must run after Authenticate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := CurrentPrincipal(c)
		switch {
		case principal == nil:
			response.FromDomainError(c, domain.NewUnauthorizedError("authentication required"), GetRequestID(c))
		case !principal.IsAdmin():
			response.FromDomainError(c, domain.NewForbiddenError("admin role required"), GetRequestID(c))
		default:
			c.Next()
			return
		}
		c.Abort()
	}
}

// CurrentPrincipal returns the caller stored by Authenticate, or nil.
func CurrentPrincipal(c *gin.Context) *domain.Principal {
	if v, exists := c.Get(PrincipalKey); exists {
		if p, ok := v.(*domain.Principal); ok {
			return p
		}
	}
	return nil
}
