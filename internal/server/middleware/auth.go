package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atqamz/kogase-engine/internal/platform/apperr"
	"github.com/atqamz/kogase-engine/internal/platform/httpx"
	"github.com/atqamz/kogase-engine/internal/security"
)

const bearerPrefix = "bearer "

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(token string) (*security.Principal, error)
}

// Auth rejects requests without a valid Bearer token and stores the caller in the request context.
func Auth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			httpx.Error(c, fmt.Errorf("%w: missing or invalid authorization", apperr.ErrUnauthenticated))
			return
		}
		p, err := tokens.Verify(token)
		if err != nil {
			httpx.Error(c, fmt.Errorf("%w: missing or invalid authorization", apperr.ErrUnauthenticated))
			return
		}
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// ProjectScope rejects a project-scoped caller addressing another project through the
// :projectId path parameter. Unauthenticated and unscoped callers pass through.
func ProjectScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c.Request.Context())
		if ok && p.ProjectID != "" {
			if id := c.Param("projectId"); id != "" && !strings.EqualFold(id, p.ProjectID) {
				httpx.Error(c, fmt.Errorf("%w: token is scoped to project %s", apperr.ErrForbidden, p.ProjectID))
				return
			}
		}
		c.Next()
	}
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
