package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ginko-backend/types"
)

const principalKey = "principal"

// RequireAuth resolves the bearer token into a principal and stores it
// on the context. Validation and authorization short-circuit here,
// before any handler opens a graph session.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			Error(c, http.StatusUnauthorized, types.CodeAuthRequired, "missing Authorization header")
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || strings.TrimSpace(token) == "" {
			Error(c, http.StatusUnauthorized, types.CodeAuthRequired, "Authorization header must be a bearer token")
			c.Abort()
			return
		}

		principal, err := Identity.Resolve(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			Error(c, http.StatusUnauthorized, types.CodeAuthInvalid, "token rejected")
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// PrincipalFrom reads the authenticated principal off the context.
func PrincipalFrom(c *gin.Context) (types.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return types.Principal{}, false
	}
	p, ok := v.(types.Principal)
	return p, ok
}

// mustPrincipal is for handlers behind RequireAuth. A missing principal
// means a routing bug, answered as 401 rather than a panic.
func mustPrincipal(c *gin.Context) (types.Principal, bool) {
	p, ok := PrincipalFrom(c)
	if !ok {
		Error(c, http.StatusUnauthorized, types.CodeAuthRequired, "not authenticated")
	}
	return p, ok
}

// checkAccess runs the capability gate and writes the error response on
// failure.
func checkAccess(c *gin.Context, principal types.Principal, graphID string, want types.Capability) (types.Access, bool) {
	acc, err := Access.Check(c.Request.Context(), principal, graphID, want)
	if err != nil {
		accessError(c, err)
		return types.Access{}, false
	}
	return acc, true
}
