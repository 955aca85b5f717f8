package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const (
	principalContextKey = "ecostay.principal"
	userHeader          = "X-User-ID"
	idempotencyHeader   = "Idempotency-Key"
)

type principal struct {
	ID string
}

// PrincipalMiddleware trusts the user id set by the fronting auth proxy.
func PrincipalMiddleware(c *gin.Context) {
	if id := strings.TrimSpace(c.GetHeader(userHeader)); id != "" {
		c.Set(principalContextKey, principal{ID: id})
	}
	c.Next()
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireUser(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required", "reason": "unauthenticated"})
		return principal{}, false
	}
	return p, true
}

func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(idempotencyHeader))
}
