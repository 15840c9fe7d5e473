package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"CareChat/tools/security"
)

// Context keys downstream handlers read the authenticated identity from.
const (
	CtxUserIDKey   = "authUserId"
	CtxUserNameKey = "authUserName"
)

// Middleware verifies the bearer token and stores the identity into the gin
// context. Requests without a valid token stop here with 401.
func Middleware(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := security.Verify(opts, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxUserIDKey, id.UserID)
		c.Set(CtxUserNameKey, id.UserName)
		c.Next()
	}
}

// Caller reads the identity the middleware stored.
func Caller(c *gin.Context) security.Identity {
	return security.Identity{
		UserID:   c.GetString(CtxUserIDKey),
		UserName: c.GetString(CtxUserNameKey),
	}
}

func bearer(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	// Browser websocket clients cannot set headers; accept ?token= there.
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
