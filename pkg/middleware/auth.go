package middleware

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/secureboat/recipe-api/internal/auth"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// BlacklistCheck reports whether a raw token has been revoked.
type BlacklistCheck func(ctx context.Context, raw string) (bool, error)

const identityKey = "identity"

// IdentityMiddleware extracts the caller's identity from the Authorization
// header without rejecting the request. Requests with no header proceed as
// anonymous; requests with a bad or revoked token proceed as rejected. The
// route handlers decide what each state is allowed to do.
func IdentityMiddleware(ver Verifier, blacklisted BlacklistCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(identityKey, auth.Anonymous())
			c.Next()
			return
		}

		var raw string
		if n, _ := fmt.Sscanf(header, "Bearer %s", &raw); n != 1 {
			c.Set(identityKey, auth.Rejected(fmt.Errorf("malformed Authorization header")))
			c.Next()
			return
		}

		if blacklisted != nil {
			revoked, err := blacklisted(c.Request.Context(), raw)
			if err == nil && revoked {
				c.Set(identityKey, auth.Rejected(fmt.Errorf("token revoked")))
				c.Next()
				return
			}
		}

		idToken, err := ver.Verify(c.Request.Context(), raw)
		if err != nil {
			c.Set(identityKey, auth.Rejected(err))
			c.Next()
			return
		}

		var claims map[string]interface{}
		if err := idToken.Claims(&claims); err != nil {
			c.Set(identityKey, auth.Rejected(fmt.Errorf("failed to parse claims: %w", err)))
			c.Next()
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.Set(identityKey, auth.Rejected(fmt.Errorf("token has no subject")))
			c.Next()
			return
		}

		c.Set("claims", claims)
		c.Set("token", raw)
		c.Set(identityKey, auth.Verified(sub))
		c.Next()
	}
}

// IdentityFrom returns the identity placed on the context by
// IdentityMiddleware, or an anonymous identity when the middleware did not
// run.
func IdentityFrom(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Anonymous()
}
