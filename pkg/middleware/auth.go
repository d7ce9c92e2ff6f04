package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// SessionCookie carries the admin token for browser clients that cannot set headers.
const SessionCookie = "salon_session"

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided verifier.
// On success it stores the claim map under "claims", the caller name under "actor"
// and the raw token under "token".
func AuthMiddleware(ver Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}

		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		c.Set("claims", claims)
		c.Set("actor", Actor(claims))
		c.Set("token", token)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, error) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		if ck, err := c.Cookie(SessionCookie); err == nil && ck != "" {
			return ck, nil
		}
		return "", errors.New("missing Authorization header")
	}
	var token string
	if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
		return "", errors.New("invalid Authorization header")
	}
	return token, nil
}

// Actor picks a display name from verified claims.
func Actor(claims map[string]interface{}) string {
	for _, k := range []string{"preferred_username", "sub"} {
		if v, ok := claims[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// FirstOf tries each verifier in order and returns the first success.
// Nil verifiers are skipped.
func FirstOf(verifiers ...Verifier) Verifier {
	return chain(verifiers)
}

type chain []Verifier

func (ch chain) Verify(ctx context.Context, raw string) (Token, error) {
	var errs []error
	for _, v := range ch {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no verifier configured")
	}
	return nil, errors.Join(errs...)
}
