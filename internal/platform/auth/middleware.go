package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ctxPrincipalKey = "principal"

// RequireAuth validates "Authorization: Bearer <token>" and attaches the
// resolved Principal to the context.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			// pin the alg, rejects none-style tokens
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || token == nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		sub, _ := claims["sub"].(string)
		id, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid sub"})
			return
		}

		p := Principal{ID: id}
		if role, ok := claims["role"].(string); ok {
			p.Role = role
		}

		// absent privileges claim means the legacy unrestricted profile
		if raw, ok := claims["privileges"]; ok {
			list, ok := raw.([]any)
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid privileges claim"})
				return
			}
			privs := make([]string, 0, len(list))
			for _, v := range list {
				tag, ok := v.(string)
				if !ok {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid privileges claim"})
					return
				}
				privs = append(privs, tag)
			}
			p.Privileges = privs
		} else {
			p.Unrestricted = true
		}

		c.Set(ctxPrincipalKey, p)
		c.Next()
	}
}

// RequireManagement allows only principals with the management role. Run
// it after RequireAuth.
func RequireManagement() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := FromContext(c)
		if !ok || !p.IsManagement() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "management role required"})
			return
		}
		c.Next()
	}
}

// FromContext returns the Principal set by RequireAuth.
func FromContext(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
