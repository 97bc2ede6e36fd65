package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTSecret returns the token signing key.
func JWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}
	return []byte(secret)
}

// AuthRequired validates the Bearer token and loads the caller's identity
// into the request context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return JWTSecret(), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token claims"})
			c.Abort()
			return
		}
		if t, _ := claims["type"].(string); t == "refresh" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Refresh token cannot be used for access"})
			c.Abort()
			return
		}

		c.Set("user_id", stringClaim(claims, "user_id"))
		c.Set("username", stringClaim(claims, "username"))
		c.Set("role", stringClaim(claims, "role"))
		if raw, ok := claims["accesses"].([]interface{}); ok {
			accesses := make([]string, 0, len(raw))
			for _, a := range raw {
				if s, ok := a.(string); ok {
					accesses = append(accesses, s)
				}
			}
			c.Set("accesses", accesses)
		}

		c.Next()
	}
}

// RequireAccess gates a route behind a capability tag. Admins pass every gate.
func RequireAccess(tag string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") == "admin" {
			c.Next()
			return
		}
		if accesses, ok := c.Get("accesses"); ok {
			if list, ok := accesses.([]string); ok {
				for _, a := range list {
					if a == tag {
						c.Next()
						return
					}
				}
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "You do not have access to this action"})
		c.Abort()
	}
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
