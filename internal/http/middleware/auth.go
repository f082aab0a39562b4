// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides bearer-token authentication. Identity is established by
// a trusted session provider that issues HMAC-signed JWTs; this middleware
// verifies the signature and extracts the subject claim as the acting user.
// It never trusts a user id supplied in the request body or query string.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// userIDKey is the Gin context key under which the authenticated user id is
// stored. Downstream middleware (rate limiting, logging) and handlers read it.
const userIDKey = "userID"

// UserIDFrom returns the authenticated user id from the Gin context, or ""
// when the request is anonymous.
func UserIDFrom(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// subjectFromBearer parses the Authorization header and returns the verified
// subject claim. It accepts only HMAC-signed tokens.
func subjectFromBearer(c *gin.Context, secret []byte) (string, bool) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", false
	}
	return sub, true
}

// Auth returns a middleware that requires a valid bearer token and stores the
// subject under the "userID" context key. Requests without a verifiable
// identity are rejected with a JSON 401.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		sub, ok := subjectFromBearer(c, key)
		if !ok {
			rid, _ := c.Get(requestIDKey)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": asString(rid),
				"code":       "unauthorized",
				"message":    "missing or invalid bearer token",
			})
			return
		}
		c.Set(userIDKey, sub)
		c.Next()
	}
}

// OptionalAuth returns a middleware that extracts the subject when a valid
// bearer token is present but lets anonymous requests through. Used by
// endpoints that serve both identified and anonymous traffic, such as the
// listing view counter.
func OptionalAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if sub, ok := subjectFromBearer(c, key); ok {
			c.Set(userIDKey, sub)
		}
		c.Next()
	}
}
