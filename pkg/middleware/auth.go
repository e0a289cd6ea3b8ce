package middleware

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload issued by the account service. Subject holds the user id.
type Claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// PlayerEnsurer creates the local player row on first sight.
type PlayerEnsurer interface {
	EnsurePlayer(userID uuid.UUID, username string) error
}

// JWTAuth validates HS256 bearer tokens and sets user_id, username and is_admin.
// Websocket clients may pass the token as ?token= instead of a header.
func JWTAuth(secret string, players PlayerEnsurer) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims := &Claims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) { return key, nil }); err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			return
		}

		if players != nil {
			if err := players.EnsurePlayer(userID, claims.Username); err != nil {
				log.Printf("❌ [AUTH] failed to ensure player %s: %v", userID, err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}

		c.Set("user_id", userID)
		c.Set("username", claims.Username)
		c.Set("is_admin", claims.Admin)
		c.Next()
	}
}

// AdminOnly rejects callers whose token lacks the admin claim.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("is_admin") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// IssueToken signs a token for userID. The server only verifies tokens; this is
// used by tests and cmd/devtoken.
func IssueToken(secret string, userID uuid.UUID, username string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Admin:    admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}
