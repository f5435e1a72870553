package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"psychotest/utils"
)

const claimsKey = "claims"

// Claims identifies the caller. Tokens are issued by the account service that
// shares the signing secret.
type Claims struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 access tokens from a cookie or a bearer header.
type Authenticator struct {
	secret     []byte
	cookieName string
	adminEmail string
}

// NewAuthenticator creates an Authenticator. adminEmail names the only account
// allowed through AdminOnly.
func NewAuthenticator(secret, cookieName, adminEmail string) *Authenticator {
	return &Authenticator{
		secret:     []byte(secret),
		cookieName: cookieName,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

// IssueToken signs claims for the given user.
func (a *Authenticator) IssueToken(id uint, email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		ID:    id,
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   email,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies the signature and expiry of a token.
func (a *Authenticator) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.ID == 0 {
		return nil, errors.New("token carries no user id")
	}
	return claims, nil
}

func (a *Authenticator) tokenFrom(c *gin.Context) string {
	if a.cookieName != "" {
		if cookie, err := c.Cookie(a.cookieName); err == nil && cookie != "" {
			return cookie
		}
	}
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// RequireUser rejects requests without a token (401) or with an invalid one (403).
func (a *Authenticator) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := a.tokenFrom(c)
		if tokenStr == "" {
			utils.SendJSONError(c, http.StatusUnauthorized, "Authentication required.", nil)
			return
		}
		claims, err := a.Parse(tokenStr)
		if err != nil {
			utils.SendJSONError(c, http.StatusForbidden, "Invalid or expired token.", err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// OptionalUser attaches the caller's claims when a valid token is present and
// lets anonymous requests through.
func (a *Authenticator) OptionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr := a.tokenFrom(c); tokenStr != "" {
			if claims, err := a.Parse(tokenStr); err == nil {
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

// AdminOnly must run after RequireUser.
func (a *Authenticator) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok || a.adminEmail == "" || strings.ToLower(claims.Email) != a.adminEmail {
			utils.SendJSONError(c, http.StatusForbidden, "Admin access required.", nil)
			return
		}
		c.Next()
	}
}

// CurrentClaims returns the claims attached by RequireUser or OptionalUser.
func CurrentClaims(c *gin.Context) (*Claims, bool) {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*Claims)
	return claims, ok
}
