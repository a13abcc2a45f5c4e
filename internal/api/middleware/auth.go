package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nichind/fastapi/internal/models"
	"github.com/nichind/fastapi/internal/registry"
	"github.com/nichind/fastapi/internal/secret"
	"github.com/nichind/fastapi/internal/store"
)

// ContextUser is the gin context key the authenticated user is stored under.
const ContextUser = "user"

// Authenticator validates bearer credentials: either a short-lived login
// JWT or a persistent API token looked up through the entity store and
// confirmed with the codec.
type Authenticator struct {
	reg       *registry.Registry
	jwtSecret []byte
}

func NewAuthenticator(reg *registry.Registry, jwtSecret string) *Authenticator {
	a := &Authenticator{reg: reg}
	if jwtSecret != "" {
		a.jwtSecret = []byte(jwtSecret)
	}
	return a
}

// RequireAuth ensures the caller presents a valid token via Header OR Query Param.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		// 1. Try to get the token from the "Authorization" header
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}

		// 2. If header failed/missing, try the URL query parameter "?token=..."
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid token"})
			return
		}

		user := a.userForJWT(c, tokenString)
		if user == nil {
			user = a.userForAPIToken(c, tokenString)
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireAdmin restricts a route to administrator accounts.
// It MUST be used AFTER RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Auth context missing"})
			return
		}
		if !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Forbidden: You lack the required permissions.",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by RequireAuth, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func (a *Authenticator) userForJWT(c *gin.Context, tokenString string) *models.User {
	if len(a.jwtSecret) == 0 {
		return nil
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return nil
	}

	user, err := a.reg.Users.GetByID(c.Request.Context(), uint(sub))
	if err != nil {
		return nil
	}
	return user
}

// userForAPIToken resolves a persistent token: the deterministic hash finds
// the row, the codec confirms the plaintext against the encrypted value.
func (a *Authenticator) userForAPIToken(c *gin.Context, tokenString string) *models.User {
	ctx := c.Request.Context()
	hash := secret.Hash(tokenString)

	var owner *models.User
	var stored string

	if user, err := a.reg.Users.Get(ctx, store.Filter{"token_hash": hash}); err == nil {
		owner, stored = user, user.Token
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil
	} else {
		session, err := a.reg.Sessions.Get(ctx, store.Filter{"token_hash": hash})
		if err != nil {
			return nil
		}
		if session.ExpiresAt != nil && session.ExpiresAt.Before(time.Now()) {
			return nil
		}
		user, err := a.reg.Users.GetByID(ctx, session.UserID)
		if err != nil {
			return nil
		}
		owner, stored = user, session.Token
	}

	ok, err := a.reg.Codec.Compare(tokenString, stored)
	if err != nil || !ok {
		return nil
	}
	return owner
}
