package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
)

const (
	userIDKey = "userID"
	userKey   = "user"
)

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// authenticate resolves the token to a stored user.
func authenticate(c *gin.Context, authService service.AuthService, tokenString string) (*repository.User, error) {
	token, err := authService.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, service.ErrInvalidToken
	}
	userID, err := authService.GetUserIDFromToken(token)
	if err != nil {
		return nil, err
	}
	return authService.GetUser(c.Request.Context(), userID)
}

// AuthMiddleware validates JWT tokens and loads the acting user
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			log.Printf("[Auth] Invalid header format - Path: %s", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		user, err := authenticate(c, authService, tokenString)
		if err != nil {
			log.Printf("[Auth] Rejected token - Path: %s, Error: %v", c.Request.URL.Path, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(userIDKey, user.ID)
		c.Set(userKey, user)
		c.Next()
	}
}

// OptionalAuthMiddleware allows requests without authentication but sets user context if present
func OptionalAuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		if user, err := authenticate(c, authService, tokenString); err == nil {
			c.Set(userIDKey, user.ID)
			c.Set(userKey, user)
		}
		c.Next()
	}
}

// RequireStaff must run after AuthMiddleware.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetUser(c).IsAdmin() {
			log.Printf("[Auth] Staff route refused - Path: %s, UserID: %s", c.Request.URL.Path, GetUserID(c))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Only staff can do this.", "reason": "admin_required"})
			return
		}
		c.Next()
	}
}

// RequireUUIDParam answers 404 when the named path parameter is present
// but is not a UUID. No record can have such an id.
func RequireUUIDParam(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param(name); id != "" {
			if _, err := uuid.Parse(id); err != nil {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found", "reason": "not_found"})
				return
			}
		}
		c.Next()
	}
}

// RequestLogger logs all incoming requests with details
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Printf("[HTTP] %s %s %d - %v", method, path, c.Writer.Status(), time.Since(start))
		for _, e := range c.Errors {
			log.Printf("[HTTP] Error on %s %s: %v", method, path, e.Err)
		}
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetUser returns the authenticated user, or nil.
func GetUser(c *gin.Context) *repository.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*repository.User)
	return user
}

// RequireUser writes 401 and returns false when no user is in context
func RequireUser(c *gin.Context) (*repository.User, bool) {
	user := GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	return user, true
}
