package middleware

import (
	"net/http"
	"strings"
	"wallstreetvotes/internal/models"
	"wallstreetvotes/internal/services"
	"wallstreetvotes/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "user"

// Session keys
const (
	SessionUserID   = "userid"
	SessionUsername = "username"
	SessionToken    = "logged_in"
)

// SignIn stores the login in the session. The token is recomputed on every request by LoadUser.
func SignIn(c *gin.Context, identity *services.IdentityStore, user *models.User) error {
	session := sessions.Default(c)
	session.Set(SessionUserID, user.ID)
	session.Set(SessionUsername, user.Username)
	session.Set(SessionToken, identity.SessionToken(user.ID, user.Username))
	return session.Save()
}

// SignOut clears the login session.
func SignOut(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// LoadUser verifies the session token and puts the current user into the context.
func LoadUser(identity *services.IdentityStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, _ := session.Get(SessionUserID).(uint)
		username, _ := session.Get(SessionUsername).(string)
		token, _ := session.Get(SessionToken).(string)

		if identity.VerifySessionToken(userID, username, token) {
			user, err := identity.Get(c.Request.Context(), userID)
			if err == nil && user.Username == username {
				c.Set(CheckUserKey, user)
			}
		}
		c.Next()
	}
}

// CurrentUser returns the logged-in user set by LoadUser or JWTAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(CheckUserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// AuthRequired redirects anonymous visitors to the login page
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired only lets configured admin usernames through.
func AdminRequired(isAdmin func(username string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok || !isAdmin(user.Username) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// JWTAuth authenticates API requests with a bearer token.
func JWTAuth(identity *services.IdentityStore, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		claims, err := utils.ParseJWT(strings.TrimPrefix(authHeader, "Bearer "), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		user, err := identity.Get(c.Request.Context(), claims.UserID)
		if err != nil || user.Username != claims.Username {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(CheckUserKey, user)
		c.Next()
	}
}
