package auth

import "github.com/gin-gonic/gin"

const userIDKey = "userID"

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// SetUserID stores an identity directly. Used by tests and trusted internal callers.
func SetUserID(c *gin.Context, userID string) {
	c.Set(userIDKey, userID)
}
