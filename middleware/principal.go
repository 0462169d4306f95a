// middleware/principal.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/gatekeeper-project/gatekeeper/logging"
)

// Context keys set by the principal middleware.
const (
	ContextUserID         = "userID"
	ContextUserAttributes = "userAttributes"
)

// Headers carrying principal attributes from the upstream auth layer.
// Token validation itself happens there; by the time a request reaches this
// service the gateway has already authenticated the caller and flattened its
// attributes into headers.
const (
	headerUserID     = "X-User-Id"
	headerRole       = "X-User-Role"
	headerDepartment = "X-User-Department"
	headerLocation   = "X-User-Location"
	headerAttrPrefix = "X-User-Attr-"
)

// PrincipalAttributes extracts the authenticated principal's identity and
// attributes into the request context. Requests without a principal are
// rejected before they reach any handler.
func PrincipalAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(headerUserID)
		if userID == "" {
			logger.Warn("Request without principal identity",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		attributes := map[string]interface{}{}
		if role := c.GetHeader(headerRole); role != "" {
			attributes["role"] = role
		}
		if department := c.GetHeader(headerDepartment); department != "" {
			attributes["department"] = department
		}
		if location := c.GetHeader(headerLocation); location != "" {
			attributes["location"] = location
		}

		// Extension attributes: X-User-Attr-Clearance becomes "clearance".
		for name, values := range c.Request.Header {
			if !strings.HasPrefix(name, headerAttrPrefix) || len(values) == 0 {
				continue
			}
			key := strings.ToLower(strings.TrimPrefix(name, headerAttrPrefix))
			if key != "" {
				attributes[key] = values[0]
			}
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserAttributes, attributes)

		c.Next()
	}
}

// RequireRole guards administrative routes. The role comes from the
// principal attributes extracted above.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		attributes, exists := c.Get(ContextUserAttributes)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		attrs, ok := attributes.(map[string]interface{})
		if !ok || attrs["role"] != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "message": role + " role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the principal id and attributes stored by
// PrincipalAttributes.
func GetPrincipal(c *gin.Context) (string, map[string]interface{}) {
	userID := c.GetString(ContextUserID)
	attributes, _ := c.Get(ContextUserAttributes)
	attrs, _ := attributes.(map[string]interface{})
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	return userID, attrs
}
