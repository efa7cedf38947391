package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
)

// Session is stored as JSON under "Token:<token>" by the auth service.
type Session struct {
	OrganizationId string `json:"organization_id"`
	UserId         int    `json:"user_id"`
	Username       string `json:"username"`
	IsAdmin        bool   `json:"is_admin"`
}

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var session Session
		exists, err := config.GetRedisObject("Token:"+token, &session)
		if err != nil {
			config.LogError(config.GetLogger(), "sessionMiddleware.go", "SessionMiddleware", "reading session", nil, err)
		}
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, session.Username)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		if session.OrganizationId != "" {
			ctx = utils.SetOrganizationIdInContext(ctx, session.OrganizationId)
		}
		if session.IsAdmin {
			ctx = utils.SetIsAdminInContext(ctx, true)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireOrganization rejects requests whose session carries no organization.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgId, ok := utils.GetOrganizationIdFromContext(c.Request.Context())
		if !ok || orgId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin guards internal operations endpoints.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context()); !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}
