package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workspace-ai-backend/internal/config"
	"workspace-ai-backend/utils"
)

type AuthMiddleware struct {
	config *config.Config
}

func NewAuthMiddleware(cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{config: cfg}
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(tokenString, a.config.JWTSecret)
		if err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_token", "Invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequireProjectAccess gates routes carrying a :projectId parameter on the
// token's project grants. Must run after RequireAuth.
func (a *AuthMiddleware) RequireProjectAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		if projectID == "" {
			c.Next()
			return
		}

		claimsAny, exists := c.Get("claims")
		if !exists {
			utils.RespondWithUnauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		claims := claimsAny.(*utils.Claims)
		if !claims.HasProject(projectID) {
			utils.RespondWithForbidden(c, "No access to this project")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID returns the authenticated user ID from context, or "".
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}
