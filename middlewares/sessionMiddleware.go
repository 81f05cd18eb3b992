package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/vmgroup/dealer_backend/config"
	"bitbucket.org/vmgroup/dealer_backend/models"
	"bitbucket.org/vmgroup/dealer_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware authenticates a request from either a Redis-backed
// session token (mobile clients) or a JWT bearer token (internal tooling).
// Requests without credentials pass through; the handlers that need a user
// check the context themselves.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token != "" {
			username, exists, err := config.GetRedisValue("Token:" + token)
			if err != nil || !exists {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}

			ctx := utils.SetTokenInContext(c.Request.Context(), token)
			ctx = utils.SetUsernameInContext(ctx, username)

			var user models.User
			found, err := config.GetRedisObject("User:"+username, &user)
			if err != nil || !found {
				db := config.GetDB()
				if db != nil {
					if dbErr := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; dbErr == nil {
						found = true
					}
				}
			}
			if found {
				ctx = utils.SetUserIdInContext(ctx, user.ID)
				ctx = utils.SetUserNameInContext(ctx, user.DisplayName)
				ctx = utils.SetBranchCodeInContext(ctx, user.BranchCode)
				ctx = utils.SetProvinceInContext(ctx, user.Province)
				ctx = utils.SetIsAdminInContext(ctx, user.GroupName == models.GroupAdmin)
			}

			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		// JWT fallback for internal tooling and tests.
		authHeader := c.Request.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			raw := strings.TrimPrefix(authHeader, "Bearer ")
			parsed, err := utils.JwtValidate(raw)
			if err != nil || !parsed.Valid {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}
			if claims, ok := parsed.Claims.(*utils.JwtCustomClaim); ok {
				ctx := utils.SetUserIdInContext(c.Request.Context(), claims.ID)
				ctx = utils.SetIsAdminInContext(ctx, claims.Role == models.GroupAdmin)
				c.Request = c.Request.WithContext(ctx)
			}
		}

		c.Next()
	}
}
