package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/scisign/internal/auth"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"github.com/weiwangfds/scisign/internal/response"
)

// UserIDKey gin上下文中已认证用户的键
const UserIDKey = "user_id"

// TokenVerifier 校验令牌并返回用户ID
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Identify 解析Authorization头或Cookie中的令牌
// 令牌无效时按匿名请求继续处理，是否放行由后续处理器决定
func Identify(verifier TokenVerifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && cookieName != "" {
			token, _ = c.Cookie(cookieName)
		}
		if token != "" {
			if userID, err := verifier.Verify(token); err == nil {
				c.Set(UserIDKey, userID)
				c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), userID))
			}
		}
		c.Next()
	}
}

// RequireAuth 要求已登录，否则返回401
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(UserIDKey) == "" {
			response.FromError(c, apperrors.ErrUnauthorizedAccess)
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
