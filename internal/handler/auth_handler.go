package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/scisign/internal/auth"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"github.com/weiwangfds/scisign/internal/response"
)

// LoginRequest 管理员登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse 登录成功返回的令牌
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthHandler 管理员认证处理器
type AuthHandler struct {
	authenticator *auth.Authenticator
	cookieName    string
	secureCookie  bool
}

// NewAuthHandler 创建认证处理器
// cookieName非空时同时把令牌写入Cookie，签名图片请求可以据此识别登录状态
func NewAuthHandler(authenticator *auth.Authenticator, cookieName string, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		cookieName:    cookieName,
		secureCookie:  secureCookie,
	}
}

// Token 签发令牌
// @Summary 管理员登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param body body LoginRequest true "凭据"
// @Success 200 {object} response.Response{data=TokenResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.ErrInvalidParameters.WithDetails(err.Error()))
		return
	}

	token, expires, err := h.authenticator.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.FromError(c, apperrors.ErrUnauthorizedAccess)
			return
		}
		response.FromError(c, apperrors.WrapCode(apperrors.ErrInternalServer, err))
		return
	}

	if h.cookieName != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookieName, token, int(time.Until(expires).Seconds()), "/", "", h.secureCookie, true)
	}
	response.Success(c, TokenResponse{Token: token, ExpiresAt: expires})
}
