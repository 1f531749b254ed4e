package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"github.com/weiwangfds/scisign/internal/i18n"
)

// Response 统一返回值结构体
type Response struct {
	// 状态码，0表示成功，非0表示失败
	Code int `json:"code"`
	// 响应消息
	Message string `json:"message"`
	// 响应数据
	Data interface{} `json:"data,omitempty"`
	// 请求ID，用于链路追踪
	RequestID string `json:"request_id,omitempty"`
	// 时间戳
	Timestamp int64 `json:"timestamp"`
}

// now 当前时间，测试中可替换
var now = time.Now

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, 0, "success", data)
}

// Created 201成功响应
func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, 0, "success", data)
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, 0, message, data)
}

// InternalServerError 500错误响应
func InternalServerError(c *gin.Context, message string) {
	write(c, http.StatusInternalServerError, int(apperrors.ErrInternalServer), message, nil)
}

// FromError 把服务层错误转换为HTTP响应
// AppError按错误码映射HTTP状态，消息按Accept-Language翻译；其它错误一律500且不暴露细节
func FromError(c *gin.Context, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		c.Error(err)
		InternalServerError(c, apperrors.GetErrorMessageWithLang(apperrors.ErrInternalServer, lang(c)))
		return
	}
	status := StatusOf(appErr.Code)
	if status >= http.StatusInternalServerError {
		c.Error(err)
	}
	write(c, status, int(appErr.Code), apperrors.GetErrorMessageWithLang(appErr.Code, lang(c)), nil)
}

// StatusOf 错误码到HTTP状态码的映射
func StatusOf(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrInvalidParams, apperrors.ErrSignatureDecode, apperrors.ErrFieldNotSigned:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized, apperrors.ErrInvalidToken, apperrors.ErrLoginRequired:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.ErrNotFound, apperrors.ErrSignatureNotFound, apperrors.ErrInvalidPath,
		apperrors.ErrFormNotFound, apperrors.ErrFieldNotFound, apperrors.ErrEntryNotFound:
		return http.StatusNotFound
	case apperrors.ErrStorageUnavailable, apperrors.ErrServiceUnavailable,
		apperrors.ErrMirrorQueueFull, apperrors.ErrMirrorConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func write(c *gin.Context, status, code int, message string, data interface{}) {
	c.JSON(status, Response{
		Code:      code,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: now().Unix(),
	})
}

func lang(c *gin.Context) string {
	return i18n.GetInstance().Negotiate(c.GetHeader("Accept-Language"))
}

// getRequestID 从gin上下文中获取请求ID
func getRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return ""
}
