// Package errors 定义应用统一错误码与错误类型
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/weiwangfds/scisign/internal/i18n"
)

// ErrorCode 错误码类型
type ErrorCode int

// 定义错误码常量
const (
	// 通用错误码 (1000-1999)
	ErrSuccess            ErrorCode = 0    // 成功
	ErrInternalServer     ErrorCode = 1000 // 服务器内部错误
	ErrInvalidParams      ErrorCode = 1001 // 参数错误
	ErrUnauthorized       ErrorCode = 1002 // 未授权
	ErrForbidden          ErrorCode = 1003 // 禁止访问
	ErrNotFound           ErrorCode = 1004 // 资源未找到
	ErrServiceUnavailable ErrorCode = 1007 // 服务不可用
	ErrLoginRequired      ErrorCode = 1008 // 需要登录
	ErrPayloadTooLarge    ErrorCode = 1009 // 请求体过大

	// 签名文件相关错误码 (2000-2999)
	ErrSignatureNotFound    ErrorCode = 2000 // 签名文件不存在
	ErrInvalidPath          ErrorCode = 2001 // 路径越出签名目录
	ErrStorageUnavailable   ErrorCode = 2002 // 签名目录不可用
	ErrSignatureDecode      ErrorCode = 2003 // 签名数据解码失败
	ErrSignatureWriteFailed ErrorCode = 2004 // 签名文件写入失败
	ErrInvalidToken         ErrorCode = 2005 // 访问哈希无效
	ErrImageEncode          ErrorCode = 2006 // 图片编码失败
	ErrEntropyUnavailable   ErrorCode = 2007 // 随机源不可用

	// 表单相关错误码 (3000-3999)
	ErrFormNotFound   ErrorCode = 3000 // 表单不存在
	ErrFieldNotFound  ErrorCode = 3001 // 字段不存在
	ErrEntryNotFound  ErrorCode = 3002 // 条目不存在
	ErrFieldNotSigned ErrorCode = 3003 // 字段不是签名字段

	// 镜像相关错误码 (4000-4999)
	ErrMirrorConfigInvalid        ErrorCode = 4000 // 镜像配置无效
	ErrMirrorConnectionFailed     ErrorCode = 4001 // 镜像连接失败
	ErrMirrorUploadFailed         ErrorCode = 4002 // 镜像上传失败
	ErrMirrorDeleteFailed         ErrorCode = 4003 // 镜像删除失败
	ErrMirrorProviderNotSupported ErrorCode = 4004 // 镜像提供商不支持
	ErrMirrorQueueFull            ErrorCode = 4005 // 镜像队列已满

	// 数据库相关错误码 (5000-5999)
	ErrDatabaseConnection ErrorCode = 5000 // 数据库连接错误
	ErrDatabaseQuery      ErrorCode = 5001 // 数据库查询错误
	ErrDatabaseInsert     ErrorCode = 5002 // 数据库插入错误
	ErrDatabaseUpdate     ErrorCode = 5003 // 数据库更新错误
	ErrDatabaseDelete     ErrorCode = 5004 // 数据库删除错误
)

// AppError 应用错误结构体
type AppError struct {
	// 错误码
	Code ErrorCode `json:"code"`
	// 错误消息
	Message string `json:"message"`
	// 详细错误信息
	Details string `json:"details,omitempty"`
	// 原始错误
	OriginalError error `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误，支持errors.Is/errors.As穿透
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// Is 错误码相同即视为同一错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithDetails 返回带详细信息的错误副本
// 预定义错误是共享实例，不能原地修改
func (e *AppError) WithDetails(details string) *AppError {
	c := *e
	c.Details = details
	return &c
}

// WithOriginalError 返回带原始错误的错误副本
func (e *AppError) WithOriginalError(err error) *AppError {
	c := *e
	c.OriginalError = err
	if c.Details == "" && err != nil {
		c.Details = err.Error()
	}
	return &c
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
// 参数:
//   - code: 错误码
//   - message: 错误消息
//   - err: 原始错误
//
// 返回值:
//   - *AppError: 应用错误实例
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := &AppError{
		Code:          code,
		Message:       message,
		OriginalError: err,
	}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// Newf 使用错误码默认消息创建错误，并格式化详细信息
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: GetErrorMessage(code),
		Details: fmt.Sprintf(format, args...),
	}
}

// WrapCode 使用错误码默认消息包装原始错误
func WrapCode(code ErrorCode, err error) *AppError {
	return Wrap(code, GetErrorMessage(code), err)
}

// GetAppError 从错误链中提取应用错误
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf 返回错误链中第一个应用错误的错误码，没有则返回ErrInternalServer
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrSuccess
	}
	if appErr, ok := GetAppError(err); ok {
		return appErr.Code
	}
	return ErrInternalServer
}

// 预定义的常用错误
var (
	ErrInternalServerError  = New(ErrInternalServer, GetErrorMessage(ErrInternalServer))
	ErrInvalidParameters    = New(ErrInvalidParams, GetErrorMessage(ErrInvalidParams))
	ErrUnauthorizedAccess   = New(ErrUnauthorized, GetErrorMessage(ErrUnauthorized))
	ErrResourceNotFound     = New(ErrNotFound, GetErrorMessage(ErrNotFound))
	ErrLoginRequiredError   = New(ErrLoginRequired, GetErrorMessage(ErrLoginRequired))
	ErrPayloadTooLargeError = New(ErrPayloadTooLarge, GetErrorMessage(ErrPayloadTooLarge))

	ErrSignatureNotFoundError  = New(ErrSignatureNotFound, GetErrorMessage(ErrSignatureNotFound))
	ErrInvalidPathError        = New(ErrInvalidPath, GetErrorMessage(ErrInvalidPath))
	ErrStorageUnavailableError = New(ErrStorageUnavailable, GetErrorMessage(ErrStorageUnavailable))
	ErrSignatureDecodeError    = New(ErrSignatureDecode, GetErrorMessage(ErrSignatureDecode))
	ErrInvalidTokenError       = New(ErrInvalidToken, GetErrorMessage(ErrInvalidToken))

	ErrFormNotFoundError   = New(ErrFormNotFound, GetErrorMessage(ErrFormNotFound))
	ErrFieldNotFoundError  = New(ErrFieldNotFound, GetErrorMessage(ErrFieldNotFound))
	ErrEntryNotFoundError  = New(ErrEntryNotFound, GetErrorMessage(ErrEntryNotFound))
	ErrFieldNotSignedError = New(ErrFieldNotSigned, GetErrorMessage(ErrFieldNotSigned))

	ErrMirrorQueueFullError = New(ErrMirrorQueueFull, GetErrorMessage(ErrMirrorQueueFull))
)

// 错误码到i18n键的映射
var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:            "success",
	ErrInternalServer:     "internal_server_error",
	ErrInvalidParams:      "invalid_params",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
	ErrNotFound:           "not_found",
	ErrServiceUnavailable: "service_unavailable",
	ErrLoginRequired:      "login_required",
	ErrPayloadTooLarge:    "payload_too_large",

	ErrSignatureNotFound:    "signature_not_found",
	ErrInvalidPath:          "invalid_path",
	ErrStorageUnavailable:   "storage_unavailable",
	ErrSignatureDecode:      "signature_decode_failed",
	ErrSignatureWriteFailed: "signature_write_failed",
	ErrInvalidToken:         "invalid_token",
	ErrImageEncode:          "image_encode_failed",
	ErrEntropyUnavailable:   "entropy_unavailable",

	ErrFormNotFound:   "form_not_found",
	ErrFieldNotFound:  "field_not_found",
	ErrEntryNotFound:  "entry_not_found",
	ErrFieldNotSigned: "field_not_signature",

	ErrMirrorConfigInvalid:        "mirror_config_invalid",
	ErrMirrorConnectionFailed:     "mirror_connection_failed",
	ErrMirrorUploadFailed:         "mirror_upload_failed",
	ErrMirrorDeleteFailed:         "mirror_delete_failed",
	ErrMirrorProviderNotSupported: "mirror_provider_not_supported",
	ErrMirrorQueueFull:            "mirror_queue_full",

	ErrDatabaseConnection: "database_connection",
	ErrDatabaseQuery:      "database_query",
	ErrDatabaseInsert:     "database_insert",
	ErrDatabaseUpdate:     "database_update",
	ErrDatabaseDelete:     "database_delete",
}

// GetErrorMessage 根据错误码获取错误消息（使用默认语言）
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang 根据错误码和语言获取错误消息
// 参数:
//   - code: 错误码
//   - lang: 语言代码，如zh-CN、en-US
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}
