// Package handler 提供HTTP处理器
// 包含签名图片访问、表单与条目管理、管理员登录和镜像日志查询等接口
package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"github.com/weiwangfds/scisign/internal/response"
	"github.com/weiwangfds/scisign/internal/service/signature"
)

// SignatureHandler 签名图片访问处理器
type SignatureHandler struct {
	images   *signature.ImageService
	queryVar string
	loginURL string
	logger   logrus.FieldLogger
}

// NewSignatureHandler 创建签名图片处理器
// 参数:
//   images - 图片服务
//   queryVar - 携带文件名的查询参数名
//   loginURL - 策略要求登录时的跳转地址
//   logger - 日志实例
func NewSignatureHandler(images *signature.ImageService, queryVar, loginURL string, logger logrus.FieldLogger) *SignatureHandler {
	if queryVar == "" {
		queryVar = signature.DefaultQueryVar
	}
	return &SignatureHandler{
		images:   images,
		queryVar: queryVar,
		loginURL: loginURL,
		logger:   logger,
	}
}

// Serve 输出签名图片
// @Summary 获取签名图片
// @Description 校验hash后输出PNG；t=1保留透明背景，dl=1以附件形式下载
// @Tags 签名
// @Produce png
// @Param gf-signature query string true "签名文件名"
// @Param form-id query int false "表单ID"
// @Param field-id query string false "字段ID"
// @Param hash query string false "访问哈希"
// @Param t query int false "保留透明背景"
// @Param dl query int false "下载"
// @Success 200 {file} binary "PNG图片"
// @Failure 302 "需要登录"
// @Failure 401 "哈希无效"
// @Failure 404 {object} response.Response "签名不存在"
// @Router /signature [get]
func (h *SignatureHandler) Serve(c *gin.Context) {
	params := signature.ParseURLParams(c.Request.URL.Query(), h.queryVar)
	if params.Filename == "" {
		// 没有文件名的请求不是签名请求，不输出任何内容
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	img, err := h.images.Render(c.Request.Context(), params)
	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.ErrLoginRequired:
			c.Redirect(http.StatusFound, h.loginRedirect(c))
		case apperrors.ErrUnauthorized, apperrors.ErrInvalidToken:
			c.AbortWithStatus(http.StatusUnauthorized)
		default:
			response.FromError(c, apperrors.ErrSignatureNotFoundError)
		}
		return
	}

	disposition := "inline"
	if img.Download {
		disposition = "attachment"
	}

	h.noCache(c)
	c.Header("X-Robots-Tag", "noindex")
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, img.Filename+signature.Ext))
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Content-Length", strconv.Itoa(len(img.Data)))
	c.Data(http.StatusOK, "image/png", img.Data)
}

func (h *SignatureHandler) noCache(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, must-revalidate, max-age=0, no-store, private")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "Wed, 11 Jan 1984 05:00:00 GMT")
}

// loginRedirect 登录地址，redirect_to指回当前请求
func (h *SignatureHandler) loginRedirect(c *gin.Context) string {
	u, err := url.Parse(h.loginURL)
	if err != nil {
		h.logger.WithError(err).Warn("invalid login url")
		return "/"
	}
	q := u.Query()
	q.Set("redirect_to", c.Request.URL.RequestURI())
	u.RawQuery = q.Encode()
	return u.String()
}
