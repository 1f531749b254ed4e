package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"github.com/weiwangfds/scisign/internal/response"
	"github.com/weiwangfds/scisign/internal/service/entry"
	"github.com/weiwangfds/scisign/internal/service/signature"
)

// SubmitEntryRequest 提交条目请求
// 签名字段的值是base64编码的PNG，可以带data:image/png;base64,前缀
type SubmitEntryRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

// FormHandler 表单处理器
type FormHandler struct {
	entries entry.EntryService
	capture *signature.CaptureService
	maxBody int64
}

// NewFormHandler 创建表单处理器实例
// maxBody限制匿名提交的请求体大小，<=0不限制
func NewFormHandler(entries entry.EntryService, capture *signature.CaptureService, maxBody int64) *FormHandler {
	return &FormHandler{
		entries: entries,
		capture: capture,
		maxBody: maxBody,
	}
}

// CreateForm 创建表单
// @Summary 创建表单
// @Tags 表单
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param form body entry.CreateFormRequest true "表单定义"
// @Success 201 {object} response.Response{data=database.Form}
// @Failure 400 {object} response.Response
// @Router /api/v1/forms [post]
func (h *FormHandler) CreateForm(c *gin.Context) {
	var req entry.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.ErrInvalidParameters.WithDetails(err.Error()))
		return
	}

	form, err := h.entries.CreateForm(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, form)
}

// GetForm 获取表单
// @Summary 获取表单及字段
// @Tags 表单
// @Produce json
// @Security BearerAuth
// @Param id path int true "表单ID"
// @Success 200 {object} response.Response{data=database.Form}
// @Failure 404 {object} response.Response
// @Router /api/v1/forms/{id} [get]
func (h *FormHandler) GetForm(c *gin.Context) {
	formID, ok := formIDParam(c)
	if !ok {
		return
	}

	form, err := h.entries.GetForm(c.Request.Context(), formID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, form)
}

// SubmitEntry 提交条目
// @Summary 提交表单条目
// @Description 签名字段的base64数据保存为PNG文件，条目中记录文件名
// @Tags 表单
// @Accept json
// @Produce json
// @Param id path int true "表单ID"
// @Param entry body SubmitEntryRequest true "字段值"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 413 {object} response.Response
// @Router /api/v1/forms/{id}/entries [post]
func (h *FormHandler) SubmitEntry(c *gin.Context) {
	formID, ok := formIDParam(c)
	if !ok {
		return
	}
	var req SubmitEntryRequest
	if !bindLimitedJSON(c, h.maxBody, &req) {
		return
	}

	// 先确认表单存在，避免为不存在的表单保存签名文件
	if _, err := h.entries.GetForm(c.Request.Context(), formID); err != nil {
		response.FromError(c, err)
		return
	}

	id, err := h.capture.SubmitEntry(c.Request.Context(), formID, req.Values, c.ClientIP())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, gin.H{"entry_id": id})
}

// DeleteEntries 批量删除条目
// @Summary 批量删除表单条目
// @Description 删除条目及其签名文件，status为空时删除全部条目
// @Tags 表单
// @Produce json
// @Security BearerAuth
// @Param id path int true "表单ID"
// @Param status query string false "条目状态（active、spam、trash）"
// @Success 200 {object} response.Response
// @Router /api/v1/forms/{id}/entries [delete]
func (h *FormHandler) DeleteEntries(c *gin.Context) {
	formID, ok := formIDParam(c)
	if !ok {
		return
	}

	deleted, err := h.capture.DeleteEntries(c.Request.Context(), formID, c.Query("status"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}

// bindLimitedJSON 限制请求体大小后绑定JSON，失败时写入错误响应
func bindLimitedJSON(c *gin.Context, limit int64, obj interface{}) bool {
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.FromError(c, apperrors.ErrPayloadTooLargeError.WithDetails(
				"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes"))
			return false
		}
		response.FromError(c, apperrors.ErrInvalidParameters.WithDetails(err.Error()))
		return false
	}
	return true
}

func formIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		response.FromError(c, apperrors.ErrInvalidParameters.WithDetails("invalid form id"))
		return 0, false
	}
	return id, true
}

func entryIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.FromError(c, apperrors.ErrInvalidParameters.WithDetails("invalid entry id"))
		return 0, false
	}
	return uint(id), true
}
