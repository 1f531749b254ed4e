package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"github.com/weiwangfds/scisign/internal/response"
	"github.com/weiwangfds/scisign/internal/service/entry"
	"github.com/weiwangfds/scisign/internal/service/signature"
)

// SignatureRequest 重新签名请求
type SignatureRequest struct {
	Data string `json:"data" binding:"required"`
}

// StatusRequest 修改条目状态请求
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active spam trash"`
}

// SignatureView 条目中签名字段的展示形式
type SignatureView struct {
	Filename       string `json:"filename"`
	URL            string `json:"url"`
	TransparentURL string `json:"transparent_url"`
	DownloadURL    string `json:"download_url"`
}

// EntryResponse 条目详情
type EntryResponse struct {
	ID         uint                     `json:"id"`
	FormID     uint                     `json:"form_id"`
	Status     string                   `json:"status"`
	SourceIP   string                   `json:"source_ip,omitempty"`
	Values     map[string]string        `json:"values"`
	Signatures map[string]SignatureView `json:"signatures"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

// EntryHandler 条目处理器
type EntryHandler struct {
	entries entry.EntryService
	capture *signature.CaptureService
	urls    *signature.URLBuilder
	maxBody int64
}

// NewEntryHandler 创建条目处理器实例
// maxBody限制重新签名的请求体大小，<=0不限制
func NewEntryHandler(entries entry.EntryService, capture *signature.CaptureService, urls *signature.URLBuilder, maxBody int64) *EntryHandler {
	return &EntryHandler{
		entries: entries,
		capture: capture,
		urls:    urls,
		maxBody: maxBody,
	}
}

// GetEntry 获取条目
// @Summary 获取条目详情
// @Description 签名字段以带hash的访问URL返回
// @Tags 条目
// @Produce json
// @Security BearerAuth
// @Param id path int true "条目ID"
// @Success 200 {object} response.Response{data=EntryResponse}
// @Failure 404 {object} response.Response
// @Router /api/v1/entries/{id} [get]
func (h *EntryHandler) GetEntry(c *gin.Context) {
	id, ok := entryIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	e, err := h.entries.GetEntry(ctx, id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	sigs, err := h.entries.SignatureValues(ctx, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	resp := EntryResponse{
		ID:         e.ID,
		FormID:     e.FormID,
		Status:     e.Status,
		SourceIP:   e.SourceIP,
		Values:     make(map[string]string, len(e.Values)),
		Signatures: make(map[string]SignatureView, len(sigs)),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	for _, v := range e.Values {
		resp.Values[v.MetaKey] = v.MetaValue
	}
	formID := int(e.FormID)
	for fieldID, filename := range sigs {
		resp.Signatures[fieldID] = SignatureView{
			Filename:       filename,
			URL:            h.urls.Build(filename, formID, fieldID, false, false),
			TransparentURL: h.urls.Build(filename, formID, fieldID, true, false),
			DownloadURL:    h.urls.Build(filename, formID, fieldID, false, true),
		}
	}
	response.Success(c, resp)
}

// SignAgain 重新签名
// @Summary 替换条目字段的签名
// @Description 保存新签名并删除旧文件，字段始终只引用一个文件
// @Tags 条目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "条目ID"
// @Param field_id path string true "字段ID"
// @Param body body SignatureRequest true "base64签名数据"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 413 {object} response.Response
// @Router /api/v1/entries/{id}/signatures/{field_id} [put]
func (h *EntryHandler) SignAgain(c *gin.Context) {
	id, ok := entryIDParam(c)
	if !ok {
		return
	}
	var req SignatureRequest
	if !bindLimitedJSON(c, h.maxBody, &req) {
		return
	}

	fieldID := c.Param("field_id")
	filename, err := h.capture.SignAgain(c.Request.Context(), id, fieldID, req.Data)
	if err != nil {
		response.FromError(c, err)
		return
	}

	formID, err := h.entries.EntryFormID(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, SignatureView{
		Filename:       filename,
		URL:            h.urls.Build(filename, formID, fieldID, false, false),
		TransparentURL: h.urls.Build(filename, formID, fieldID, true, false),
		DownloadURL:    h.urls.Build(filename, formID, fieldID, false, true),
	})
}

// UpdateStatus 修改条目状态
// @Summary 修改条目状态
// @Description 状态用于批量删除时筛选条目
// @Tags 条目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "条目ID"
// @Param body body StatusRequest true "新状态（active、spam、trash）"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/entries/{id}/status [put]
func (h *EntryHandler) UpdateStatus(c *gin.Context) {
	id, ok := entryIDParam(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.FromError(c, apperrors.ErrInvalidParameters.WithDetails(err.Error()))
		return
	}

	if err := h.entries.UpdateEntryStatus(c.Request.Context(), id, req.Status); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "status": req.Status})
}

// DeleteSignature 删除签名
// @Summary 删除条目字段的签名文件
// @Tags 条目
// @Produce json
// @Security BearerAuth
// @Param id path int true "条目ID"
// @Param field_id path string true "字段ID"
// @Success 200 {object} response.Response
// @Router /api/v1/entries/{id}/signatures/{field_id} [delete]
func (h *EntryHandler) DeleteSignature(c *gin.Context) {
	id, ok := entryIDParam(c)
	if !ok {
		return
	}

	if err := h.capture.DeleteSignatureForField(c.Request.Context(), id, c.Param("field_id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "signature deleted", nil)
}

// DeleteEntry 删除条目
// @Summary 删除条目及其签名文件
// @Tags 条目
// @Produce json
// @Security BearerAuth
// @Param id path int true "条目ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/entries/{id} [delete]
func (h *EntryHandler) DeleteEntry(c *gin.Context) {
	id, ok := entryIDParam(c)
	if !ok {
		return
	}

	if err := h.capture.DeleteEntry(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.SuccessWithMessage(c, "entry deleted", nil)
}
