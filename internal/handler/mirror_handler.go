package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/scisign/internal/database"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
	"github.com/weiwangfds/scisign/internal/response"
)

// MirrorLogReader 镜像日志查询
type MirrorLogReader interface {
	RecentLogs(ctx context.Context, status string, limit int) ([]database.MirrorLog, error)
}

// ConnectionTester 云存储连接测试
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// MirrorHandler 镜像状态处理器
type MirrorHandler struct {
	logs     MirrorLogReader
	provider ConnectionTester
}

// NewMirrorHandler 创建镜像处理器
func NewMirrorHandler(logs MirrorLogReader, provider ConnectionTester) *MirrorHandler {
	return &MirrorHandler{
		logs:     logs,
		provider: provider,
	}
}

// ListLogs 查询镜像日志
// @Summary 最近的镜像同步日志
// @Tags 镜像
// @Produce json
// @Security BearerAuth
// @Param status query string false "success或failed"
// @Param limit query int false "返回条数，默认50"
// @Success 200 {object} response.Response{data=[]database.MirrorLog}
// @Router /api/v1/mirror/logs [get]
func (h *MirrorHandler) ListLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.logs.RecentLogs(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, logs)
}

// TestConnection 测试云存储连接
// @Summary 测试镜像存储连接
// @Tags 镜像
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/mirror/test [post]
func (h *MirrorHandler) TestConnection(c *gin.Context) {
	if err := h.provider.TestConnection(c.Request.Context()); err != nil {
		response.FromError(c, apperrors.WrapCode(apperrors.ErrMirrorConnectionFailed, err))
		return
	}
	response.SuccessWithMessage(c, "connection ok", nil)
}
