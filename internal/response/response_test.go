package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(acceptLanguage string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if acceptLanguage != "" {
		c.Request.Header.Set("Accept-Language", acceptLanguage)
	}
	c.Set("request_id", "req-1")
	return c, w
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		code apperrors.ErrorCode
		want int
	}{
		{apperrors.ErrInvalidParams, http.StatusBadRequest},
		{apperrors.ErrSignatureDecode, http.StatusBadRequest},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{apperrors.ErrInvalidToken, http.StatusUnauthorized},
		{apperrors.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{apperrors.ErrSignatureNotFound, http.StatusNotFound},
		{apperrors.ErrInvalidPath, http.StatusNotFound},
		{apperrors.ErrEntryNotFound, http.StatusNotFound},
		{apperrors.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{apperrors.ErrMirrorConnectionFailed, http.StatusServiceUnavailable},
		{apperrors.ErrDatabaseQuery, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.code), "code %d", tt.code)
	}
}

func TestFromError(t *testing.T) {
	defer func(orig func() time.Time) { now = orig }(now)
	now = func() time.Time { return time.Unix(1700000000, 0) }

	c, w := newContext("")
	FromError(c, apperrors.Wrap(apperrors.ErrEntryNotFound, "条目不存在", errors.New("record not found")))

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int(apperrors.ErrEntryNotFound), resp.Code)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, int64(1700000000), resp.Timestamp)
	// 原始错误不暴露给客户端
	assert.NotContains(t, w.Body.String(), "record not found")
	assert.Empty(t, c.Errors)
}

func TestFromErrorPlainError(t *testing.T) {
	c, w := newContext("")
	FromError(c, errors.New("disk on fire"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk on fire")
	assert.Len(t, c.Errors, 1)
}

func TestFromErrorTranslatesMessage(t *testing.T) {
	en, w := newContext("en-US")
	FromError(en, apperrors.ErrSignatureNotFoundError)
	var enResp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &enResp))

	zh, w := newContext("zh-CN,zh;q=0.9")
	FromError(zh, apperrors.ErrSignatureNotFoundError)
	var zhResp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zhResp))

	assert.NotEmpty(t, enResp.Message)
	assert.NotEmpty(t, zhResp.Message)
	assert.NotEqual(t, enResp.Message, zhResp.Message)
}
