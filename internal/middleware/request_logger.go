package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const redacted = "[REDACTED]"

// RequestLogEntry 请求日志条目结构
type RequestLogEntry struct {
	RequestID string            `json:"request_id"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Query     map[string]string `json:"query,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      interface{}       `json:"body,omitempty"`
	ClientIP  string            `json:"client_ip"`

	StatusCode   int         `json:"status_code"`
	ResponseBody interface{} `json:"response_body,omitempty"`
	ResponseSize int         `json:"response_size"`
	DurationMs   int64       `json:"duration_ms"`

	Error string `json:"error,omitempty"`
}

// responseWriter 自定义响应写入器，用于捕获JSON响应体
type responseWriter struct {
	gin.ResponseWriter
	body    *bytes.Buffer
	maxSize int
}

// Write 捕获响应数据，超过上限的部分只计数不缓存
func (w *responseWriter) Write(b []byte) (int, error) {
	if remain := w.maxSize - w.body.Len(); remain > 0 {
		if len(b) < remain {
			remain = len(b)
		}
		w.body.Write(b[:remain])
	}
	return w.ResponseWriter.Write(b)
}

// RequestLoggerConfig 请求日志中间件配置
type RequestLoggerConfig struct {
	Enabled     bool     // 是否启用
	SkipPaths   []string // 跳过记录的路径
	MaxBodySize int      // 记录的最大请求体/响应体大小（字节）
	// SensitiveKeys 查询参数、请求头和JSON字段中需要脱敏的键（不区分大小写）
	SensitiveKeys []string
}

// DefaultRequestLoggerConfig 默认配置
func DefaultRequestLoggerConfig() *RequestLoggerConfig {
	return &RequestLoggerConfig{
		Enabled:       false,
		SkipPaths:     []string{"/health", "/favicon.ico"},
		MaxBodySize:   16 * 1024,
		SensitiveKeys: []string{"hash", "authorization", "cookie", "password", "token", "data_url", "data"},
	}
}

// RequestLogger 创建请求日志记录中间件
// 只记录JSON请求体和JSON响应体，图片等二进制内容只记录大小
func RequestLogger(logger logrus.FieldLogger, cfg *RequestLoggerConfig) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultRequestLoggerConfig()
	}
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	sensitive := make(map[string]struct{}, len(cfg.SensitiveKeys))
	for _, k := range cfg.SensitiveKeys {
		sensitive[strings.ToLower(k)] = struct{}{}
	}

	return func(c *gin.Context) {
		for _, skipPath := range cfg.SkipPaths {
			if c.Request.URL.Path == skipPath {
				c.Next()
				return
			}
		}

		startTime := time.Now()

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
			maxSize:        cfg.MaxBodySize,
		}
		c.Writer = writer

		var requestBody interface{}
		if isJSON(c.ContentType()) && c.Request.Body != nil {
			requestBody = readRequestBody(c, cfg.MaxBodySize, sensitive)
		}

		c.Next()

		entry := &RequestLogEntry{
			RequestID:    c.GetString(RequestIDKey),
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			Query:        redactQuery(c.Request.URL.Query(), sensitive),
			Headers:      redactHeaders(c.Request.Header, sensitive),
			Body:         requestBody,
			ClientIP:     c.ClientIP(),
			StatusCode:   writer.Status(),
			ResponseSize: writer.Size(),
			DurationMs:   time.Since(startTime).Milliseconds(),
		}
		if isJSON(writer.Header().Get("Content-Type")) && writer.body.Len() > 0 {
			entry.ResponseBody = parseJSON(writer.body.Bytes(), sensitive)
		}
		if len(c.Errors) > 0 {
			entry.Error = c.Errors.String()
		}

		logRequestEntry(logger, entry)
	}
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// readRequestBody 读取请求体并重置，以便后续处理器可以读取
func readRequestBody(c *gin.Context, maxSize int, sensitive map[string]struct{}) interface{} {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return map[string]string{"error": "failed to read request body"}
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	if len(body) == 0 {
		return nil
	}
	if len(body) > maxSize {
		return map[string]int{"truncated_size": len(body)}
	}
	return parseJSON(body, sensitive)
}

func parseJSON(body []byte, sensitive map[string]struct{}) interface{} {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return redactJSON(v, sensitive)
}

// redactJSON 递归脱敏JSON对象中的敏感字段
func redactJSON(v interface{}, sensitive map[string]struct{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if _, ok := sensitive[strings.ToLower(k)]; ok {
				t[k] = redacted
				continue
			}
			t[k] = redactJSON(child, sensitive)
		}
		return t
	case []interface{}:
		for i := range t {
			t[i] = redactJSON(t[i], sensitive)
		}
		return t
	default:
		return v
	}
}

func redactQuery(values url.Values, sensitive map[string]struct{}) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if _, ok := sensitive[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = vs[0]
	}
	return out
}

// redactHeaders 提取请求头，只取第一个值
func redactHeaders(headers map[string][]string, sensitive map[string]struct{}) map[string]string {
	out := make(map[string]string, len(headers))
	for k, vs := range headers {
		if len(vs) == 0 {
			continue
		}
		if _, ok := sensitive[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = vs[0]
	}
	return out
}

// logRequestEntry 根据状态码确定日志级别并记录
func logRequestEntry(logger logrus.FieldLogger, entry *RequestLogEntry) {
	fields := logrus.Fields{
		"type":          "request_log",
		"request_id":    entry.RequestID,
		"method":        entry.Method,
		"path":          entry.Path,
		"client_ip":     entry.ClientIP,
		"status_code":   entry.StatusCode,
		"response_size": entry.ResponseSize,
		"duration_ms":   entry.DurationMs,
	}
	if entry.Query != nil {
		fields["query"] = entry.Query
	}
	if len(entry.Headers) > 0 {
		fields["headers"] = entry.Headers
	}
	if entry.Body != nil {
		fields["body"] = entry.Body
	}
	if entry.ResponseBody != nil {
		fields["response_body"] = entry.ResponseBody
	}
	if entry.Error != "" {
		fields["error"] = entry.Error
	}

	l := logger.WithFields(fields)
	switch {
	case entry.StatusCode >= 500:
		l.Error("[REQUEST_LOG]")
	case entry.StatusCode >= 400:
		l.Warn("[REQUEST_LOG]")
	default:
		l.Info("[REQUEST_LOG]")
	}
}
