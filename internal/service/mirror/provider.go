// Package mirror 把签名目录中的PNG文件复制到云存储
// 支持阿里云OSS、腾讯云COS和七牛云Kodo；复制在后台进行，不影响请求处理
package mirror

import (
	"context"
	"io"

	"github.com/weiwangfds/scisign/config"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

// Provider 云存储提供商接口
type Provider interface {
	// Name 提供商名称：aliyun、tencent、qiniu
	Name() string
	// Upload 上传对象，size未知时传-1
	Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	// Delete 删除对象，对象不存在不视为错误
	Delete(ctx context.Context, objectKey string) error
	// TestConnection 测试存储桶是否可访问
	TestConnection(ctx context.Context) error
}

// NewProvider 根据配置创建提供商实例
func NewProvider(cfg config.MirrorConfig) (Provider, error) {
	if cfg.Bucket == "" {
		return nil, apperrors.Newf(apperrors.ErrMirrorConfigInvalid, "bucket is required")
	}

	switch cfg.Provider {
	case "aliyun":
		return NewAliyunProvider(cfg)
	case "tencent":
		return NewTencentProvider(cfg)
	case "qiniu":
		return NewQiniuProvider(cfg)
	default:
		return nil, apperrors.Newf(apperrors.ErrMirrorProviderNotSupported, "provider %q", cfg.Provider)
	}
}
