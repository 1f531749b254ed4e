package mirror

import (
	"context"
	"fmt"
	"io"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/scisign/config"
	"github.com/weiwangfds/scisign/internal/logger"
)

// AliyunProvider 阿里云OSS提供商实现
type AliyunProvider struct {
	client *oss.Client // 阿里云OSS客户端实例
	bucket *oss.Bucket // OSS存储桶实例
	name   string      // 存储桶名称
}

// NewAliyunProvider 创建阿里云OSS提供商实例
// 参数:
//   - cfg: 镜像配置，包含访问密钥、区域、存储桶等
// 返回:
//   - *AliyunProvider: 初始化完成的提供商实例
//   - error: 初始化过程中的错误信息
func NewAliyunProvider(cfg config.MirrorConfig) (*AliyunProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}
	logger.Infof("[阿里云OSS] 初始化提供商, 域名: %s, 存储桶: %s", endpoint, cfg.Bucket)

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		logger.Errorf("[阿里云OSS] 创建客户端失败, 错误: %v", err)
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		logger.Errorf("[阿里云OSS] 连接存储桶失败, 存储桶: %s, 错误: %v", cfg.Bucket, err)
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &AliyunProvider{
		client: client,
		bucket: bucket,
		name:   cfg.Bucket,
	}, nil
}

// Name 实现Provider
func (p *AliyunProvider) Name() string { return "aliyun" }

// Upload 上传签名文件
func (p *AliyunProvider) Upload(_ context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	options := []oss.Option{oss.ContentType(contentType)}
	if size >= 0 {
		options = append(options, oss.ContentLength(size))
	}

	if err := p.bucket.PutObject(objectKey, reader, options...); err != nil {
		return fmt.Errorf("failed to upload file to aliyun oss: %w", err)
	}
	return nil
}

// Delete 删除签名文件，OSS删除不存在的对象同样返回成功
func (p *AliyunProvider) Delete(_ context.Context, objectKey string) error {
	if err := p.bucket.DeleteObject(objectKey); err != nil {
		return fmt.Errorf("failed to delete file from aliyun oss: %w", err)
	}
	return nil
}

// TestConnection 通过获取存储桶信息验证连接
func (p *AliyunProvider) TestConnection(_ context.Context) error {
	info, err := p.client.GetBucketInfo(p.name)
	if err != nil {
		logger.Errorf("[阿里云OSS] 连接测试失败, 存储桶: %s, 错误: %v", p.name, err)
		return fmt.Errorf("failed to test aliyun oss connection: %w", err)
	}

	logger.Infof("[阿里云OSS] 连接测试成功, 存储桶: %s, 位置: %s", p.name, info.BucketInfo.Location)
	return nil
}
