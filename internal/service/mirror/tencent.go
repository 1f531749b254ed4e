package mirror

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/scisign/config"
)

// TencentProvider 腾讯云COS提供商实现
type TencentProvider struct {
	client *cos.Client
}

// NewTencentProvider 创建腾讯云COS提供商实例
func NewTencentProvider(cfg config.MirrorConfig) (*TencentProvider, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})

	return &TencentProvider{client: client}, nil
}

// Name 实现Provider
func (p *TencentProvider) Name() string { return "tencent" }

// Upload 上传文件到腾讯云COS
func (p *TencentProvider) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	header := &cos.ObjectPutHeaderOptions{ContentType: contentType}
	if size >= 0 {
		header.ContentLength = size
	}

	_, err := p.client.Object.Put(ctx, objectKey, reader, &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: header,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to tencent cos: %w", err)
	}
	return nil
}

// Delete 删除腾讯云COS文件
func (p *TencentProvider) Delete(ctx context.Context, objectKey string) error {
	_, err := p.client.Object.Delete(ctx, objectKey)
	if err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("failed to delete file from tencent cos: %w", err)
	}
	return nil
}

// TestConnection 测试连接
func (p *TencentProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to test tencent cos connection: %w", err)
	}
	return nil
}
