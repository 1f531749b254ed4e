package mirror

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/scisign/config"
	"github.com/weiwangfds/scisign/internal/logger"
)

// QiniuProvider 七牛云Kodo提供商实现
type QiniuProvider struct {
	mac        *qbox.Mac       // 七牛云认证凭证
	bucketName string          // 存储桶名称
	region     *storage.Region // 存储区域信息
}

// NewQiniuProvider 创建七牛云Kodo提供商实例
// 区域信息通过存储桶查询获得，需要网络访问
func NewQiniuProvider(cfg config.MirrorConfig) (*QiniuProvider, error) {
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)

	region, err := storage.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		logger.Errorf("获取七牛云区域失败: 存储桶=%s, 错误=%v", cfg.Bucket, err)
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}
	logger.Infof("创建七牛云Kodo提供商: 存储桶=%s, 区域=%s", cfg.Bucket, region.RsHost)

	return &QiniuProvider{
		mac:        mac,
		bucketName: cfg.Bucket,
		region:     region,
	}, nil
}

// Name 实现Provider
func (p *QiniuProvider) Name() string { return "qiniu" }

func (p *QiniuProvider) bucketManager() *storage.BucketManager {
	return storage.NewBucketManager(p.mac, &storage.Config{
		Region:   p.region,
		UseHTTPS: true,
	})
}

// Upload 表单上传，覆盖同名对象
func (p *QiniuProvider) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	putPolicy := storage.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", p.bucketName, objectKey),
	}
	upToken := putPolicy.UploadToken(p.mac)

	uploader := storage.NewFormUploader(&storage.Config{
		Region:        p.region,
		UseHTTPS:      true,
		UseCdnDomains: false,
	})
	ret := storage.PutRet{}
	extra := storage.PutExtra{MimeType: contentType}

	if err := uploader.Put(ctx, &ret, upToken, objectKey, reader, size, &extra); err != nil {
		return fmt.Errorf("failed to upload file to qiniu kodo: %w", err)
	}
	return nil
}

// Delete 删除七牛云Kodo文件
func (p *QiniuProvider) Delete(_ context.Context, objectKey string) error {
	err := p.bucketManager().Delete(p.bucketName, objectKey)
	if err != nil && !strings.Contains(err.Error(), "no such file or directory") {
		return fmt.Errorf("failed to delete file from qiniu kodo: %w", err)
	}
	return nil
}

// TestConnection 列出一个对象来验证认证与存储桶
func (p *QiniuProvider) TestConnection(_ context.Context) error {
	_, _, _, _, err := p.bucketManager().ListFiles(p.bucketName, "", "", "", 1)
	if err != nil {
		logger.Errorf("七牛云Kodo连接测试失败: 存储桶=%s, 错误=%v", p.bucketName, err)
		return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
	}
	return nil
}
