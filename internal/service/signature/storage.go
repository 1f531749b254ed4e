package signature

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // 画布组件可能提交GIF
	_ "image/jpeg" // 或JPEG，保存时统一转为PNG
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

const (
	// Ext 签名文件扩展名
	Ext = ".png"
	// IndexMarker 阻止目录列表的标记文件
	IndexMarker = "index.html"
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// Store 签名文件存储
type Store interface {
	// Save 解码图片并以PNG写入签名目录，返回不含扩展名的文件名
	Save(data []byte, prefix string) (string, error)
	// Delete 删除签名文件，文件不存在视为成功
	Delete(filename string) error
	// Resolve 返回签名文件的绝对路径，路径越出签名目录时返回ErrInvalidPath
	Resolve(filename string) (string, error)
	// Load 读取签名文件内容，必须是PNG
	Load(filename string) ([]byte, error)
}

// Observer 接收签名文件写入与删除通知
type Observer interface {
	SignatureSaved(filename, path string)
	SignatureDeleted(filename string)
}

// LocalStore 本地目录存储
// 所有签名文件都是root的直接子文件；每次读写前都做路径包含检查
type LocalStore struct {
	root      string
	maxPixels int
	allocator *Allocator
	logger    logrus.FieldLogger

	mu        sync.RWMutex
	observers []Observer
}

// NewLocalStore 创建本地存储
// 参数:
//   - root: 签名目录，不存在时会尝试创建
//   - maxPixels: 允许保存的最大像素数，<=0表示不限制
//   - logger: 日志实例
//
// 目录无法创建时不会失败，Save会返回ErrStorageUnavailable
func NewLocalStore(root string, maxPixels int, logger logrus.FieldLogger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve signature root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		logger.WithError(err).WithField("root", abs).Warn("signature root is not available yet")
	}
	// 规范化符号链接，保证与Clean后的路径比较时一致
	if canonical, err := filepath.EvalSymlinks(abs); err == nil {
		abs = canonical
	}

	return &LocalStore{
		root:      filepath.Clean(abs),
		maxPixels: maxPixels,
		allocator: NewAllocator(),
		logger:    logger,
	}, nil
}

// Root 返回规范化后的签名目录
func (s *LocalStore) Root() string {
	return s.root
}

// AddObserver 注册写入/删除通知
func (s *LocalStore) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Resolve 路径包含检查
// 清理root/filename.png后，父目录必须恰好是root；兼容旧记录中带.png后缀的文件名
func (s *LocalStore) Resolve(filename string) (string, error) {
	name := strings.TrimSuffix(filename, Ext)
	if name == "" || strings.ContainsRune(name, 0) {
		return "", apperrors.ErrInvalidPathError
	}

	p := filepath.Clean(s.root + string(filepath.Separator) + name + Ext)
	if filepath.Dir(p) != s.root || filepath.Base(p) != name+Ext {
		return "", apperrors.ErrInvalidPathError.WithDetails(fmt.Sprintf("%q escapes signature root", filename))
	}
	return p, nil
}

// Save 保存签名
// 输入必须能解码为图片（PNG/JPEG/GIF），统一重新编码为PNG，先写临时文件再原子重命名
func (s *LocalStore) Save(data []byte, prefix string) (string, error) {
	if !prefixPattern.MatchString(prefix) {
		return "", apperrors.ErrInvalidPathError.WithDetails(fmt.Sprintf("invalid filename prefix %q", prefix))
	}

	img, err := s.decode(data)
	if err != nil {
		return "", err
	}

	if err := s.ensureRoot(); err != nil {
		return "", err
	}

	id, err := s.allocator.Allocate()
	if err != nil {
		return "", err
	}
	filename := prefix + id
	dst, err := s.Resolve(filename)
	if err != nil {
		return "", err
	}

	if err := s.writeAtomic(dst, img); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{"filename": filename, "size": len(data)}).Debug("signature saved")
	s.notify(func(o Observer) { o.SignatureSaved(filename, dst) })
	return filename, nil
}

// decode 解码上传图片，超出像素上限视为解码失败
func (s *LocalStore) decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, apperrors.ErrSignatureDecodeError.WithDetails("empty image data")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.ErrSignatureDecodeError.WithOriginalError(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, apperrors.ErrSignatureDecodeError.WithDetails("empty image bounds")
	}
	if s.maxPixels > 0 && cfg.Width*cfg.Height > s.maxPixels {
		return nil, apperrors.ErrSignatureDecodeError.WithDetails(
			fmt.Sprintf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, s.maxPixels))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.ErrSignatureDecodeError.WithOriginalError(err)
	}
	return img, nil
}

// ensureRoot 确保签名目录与标记文件存在
func (s *LocalStore) ensureRoot() error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return apperrors.ErrStorageUnavailableError.WithOriginalError(err)
	}
	marker := filepath.Join(s.root, IndexMarker)
	f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrExist):
		return nil
	default:
		return apperrors.ErrStorageUnavailableError.WithOriginalError(err)
	}
}

func (s *LocalStore) writeAtomic(dst string, img image.Image) error {
	tmp, err := os.CreateTemp(s.root, ".signature-*.tmp")
	if err != nil {
		return apperrors.ErrStorageUnavailableError.WithOriginalError(err)
	}
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmp.Name())
		return apperrors.WrapCode(apperrors.ErrSignatureWriteFailed, err)
	}

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(tmp, img); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return apperrors.WrapCode(apperrors.ErrSignatureWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return apperrors.WrapCode(apperrors.ErrSignatureWriteFailed, err)
	}
	return nil
}

// Delete 删除签名文件
// 路径检查失败时不做任何文件系统操作；文件不存在返回nil
func (s *LocalStore) Delete(filename string) error {
	p, err := s.Resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return apperrors.WrapCode(apperrors.ErrStorageUnavailable, err)
	}

	name := strings.TrimSuffix(filename, Ext)
	s.logger.WithField("filename", name).Debug("signature deleted")
	s.notify(func(o Observer) { o.SignatureDeleted(name) })
	return nil
}

// Load 读取签名文件
// 非普通文件（包括符号链接）、读取失败或内容不是PNG都返回ErrSignatureNotFound
func (s *LocalStore) Load(filename string) ([]byte, error) {
	p, err := s.Resolve(filename)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(p)
	if err != nil {
		return nil, apperrors.ErrSignatureNotFoundError.WithOriginalError(err)
	}
	if !info.Mode().IsRegular() {
		return nil, apperrors.ErrSignatureNotFoundError.WithDetails("not a regular file")
	}

	data, err := os.ReadFile(p)
	if err != nil {
		// 与删除并发时文件可能已经不存在
		return nil, apperrors.ErrSignatureNotFoundError.WithOriginalError(err)
	}
	if !mimetype.Detect(data).Is("image/png") {
		return nil, apperrors.ErrSignatureNotFoundError.WithDetails("content is not image/png")
	}
	return data, nil
}

func (s *LocalStore) notify(fn func(Observer)) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()
	for _, o := range observers {
		fn(o)
	}
}
