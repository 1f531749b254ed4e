package signature

import (
	"context"
	"image/color"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/scisign/internal/auth"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

// FieldChecker 判断(formID, fieldID)当前是否是签名字段
// fieldID可以是"3"或"3.1"，按整数部分查找字段
type FieldChecker interface {
	IsSignatureField(ctx context.Context, formID int, fieldID string) (bool, error)
}

// RenderedImage 待输出的签名图片
type RenderedImage struct {
	Filename  string
	Data      []byte
	Download  bool
	Flattened bool
}

// ImageOptions 图片服务配置
type ImageOptions struct {
	// AllowUnsigned 允许不带hash的请求直接读取文件（兼容旧URL）
	AllowUnsigned bool
	Background    color.Color
	MaxPixels     int
}

// ImageService 签名图片访问服务
// 每个请求独立处理：授权、读取、按需去透明、返回完整编码后的字节
type ImageService struct {
	store  Store
	signer *TokenSigner
	fields FieldChecker
	policy AuthorizationPolicy
	opts   ImageOptions
	logger logrus.FieldLogger
}

// NewImageService 创建图片服务，policy为nil时使用DefaultPolicy
func NewImageService(store Store, signer *TokenSigner, fields FieldChecker, policy AuthorizationPolicy,
	opts ImageOptions, logger logrus.FieldLogger) *ImageService {
	if policy == nil {
		policy = DefaultPolicy{}
	}
	if opts.Background == nil {
		opts.Background = color.White
	}
	return &ImageService{
		store:  store,
		signer: signer,
		fields: fields,
		policy: policy,
		opts:   opts,
		logger: logger,
	}
}

// Render 处理一次签名图片请求
// 返回的错误码:
//   - ErrSignatureNotFound: 文件名为空、字段不存在或不是签名字段、文件缺失或不是PNG
//   - ErrLoginRequired: 策略要求登录而调用方未登录
//   - ErrUnauthorized: 不允许无hash请求
//   - ErrInvalidToken: hash校验失败
//
// hash校验失败时不会访问存储
func (s *ImageService) Render(ctx context.Context, p URLParams) (*RenderedImage, error) {
	if p.Filename == "" {
		return nil, apperrors.ErrSignatureNotFoundError
	}

	log := s.logger.WithFields(logrus.Fields{
		"form_id":  p.FormID,
		"field_id": p.FieldID,
		"filename": p.Filename,
	})

	if err := s.authorize(ctx, p, log); err != nil {
		return nil, err
	}

	data, err := s.store.Load(p.Filename)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrInvalidPath {
			log.Warn("signature request with invalid path")
		} else {
			log.WithError(err).Debug("signature not loadable")
		}
		return nil, apperrors.ErrSignatureNotFoundError
	}

	img, err := Decode(data)
	if err != nil {
		log.WithError(err).Warn("stored signature cannot be decoded")
		return nil, apperrors.ErrSignatureNotFoundError
	}

	out := &RenderedImage{Filename: p.Filename, Data: data, Download: p.Download}
	if p.Transparent {
		return out, nil
	}

	res := Flatten(img, s.opts.Background, s.opts.MaxPixels)
	if !res.Flattened {
		log.WithError(res.Err).Info("serving signature without flattening")
		return out, nil
	}
	encoded, err := Encode(res.Image)
	if err != nil {
		log.WithError(err).Warn("flattened signature cannot be encoded, serving original")
		return out, nil
	}
	out.Data = encoded
	out.Flattened = true
	return out, nil
}

func (s *ImageService) authorize(ctx context.Context, p URLParams, log logrus.FieldLogger) error {
	if p.Hash == "" {
		if s.opts.AllowUnsigned {
			return nil
		}
		log.Debug("unsigned signature request rejected")
		return apperrors.ErrUnauthorizedAccess
	}

	ok, err := s.fields.IsSignatureField(ctx, p.FormID, p.FieldID)
	if err != nil {
		log.WithError(err).Error("field lookup failed")
		return apperrors.ErrSignatureNotFoundError
	}
	if !ok {
		return apperrors.ErrSignatureNotFoundError
	}

	if s.policy.RequireLogin(ctx, p.FormID, p.FieldID) {
		if _, loggedIn := auth.UserFromContext(ctx); !loggedIn {
			return apperrors.ErrLoginRequiredError
		}
	}

	granted := s.signer.Verify(p.Hash, p.FormID, p.FieldID, p.Filename)
	if !s.policy.PermissionGranted(ctx, granted, p.FormID, p.FieldID) {
		log.Info("signature hash rejected")
		return apperrors.ErrInvalidTokenError
	}
	return nil
}
