package router

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/scisign/config"
	"github.com/weiwangfds/scisign/internal/auth"
	"github.com/weiwangfds/scisign/internal/service/entry"
	"github.com/weiwangfds/scisign/internal/service/mirror"
	"github.com/weiwangfds/scisign/internal/service/signature"
	"gorm.io/gorm"
)

// Services 路由依赖的服务集合
type Services struct {
	Store   *signature.LocalStore
	Entries entry.EntryService
	Images  *signature.ImageService
	Capture *signature.CaptureService
	URLs    *signature.URLBuilder
	Auth    *auth.Authenticator

	// 未启用镜像时为nil
	Mirror         *mirror.Replicator
	MirrorProvider mirror.Provider
}

// NewServices 根据配置组装服务
// 启用镜像时复制器会注册为存储的观察者，但需要调用方Start
func NewServices(cfg *config.Config, db *gorm.DB, logger logrus.FieldLogger) (*Services, error) {
	sc := cfg.Signature

	store, err := signature.NewLocalStore(sc.Root, sc.MaxPixels, logger)
	if err != nil {
		return nil, err
	}

	signer := signature.NewTokenSigner([]byte(sc.Secret))

	var rewriter signature.URLRewriter = signature.IdentityRewriter{}
	if sc.CDNBaseURL != "" {
		pr, err := signature.NewPrefixRewriter(sc.CDNBaseURL)
		if err != nil {
			return nil, err
		}
		rewriter = pr
	}
	urls := signature.NewURLBuilder(sc.PublicBaseURL, sc.EndpointPath, sc.QueryVar, signer, rewriter)

	bg, err := signature.ParseHexColor(sc.Background)
	if err != nil {
		return nil, fmt.Errorf("signature.background: %w", err)
	}

	var policy signature.AuthorizationPolicy = signature.DefaultPolicy{}
	if sc.RequireLogin {
		policy = signature.LoginRequiredPolicy{}
	}

	entries := entry.NewEntryService(db)
	images := signature.NewImageService(store, signer, entries, policy, signature.ImageOptions{
		AllowUnsigned: sc.AllowUnsigned,
		Background:    bg,
		MaxPixels:     sc.MaxPixels,
	}, logger)

	svc := &Services{
		Store:   store,
		Entries: entries,
		Images:  images,
		Capture: signature.NewCaptureService(store, entries, signature.CaptureOptions{
			Prefix:          sc.FilenamePrefix,
			MaxPayloadBytes: sc.MaxPayloadBytes,
		}, logger),
		URLs: urls,
		Auth: auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.AdminUser, cfg.Auth.AdminPasswordHash),
	}

	if cfg.Mirror.Enabled {
		provider, err := mirror.NewProvider(cfg.Mirror)
		if err != nil {
			return nil, err
		}
		svc.MirrorProvider = provider
		svc.Mirror = mirror.NewReplicator(provider, db, cfg.Mirror, logger)
		store.AddObserver(svc.Mirror)
	}
	return svc, nil
}
