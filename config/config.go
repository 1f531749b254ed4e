// Package config 负责加载服务配置
// 配置来源优先级：环境变量 > 配置文件 > 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/weiwangfds/scisign/internal/logger"
)

// EnvPrefix 环境变量前缀，例如 SCISIGN_SIGNATURE_SECRET
const EnvPrefix = "SCISIGN"

// Config 应用配置根结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       logger.Config   `mapstructure:"log"`
	Signature SignatureConfig `mapstructure:"signature"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	HTTPSPort    int    `mapstructure:"https_port"`
	EnableHTTPS  bool   `mapstructure:"enable_https"`
	EnableHTTP2  bool   `mapstructure:"enable_http2"`
	TLSCertFile  string `mapstructure:"tls_cert_file"`
	TLSKeyFile   string `mapstructure:"tls_key_file"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // 秒
	WriteTimeout int    `mapstructure:"write_timeout"` // 秒
	Mode         string `mapstructure:"mode"`          // gin模式: release, debug, test
}

// DatabaseConfig 数据库配置，目前仅支持sqlite
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
}

// SignatureConfig 签名图片存储与访问配置
type SignatureConfig struct {
	// Root 签名目录，所有PNG文件都是它的直接子文件
	Root string `mapstructure:"root"`
	// Secret URL哈希密钥（必填）
	Secret string `mapstructure:"secret"`
	// QueryVar 携带文件名的查询参数名
	QueryVar string `mapstructure:"query_var"`
	// EndpointPath 图片访问路由
	EndpointPath string `mapstructure:"endpoint_path"`
	// PublicBaseURL 构建签名URL时使用的协议和主机
	PublicBaseURL string `mapstructure:"public_base_url"`
	// CDNBaseURL 非空时替换URL的协议和主机
	CDNBaseURL     string `mapstructure:"cdn_base_url"`
	FilenamePrefix string `mapstructure:"filename_prefix"`
	// AllowUnsigned 是否允许不带哈希的旧版URL
	AllowUnsigned bool `mapstructure:"allow_unsigned"`
	// RequireLogin 带哈希的请求也要求登录，未登录时重定向到LoginURL
	RequireLogin bool   `mapstructure:"require_login"`
	LoginURL     string `mapstructure:"login_url"`
	// Background 去透明时使用的背景色（#rrggbb）
	Background string `mapstructure:"background"`
	MaxPixels  int    `mapstructure:"max_pixels"`
	// MaxPayloadBytes 单个签名base64数据的最大字节数
	MaxPayloadBytes int `mapstructure:"max_payload_bytes"`
}

// AuthConfig 管理员认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	AdminUser         string        `mapstructure:"admin_user"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"` // bcrypt
	CookieName        string        `mapstructure:"cookie_name"`
}

// MirrorConfig 签名文件云端镜像配置
type MirrorConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Provider      string        `mapstructure:"provider"` // aliyun, tencent, qiniu
	Region        string        `mapstructure:"region"`
	Bucket        string        `mapstructure:"bucket"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Endpoint      string        `mapstructure:"endpoint"`
	Prefix        string        `mapstructure:"prefix"`
	Workers       int           `mapstructure:"workers"`
	QueueSize     int           `mapstructure:"queue_size"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// Load 加载并校验配置
// 读取config.yaml（可选），再应用SCISIGN_*环境变量覆盖
func Load() (*Config, error) {
	return LoadWithViper(viper.New())
}

// LoadWithViper 使用调用方提供的viper实例加载配置
func LoadWithViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := os.Getenv(EnvPrefix + "_CONFIG"); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 没有默认值的键需要显式绑定，否则Unmarshal看不到环境变量
	for _, key := range []string{
		"server.tls_cert_file", "server.tls_key_file",
		"signature.secret", "signature.cdn_base_url", "signature.filename_prefix",
		"auth.jwt_secret", "auth.admin_password_hash",
		"mirror.provider", "mirror.region", "mirror.bucket", "mirror.access_key",
		"mirror.secret_key", "mirror.endpoint",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.https_port", 8443)
	v.SetDefault("server.enable_https", false)
	v.SetDefault("server.enable_http2", true)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/scisign.db")
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/app.log")
	v.SetDefault("log.request_log", false)

	v.SetDefault("signature.root", "data/signatures")
	v.SetDefault("signature.query_var", "gf-signature")
	v.SetDefault("signature.endpoint_path", "/signature")
	v.SetDefault("signature.public_base_url", "http://localhost:8080")
	v.SetDefault("signature.allow_unsigned", false)
	v.SetDefault("signature.require_login", false)
	v.SetDefault("signature.login_url", "/login")
	v.SetDefault("signature.background", "#ffffff")
	v.SetDefault("signature.max_pixels", 16*1024*1024)
	v.SetDefault("signature.max_payload_bytes", 1<<20)

	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.cookie_name", "scisign_token")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.prefix", "signatures")
	v.SetDefault("mirror.workers", 2)
	v.SetDefault("mirror.queue_size", 100)
	v.SetDefault("mirror.max_retries", 5)
	v.SetDefault("mirror.retry_interval", 30*time.Second)
}

// Validate 校验启动必需的配置项
func (c *Config) Validate() error {
	if len(c.Signature.Secret) < 16 {
		return fmt.Errorf("signature.secret must be at least 16 bytes")
	}
	if c.Signature.Root == "" {
		return fmt.Errorf("signature.root is required")
	}
	if c.Signature.QueryVar == "" {
		return fmt.Errorf("signature.query_var is required")
	}
	if !strings.HasPrefix(c.Signature.EndpointPath, "/") {
		return fmt.Errorf("signature.endpoint_path must start with '/'")
	}
	if c.Signature.MaxPayloadBytes <= 0 {
		return fmt.Errorf("signature.max_payload_bytes must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Mirror.Enabled {
		switch c.Mirror.Provider {
		case "aliyun", "tencent", "qiniu":
		default:
			return fmt.Errorf("unsupported mirror provider: %q", c.Mirror.Provider)
		}
		if c.Mirror.Bucket == "" {
			return fmt.Errorf("mirror.bucket is required when mirror is enabled")
		}
	}
	return nil
}
