// Package auth 提供管理员登录与JWT令牌签发校验
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidToken 令牌无法解析或签名不匹配
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired 令牌已过期
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const issuer = "scisign"

// Claims 标准声明加上用户ID
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// GenerateToken 为用户签发HS256令牌
func GenerateToken(userID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// ParseToken 校验令牌并返回用户ID
func ParseToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}

// Authenticator 校验管理员凭据并签发令牌
type Authenticator struct {
	secret       []byte
	ttl          time.Duration
	adminUser    string
	passwordHash []byte
}

// NewAuthenticator 创建认证器
// passwordHash为空时登录永远失败，只能使用外部签发的令牌
func NewAuthenticator(secret string, ttl time.Duration, adminUser, passwordHash string) *Authenticator {
	return &Authenticator{
		secret:       []byte(secret),
		ttl:          ttl,
		adminUser:    adminUser,
		passwordHash: []byte(passwordHash),
	}
}

// Login 校验用户名密码，成功后返回令牌与过期时间
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if len(a.passwordHash) == 0 || username != a.adminUser {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	expires := time.Now().Add(a.ttl)
	token, err := GenerateToken(username, a.secret, a.ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Verify 校验令牌
func (a *Authenticator) Verify(token string) (string, error) {
	return ParseToken(token, a.secret)
}

type userKey struct{}

// WithUser 把已认证用户写入上下文
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext 读取已认证用户，未登录返回false
func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	return userID, ok && userID != ""
}
