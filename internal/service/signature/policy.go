package signature

import (
	"context"
)

// AuthorizationPolicy 签名访问授权策略
// 在hash结构校验之后调用，可以要求登录或覆盖校验结果
type AuthorizationPolicy interface {
	// RequireLogin 是否要求调用方已登录
	RequireLogin(ctx context.Context, formID int, fieldID string) bool
	// PermissionGranted 返回最终是否放行，granted是hash校验的结果
	PermissionGranted(ctx context.Context, granted bool, formID int, fieldID string) bool
}

// DefaultPolicy 不要求登录，沿用hash校验结果
type DefaultPolicy struct{}

// RequireLogin 实现AuthorizationPolicy
func (DefaultPolicy) RequireLogin(context.Context, int, string) bool { return false }

// PermissionGranted 实现AuthorizationPolicy
func (DefaultPolicy) PermissionGranted(_ context.Context, granted bool, _ int, _ string) bool {
	return granted
}

// LoginRequiredPolicy 所有带hash的请求都要求登录
type LoginRequiredPolicy struct {
	DefaultPolicy
}

// RequireLogin 实现AuthorizationPolicy
func (LoginRequiredPolicy) RequireLogin(context.Context, int, string) bool { return true }
