// Package signature 实现签名图片的存储、访问令牌、URL构建与图片输出
package signature

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/rs/xid"
	apperrors "github.com/weiwangfds/scisign/internal/errors"
)

// Allocator 生成签名文件名
// 文件名由xid（时间、机器、进程、计数器）加8位随机十六进制组成，只含[0-9a-v]，不带扩展名
type Allocator struct {
	// random 随机源，测试中可替换
	random func() (uuid.UUID, error)
}

// NewAllocator 创建使用系统随机源的分配器
func NewAllocator() *Allocator {
	return &Allocator{random: uuid.NewRandom}
}

// Allocate 分配新的文件名
// 随机源不可用时返回ErrEntropyUnavailable，不会退化为可碰撞的名字
func (a *Allocator) Allocate() (string, error) {
	u, err := a.random()
	if err != nil {
		return "", apperrors.WrapCode(apperrors.ErrEntropyUnavailable, err)
	}
	return xid.New().String() + hex.EncodeToString(u[:4]), nil
}
