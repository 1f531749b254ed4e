package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"
)

// TokenSigner 生成并校验签名URL中的hash参数
// hash = hex(HMAC-SHA256(secret, formID | fieldID | filename))，每段带长度前缀
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner 创建令牌签名器，密钥由配置提供
func NewTokenSigner(secret []byte) *TokenSigner {
	return &TokenSigner{secret: append([]byte(nil), secret...)}
}

// Generate 为(formID, fieldID, filename)生成令牌，相同输入总是得到相同结果
func (s *TokenSigner) Generate(formID int, fieldID, filename string) string {
	mac := hmac.New(sha256.New, s.secret)
	writeField(mac, strconv.Itoa(formID))
	writeField(mac, fieldID)
	writeField(mac, filename)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 常量时间比较令牌，任何不匹配都返回false
func (s *TokenSigner) Verify(token string, formID int, fieldID, filename string) bool {
	expected := s.Generate(formID, fieldID, filename)
	return hmac.Equal([]byte(expected), []byte(token))
}

// writeField 写入长度前缀，避免("1","23")与("12","3")拼接后相同
func writeField(h hash.Hash, v string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(v)))
	h.Write(n[:])
	h.Write([]byte(v))
}
