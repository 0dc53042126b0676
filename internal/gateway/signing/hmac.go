package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// BuildHmacSignature 构建 L2 认证用的 HMAC-SHA256 签名
//
// 消息为 timestamp + method + requestPath + body；secret 是
// base64url 编码的 API 密钥，签名同样以 base64url 返回
func BuildHmacSignature(secret string, timestamp int64, method, requestPath string, body string) (string, error) {
	message := strconv.FormatInt(timestamp, 10) + method + requestPath + body

	// secret 可能是 base64url 格式：还原成标准 base64 再解码
	sanitized := strings.ReplaceAll(secret, "-", "+")
	sanitized = strings.ReplaceAll(sanitized, "_", "/")

	keyData, err := base64.StdEncoding.DecodeString(sanitized)
	if err != nil {
		return "", fmt.Errorf("解码 secret 失败: %w", err)
	}

	mac := hmac.New(sha256.New, keyData)
	mac.Write([]byte(message))

	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	// 转回 URL 安全格式（保留 = 填充）
	sig = strings.ReplaceAll(sig, "+", "-")
	sig = strings.ReplaceAll(sig, "/", "_")
	return sig, nil
}
