package signing

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"time"
)

// APICreds L2 认证凭据
type APICreds struct {
	Key        string
	Secret     string
	Passphrase string
}

// L1Headers EIP712 签名认证头（用于创建/派生 API 密钥）
type L1Headers struct {
	Address   string
	Signature string
	Timestamp string
	Nonce     string
}

// L2Headers API 密钥认证头（所有交易类请求）
type L2Headers struct {
	Address    string
	Signature  string
	Timestamp  string
	APIKey     string
	Passphrase string
}

// CreateL1Headers 构建 L1 认证头
func CreateL1Headers(privateKey *ecdsa.PrivateKey, chainID int64, nonce int64) (*L1Headers, error) {
	ts := time.Now().Unix()
	sig, err := BuildClobAuthSignature(privateKey, chainID, ts, nonce)
	if err != nil {
		return nil, fmt.Errorf("构建认证签名失败: %w", err)
	}
	return &L1Headers{
		Address:   AddressFromPrivateKey(privateKey).Hex(),
		Signature: sig,
		Timestamp: strconv.FormatInt(ts, 10),
		Nonce:     strconv.FormatInt(nonce, 10),
	}, nil
}

// CreateL2Headers 构建 L2 认证头
// body 为空字符串时表示无请求体（GET/DELETE 无 payload）
func CreateL2Headers(privateKey *ecdsa.PrivateKey, creds *APICreds, method, requestPath, body string) (*L2Headers, error) {
	ts := time.Now().Unix()
	sig, err := BuildHmacSignature(creds.Secret, ts, method, requestPath, body)
	if err != nil {
		return nil, fmt.Errorf("构建 HMAC 签名失败: %w", err)
	}
	return &L2Headers{
		Address:    AddressFromPrivateKey(privateKey).Hex(),
		Signature:  sig,
		Timestamp:  strconv.FormatInt(ts, 10),
		APIKey:     creds.Key,
		Passphrase: creds.Passphrase,
	}, nil
}

// Apply 导出为 HTTP 头键值对
func (h *L2Headers) Apply() map[string]string {
	return map[string]string{
		"POLY_ADDRESS":    h.Address,
		"POLY_SIGNATURE":  h.Signature,
		"POLY_TIMESTAMP":  h.Timestamp,
		"POLY_API_KEY":    h.APIKey,
		"POLY_PASSPHRASE": h.Passphrase,
	}
}

// Apply 导出为 HTTP 头键值对
func (h *L1Headers) Apply() map[string]string {
	return map[string]string{
		"POLY_ADDRESS":   h.Address,
		"POLY_SIGNATURE": h.Signature,
		"POLY_TIMESTAMP": h.Timestamp,
		"POLY_NONCE":     h.Nonce,
	}
}
