package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// BuildClobAuthSignature 构建 CLOB 认证的 EIP712 签名（L1 头）
func BuildClobAuthSignature(privateKey *ecdsa.PrivateKey, chainID int64, timestamp, nonce int64) (string, error) {
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	domain := apitypes.TypedDataDomain{
		Name:    ClobDomainName,
		Version: ClobVersion,
		ChainId: math.NewHexOrDecimal256(chainID),
	}

	typeDefs := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
		},
		"ClobAuth": {
			{Name: "address", Type: "address"},
			{Name: "timestamp", Type: "string"},
			{Name: "nonce", Type: "uint256"},
			{Name: "message", Type: "string"},
		},
	}

	typedData := apitypes.TypedData{
		Types:       typeDefs,
		PrimaryType: "ClobAuth",
		Domain:      domain,
		Message: map[string]interface{}{
			"address":   address.Hex(),
			"timestamp": fmt.Sprintf("%d", timestamp),
			"nonce":     big.NewInt(nonce),
			"message":   AuthMessage,
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("计算 EIP712 哈希失败: %w", err)
	}

	signature, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return "", fmt.Errorf("签名失败: %w", err)
	}
	return "0x" + common.Bytes2Hex(signature), nil
}

// AddressFromPrivateKey 从私钥推导地址
func AddressFromPrivateKey(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// PrivateKeyFromHex 解析十六进制私钥
func PrivateKeyFromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(hexKey)
}
