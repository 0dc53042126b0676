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

// OrderData 待签名的订单字段（金额已按 1e6 缩放）
type OrderData struct {
	Salt          int64
	Maker         string
	Signer        string
	Taker         string
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	SideBuy       bool // BUY = 0, SELL = 1
	SignatureType int
}

// BuildOrderSignature 构建订单的 EIP712 签名
// 域名固定为交易所合约（verifyingContract 按链取自合约配置）
func BuildOrderSignature(privateKey *ecdsa.PrivateKey, chainID int64, exchangeAddress string, order *OrderData) (string, error) {
	domain := apitypes.TypedDataDomain{
		Name:              ExchangeDomainName,
		Version:           "1",
		ChainId:           math.NewHexOrDecimal256(chainID),
		VerifyingContract: exchangeAddress,
	}

	typeDefs := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Order": {
			{Name: "salt", Type: "uint256"},
			{Name: "maker", Type: "address"},
			{Name: "signer", Type: "address"},
			{Name: "taker", Type: "address"},
			{Name: "tokenId", Type: "uint256"},
			{Name: "makerAmount", Type: "uint256"},
			{Name: "takerAmount", Type: "uint256"},
			{Name: "expiration", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "feeRateBps", Type: "uint256"},
			{Name: "side", Type: "uint8"},
			{Name: "signatureType", Type: "uint8"},
		},
	}

	side := int64(1)
	if order.SideBuy {
		side = 0
	}

	typedData := apitypes.TypedData{
		Types:       typeDefs,
		PrimaryType: "Order",
		Domain:      domain,
		Message: map[string]interface{}{
			"salt":          big.NewInt(order.Salt),
			"maker":         common.HexToAddress(order.Maker).Hex(),
			"signer":        common.HexToAddress(order.Signer).Hex(),
			"taker":         common.HexToAddress(order.Taker).Hex(),
			"tokenId":       order.TokenID,
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          big.NewInt(side),
			"signatureType": big.NewInt(int64(order.SignatureType)),
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("计算订单哈希失败: %w", err)
	}

	signature, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return "", fmt.Errorf("订单签名失败: %w", err)
	}
	return "0x" + common.Bytes2Hex(signature), nil
}
