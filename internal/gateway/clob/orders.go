package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"math/rand"
	"strings"

	orderconfig "github.com/polymarket/go-order-utils/pkg/config"
	"github.com/shopspring/decimal"

	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/gateway/signing"
)

// OrderSpec 要提交的订单参数
type OrderSpec struct {
	TokenID string
	Buy     bool
	Price   domain.Price
	Size    decimal.Decimal
	NegRisk bool // neg-risk 市场走独立的交易所合约
}

// BuildSignedOrder 构建并签名 GTC 订单
//
// 金额换算（USDC 1e6 精度）：
//   - 买单：makerAmount = price*size（付出的 USDC），takerAmount = size（换回的份额）
//   - 卖单：makerAmount = size，takerAmount = price*size
func (c *Client) BuildSignedOrder(spec OrderSpec) (*SignedOrderPayload, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("未配置私钥，无法签名订单")
	}
	contracts, err := orderconfig.GetContracts(int64(c.chainID))
	if err != nil {
		return nil, fmt.Errorf("获取合约配置失败: %w", err)
	}
	exchange := contracts.Exchange.Hex()
	if spec.NegRisk {
		exchange = contracts.NegRiskExchange.Hex()
	}

	tokenID, ok := new(big.Int).SetString(spec.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("无效的 token ID: %s", spec.TokenID)
	}

	cost := spec.Price.Decimal().Mul(spec.Size)
	shares := spec.Size
	var makerAmt, takerAmt decimal.Decimal
	if spec.Buy {
		makerAmt, takerAmt = cost, shares
	} else {
		makerAmt, takerAmt = shares, cost
	}

	signerAddr := signing.AddressFromPrivateKey(c.signer).Hex()
	order := &signing.OrderData{
		Salt:          rand.Int63(),
		Maker:         c.funder,
		Signer:        signerAddr,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       tokenID,
		MakerAmount:   toMicros(makerAmt),
		TakerAmount:   toMicros(takerAmt),
		Expiration:    big.NewInt(0),
		Nonce:         big.NewInt(0),
		FeeRateBps:    big.NewInt(0),
		SideBuy:       spec.Buy,
		SignatureType: c.sigType,
	}

	sig, err := signing.BuildOrderSignature(c.signer, c.chainID, exchange, order)
	if err != nil {
		return nil, err
	}

	side := "SELL"
	if spec.Buy {
		side = "BUY"
	}
	return &SignedOrderPayload{
		Salt:          order.Salt,
		Maker:         order.Maker,
		Signer:        order.Signer,
		Taker:         order.Taker,
		TokenID:       spec.TokenID,
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: c.sigType,
		Signature:     sig,
	}, nil
}

// PostOrder 提交签名订单（GTC）
func (c *Client) PostOrder(ctx context.Context, payload *SignedOrderPayload) (*PostOrderResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	reqBody := PostOrderRequest{
		Order:     *payload,
		Owner:     c.creds.Key,
		OrderType: "GTC",
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化订单失败: %w", err)
	}

	req, err := c.authedRequest(ctx, "POST", "/order", string(bodyBytes))
	if err != nil {
		return nil, err
	}
	var out PostOrderResponse
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(bodyBytes).
		SetResult(&out).
		Post("/order")
	if err := checkResponse(resp, err, "order"); err != nil {
		return nil, err
	}
	if !out.Success {
		return &out, fmt.Errorf("订单被拒绝: %s", out.ErrorMsg)
	}
	log.Debugf("📤 订单已提交: id=%s status=%s", out.OrderID, out.Status)
	return &out, nil
}

// IsMatched 订单是否立即成交
func (r *PostOrderResponse) IsMatched() bool {
	return strings.EqualFold(r.Status, "matched")
}

// CancelOrder 撤销单个订单
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*CancelResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	body := fmt.Sprintf(`{"orderID":%q}`, orderID)
	req, err := c.authedRequest(ctx, "DELETE", "/order", body)
	if err != nil {
		return nil, err
	}
	var out CancelResponse
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Delete("/order")
	if err := checkResponse(resp, err, "cancel"); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelMarketOrders 撤销某市场下的全部挂单
func (c *Client) CancelMarketOrders(ctx context.Context, conditionID string) (*CancelResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	body := fmt.Sprintf(`{"market":%q}`, conditionID)
	req, err := c.authedRequest(ctx, "DELETE", "/cancel-market-orders", body)
	if err != nil {
		return nil, err
	}
	var out CancelResponse
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out).
		Delete("/cancel-market-orders")
	if err := checkResponse(resp, err, "cancel-market-orders"); err != nil {
		return nil, err
	}
	return &out, nil
}

// toMicros USDC/份额金额换算到 1e6 整数，向下截断
func toMicros(v decimal.Decimal) *big.Int {
	return v.Shift(signing.CollateralDecimals).Truncate(0).BigInt()
}
