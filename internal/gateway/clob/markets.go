package clob

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// GetOrderBook 拉取单个 token 的盘口快照
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*OrderBookSummary, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var book OrderBookSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&book).
		Get("/book")
	if err := checkResponse(resp, err, "book"); err != nil {
		return nil, err
	}
	return &book, nil
}

// GetMarketsPage 拉取目录的一页；cursor 为空表示首页
// 末页的 NextCursor 为哨兵值 EndCursor
func (c *Client) GetMarketsPage(ctx context.Context, cursor string) (*MarketsPage, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req := c.http.R().SetContext(ctx)
	if cursor != "" {
		req.SetQueryParam("next_cursor", cursor)
	}
	var page MarketsPage
	resp, err := req.SetResult(&page).Get("/markets")
	if err := checkResponse(resp, err, "markets"); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMarket 按 condition ID 拉取单个市场
func (c *Client) GetMarket(ctx context.Context, conditionID string) (*APIMarket, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var market APIMarket
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&market).
		Get("/markets/" + conditionID)
	if err := checkResponse(resp, err, "market"); err != nil {
		return nil, err
	}
	return &market, nil
}

// GetCollateralBalance 查询抵押品（USDC）可用余额
// API 返回 1e6 缩放的整数字符串，这里换算回 USDC
func (c *Client) GetCollateralBalance(ctx context.Context) (decimal.Decimal, error) {
	if err := c.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	req, err := c.authedRequest(ctx, "GET", "/balance-allowance", "")
	if err != nil {
		return decimal.Zero, err
	}
	var out BalanceAllowanceResponse
	resp, err := req.
		SetQueryParams(map[string]string{
			"asset_type":     "COLLATERAL",
			"signature_type": fmt.Sprintf("%d", c.sigType),
		}).
		SetResult(&out).
		Get("/balance-allowance")
	if err := checkResponse(resp, err, "balance-allowance"); err != nil {
		return decimal.Zero, err
	}

	raw, err := decimal.NewFromString(out.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("解析余额失败 %q: %w", out.Balance, err)
	}
	return raw.Shift(-6), nil
}

// GetPositionsValue 查询账户全部持仓的当前市值（data-api）
func (c *Client) GetPositionsValue(ctx context.Context) (decimal.Decimal, error) {
	if err := c.wait(ctx); err != nil {
		return decimal.Zero, err
	}
	var out []DataPositionValue
	resp, err := c.data.R().
		SetContext(ctx).
		SetQueryParam("user", c.funder).
		SetResult(&out).
		Get("/value")
	if err := checkResponse(resp, err, "positions-value"); err != nil {
		return decimal.Zero, err
	}
	if len(out) == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(out[0].Value), nil
}

// GetPositions 查询账户全部未赎回持仓（data-api）
func (c *Client) GetPositions(ctx context.Context) ([]DataPosition, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var out []DataPosition
	resp, err := c.data.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"user":          c.funder,
			"sizeThreshold": "0.1",
		}).
		SetResult(&out).
		Get("/positions")
	if err := checkResponse(resp, err, "positions"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOpenOrders 查询属于本账户的挂单
// conditionID 非空时限定单个市场，为空时返回全部市场的挂单
func (c *Client) GetOpenOrders(ctx context.Context, conditionID string) ([]OpenOrderRecord, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := c.authedRequest(ctx, "GET", "/orders", "")
	if err != nil {
		return nil, err
	}
	if conditionID != "" {
		req.SetQueryParam("market", conditionID)
	}
	var out []OpenOrderRecord
	resp, err := req.
		SetResult(&out).
		Get("/orders")
	if err := checkResponse(resp, err, "orders"); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTrades 查询某市场下本账户的成交记录
func (c *Client) GetTrades(ctx context.Context, conditionID string) ([]TradeRecord, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := c.authedRequest(ctx, "GET", "/trades", "")
	if err != nil {
		return nil, err
	}
	var out []TradeRecord
	resp, err := req.
		SetQueryParam("market", conditionID).
		SetResult(&out).
		Get("/trades")
	if err := checkResponse(resp, err, "trades"); err != nil {
		return nil, err
	}
	return out, nil
}
