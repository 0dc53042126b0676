package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeOutcome 终结市场的结算记录
type TradeOutcome struct {
	ResourceID    string          // 市场 condition ID
	Won           bool            // 交易侧 token 是否获胜
	Label         string          // 市场问题文本
	AvgEntryPrice decimal.Decimal // 平均入场价
	Size          decimal.Decimal // 累计份额
	TotalCost     decimal.Decimal // 累计投入（USDC）
	PnL           decimal.Decimal // 已实现盈亏（USDC）
	ResolvedAt    time.Time       // 结算时间
}

// NewTradeOutcome 根据终局持仓计算结算记录
//
// 获胜时每份兑付 1 USDC：pnl = size - totalCost；失败时 pnl = -totalCost。
func NewTradeOutcome(resourceID, label string, won bool, pos Position, resolvedAt time.Time) (TradeOutcome, error) {
	avg, err := pos.AvgPrice()
	if err != nil {
		return TradeOutcome{}, err
	}
	pnl := pos.TotalCost.Neg()
	if won {
		pnl = pos.TotalSize.Sub(pos.TotalCost)
	}
	return TradeOutcome{
		ResourceID:    resourceID,
		Won:           won,
		Label:         label,
		AvgEntryPrice: avg,
		Size:          pos.TotalSize,
		TotalCost:     pos.TotalCost,
		PnL:           pnl,
		ResolvedAt:    resolvedAt,
	}, nil
}
