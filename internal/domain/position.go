package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrZeroSize 零持仓上的均价没有定义
var ErrZeroSize = errors.New("average price undefined for zero size")

// Position 单个市场上的聚合敞口
//
// TotalCost 为累计投入（USDC），TotalSize 为累计成交份额；
// 两者由交易所成交历史聚合得出，而不是本地订单状态推算。
type Position struct {
	TotalCost decimal.Decimal
	TotalSize decimal.Decimal
}

// IsEmpty 是否无持仓
func (p Position) IsEmpty() bool {
	return p.TotalSize.IsZero()
}

// AvgPrice 平均入场价 = TotalCost / TotalSize
// TotalSize == 0 时返回 ErrZeroSize，调用方不得对空仓求均价
func (p Position) AvgPrice() (decimal.Decimal, error) {
	if p.TotalSize.IsZero() {
		return decimal.Zero, ErrZeroSize
	}
	return p.TotalCost.DivRound(p.TotalSize, 6), nil
}
