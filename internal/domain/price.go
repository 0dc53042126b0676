package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// PipsPerUnit 1.0 对应的 pips 数
const PipsPerUnit = 10000

// Price 价格值对象（固定精度：1e-4）
//
// Polymarket 的 tick size 可能为 0.1 / 0.01 / 0.001 / 0.0001。
// 为了不丢精度，内部最小单位使用 pips：
//   - 1 pip  = 0.0001
//   - 100 pips = 0.01（1 cent）
//   - 10000 pips = 1.0
type Price struct {
	Pips int
}

// ToDecimal 转换为小数（例如 2200 pips = 0.22）
func (p Price) ToDecimal() float64 {
	return float64(p.Pips) / float64(PipsPerUnit)
}

// Decimal 转换为 decimal.Decimal（用于金额计算，不走浮点）
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p.Pips), -4)
}

// PriceFromDecimal 从小数创建价格（四舍五入到 1e-4）
func PriceFromDecimal(v float64) Price {
	return Price{Pips: int(math.Round(v * PipsPerUnit))}
}

// PriceFromCents 从分创建价格（10 cents = 1000 pips）
func PriceFromCents(cents int) Price {
	return Price{Pips: cents * 100}
}

// Add 价格相加
func (p Price) Add(other Price) Price {
	return Price{Pips: p.Pips + other.Pips}
}

// Sub 价格相减
func (p Price) Sub(other Price) Price {
	return Price{Pips: p.Pips - other.Pips}
}

// TruncateToTick 将价格向下截断到 tick 分辨率（永不向上取整）
func (p Price) TruncateToTick(tick Price) Price {
	if tick.Pips <= 0 {
		return p
	}
	return Price{Pips: p.Pips - p.Pips%tick.Pips}
}

// IsZero 是否为零价
func (p Price) IsZero() bool { return p.Pips == 0 }
