package domain

// Quote 一档盘口（best bid / best ask）
//
// 缺边不是错误：没有买单时 best bid 取最小可能价（0），
// 没有卖单时 best ask 取最大可能价（1.0）。哨兵值让缺边盘口
// 自然地不满足任何入场条件，无需特判。
type Quote struct {
	Bid    Price // 仅当 HasBid 时有效
	Ask    Price // 仅当 HasAsk 时有效
	HasBid bool
	HasAsk bool
}

// BestBid 最优买价（缺边返回最小可能价 0）
func (q Quote) BestBid() Price {
	if !q.HasBid {
		return Price{Pips: 0}
	}
	return q.Bid
}

// BestAsk 最优卖价（缺边返回最大可能价 1.0）
func (q Quote) BestAsk() Price {
	if !q.HasAsk {
		return Price{Pips: PipsPerUnit}
	}
	return q.Ask
}

// Spread 买卖价差（基于哨兵值，缺边时价差为全宽）
func (q Quote) Spread() Price {
	return q.BestAsk().Sub(q.BestBid())
}
