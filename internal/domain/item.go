package domain

import (
	"time"
)

// WatchItem 受监控的市场条目
// 对应一个尚未终结、可下单的市场；AssetID 是被交易一侧（NO token）的资产 ID
type WatchItem struct {
	ID             string    // condition ID（市场唯一标识，生命周期内不变）
	AssetID        string    // 交易侧 token 的资产 ID（用于报价/下单）
	Question       string    // 问题描述（用于结算记录的标签）
	TickSize       Price     // 最小价格增量
	ActivationTime time.Time // 进入评估的时间点，同时作为排序键
	Priority       bool      // 持有敞口/挂单的条目置为高优先级，排到评估队列最前
	NegRisk        bool      // neg-risk 市场（下单走独立的交易所合约）
}

// IsValid 验证条目是否完整
func (it *WatchItem) IsValid() bool {
	return it.ID != "" && it.AssetID != "" && it.TickSize.Pips > 0 &&
		it.TickSize.Pips <= PipsPerUnit && !it.ActivationTime.IsZero()
}

// SortsBefore 排序比较：priority 降序，再按 ActivationTime 升序
// 相等键不满足 SortsBefore，使有序插入对既有条目保持稳定
func (it *WatchItem) SortsBefore(other *WatchItem) bool {
	if it.Priority != other.Priority {
		return it.Priority
	}
	return it.ActivationTime.Before(other.ActivationTime)
}
