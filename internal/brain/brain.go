package brain

import (
	"github.com/shopspring/decimal"

	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/pkg/config"
)

// ActionKind 决策种类
type ActionKind int

const (
	ActionNone      ActionKind = iota // 本轮不动作
	ActionCancelAll                   // 撤掉该市场全部挂单（风险预算耗尽）
	ActionTake                        // 主动吃单：按 ask 买入，未成交立即撤单
	ActionMake                        // 被动挂单：在 bid+tick 挂买单等待成交
)

func (k ActionKind) String() string {
	switch k {
	case ActionCancelAll:
		return "cancel_all"
	case ActionTake:
		return "take"
	case ActionMake:
		return "make"
	default:
		return "none"
	}
}

// Action 决策结果：由调度侧通过执行网关落地，本包不产生副作用
type Action struct {
	Kind       ActionKind
	Price      domain.Price    // Take/Make 的委托价（已截断到 tick）
	Size       decimal.Decimal // 委托数量（已向下截断）
	TakeProfit *domain.Price   // Take 成交后要挂的止盈卖价（nil 表示禁用）
}

// Rules 入场阈值（以 Price 表示，由配置的分值换算而来）
type Rules struct {
	MinBid        domain.Price
	MaxBid        domain.Price
	SpreadLimit   domain.Price
	SellThreshold domain.Price // 零值表示禁用止盈挂单
}

// RulesFromStrategy 从策略配置换算阈值
func RulesFromStrategy(s config.StrategyConfig) Rules {
	return Rules{
		MinBid:        domain.PriceFromCents(s.MinBidCents),
		MaxBid:        domain.PriceFromCents(s.MaxBidCents),
		SpreadLimit:   domain.PriceFromCents(s.SpreadLimitCents),
		SellThreshold: domain.PriceFromCents(s.SellThresholdCents),
	}
}

// sizeDecimals 委托数量保留的小数位（交易所份额粒度）
const sizeDecimals = 2

// Engine 纯决策引擎：同样的输入永远给出同样的动作
type Engine struct {
	rules Rules
}

// NewEngine 创建决策引擎
func NewEngine(rules Rules) *Engine {
	return &Engine{rules: rules}
}

// Decide 对单个条目给出本轮动作
//
// 规则 A（吃单）先于规则 B（挂单）：ask 落在 [minBid, maxBid] 且价差
// 小于 spreadLimit 时按 ask 买入；否则 bid 落在 [minBid, maxBid) 时
// 在 bid+tick 挂买单。available 耗尽时返回撤单动作以收束风险。
// 价格与数量一律向下截断，绝不让委托成本超出分到的预算。
func (e *Engine) Decide(item domain.WatchItem, quote domain.Quote, available decimal.Decimal) Action {
	if available.LessThanOrEqual(decimal.Zero) {
		return Action{Kind: ActionCancelAll}
	}

	bid := quote.BestBid()
	ask := quote.BestAsk()

	// 规则 A：吃单入场
	if ask.Pips >= e.rules.MinBid.Pips && ask.Pips <= e.rules.MaxBid.Pips &&
		quote.Spread().Pips < e.rules.SpreadLimit.Pips {
		price := ask.TruncateToTick(item.TickSize)
		size := entrySize(available, price)
		if size.IsPositive() {
			act := Action{Kind: ActionTake, Price: price, Size: size}
			if !e.rules.SellThreshold.IsZero() {
				tp := e.rules.SellThreshold
				act.TakeProfit = &tp
			}
			return act
		}
	}

	// 规则 B：挂单入场（仅在规则 A 未触发时评估）
	if bid.Pips >= e.rules.MinBid.Pips && bid.Pips < e.rules.MaxBid.Pips {
		price := bid.Add(item.TickSize).TruncateToTick(item.TickSize)
		size := entrySize(available, price)
		if size.IsPositive() {
			return Action{Kind: ActionMake, Price: price, Size: size}
		}
	}

	return Action{Kind: ActionNone}
}

// entrySize 可用预算能买到的份额，向下截断
// 截断方向保证 size*price <= available 恒成立
func entrySize(available decimal.Decimal, price domain.Price) decimal.Decimal {
	p := price.Decimal()
	if p.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	// QuoRem 给出精确截断的商，不会像 Div 那样在末位四舍五入
	q, _ := available.QuoRem(p, sizeDecimals)
	return q
}
