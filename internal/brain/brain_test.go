package brain

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/pkg/config"
)

func testRules() Rules {
	return Rules{
		MinBid:      domain.PriceFromCents(10),
		MaxBid:      domain.PriceFromCents(55),
		SpreadLimit: domain.PriceFromCents(3),
	}
}

func testItem() domain.WatchItem {
	return domain.WatchItem{
		ID:       "m1",
		AssetID:  "asset-m1",
		TickSize: domain.Price{Pips: 100}, // 0.01
	}
}

func quote(bidCents, askCents int) domain.Quote {
	return domain.Quote{
		Bid:    domain.PriceFromCents(bidCents),
		Ask:    domain.PriceFromCents(askCents),
		HasBid: true,
		HasAsk: true,
	}
}

func TestTakeFiresInsideSpreadLimit(t *testing.T) {
	e := NewEngine(testRules())

	// bid=0.20 ask=0.22：价差 0.02 < 0.03 且 ask 在区间内 → 吃单
	act := e.Decide(testItem(), quote(20, 22), decimal.NewFromInt(11))
	if act.Kind != ActionTake {
		t.Fatalf("kind got=%s want=take", act.Kind)
	}
	if act.Price != domain.PriceFromCents(22) {
		t.Fatalf("price got=%d pips want=2200", act.Price.Pips)
	}
	// 11 / 0.22 = 50 份
	if !act.Size.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("size got=%s want=50", act.Size)
	}
	if act.TakeProfit != nil {
		t.Fatal("take-profit disabled must leave TakeProfit nil")
	}
}

func TestNoOpOutsideRange(t *testing.T) {
	e := NewEngine(testRules())

	// bid=0.60 ask=0.62：两条规则都不满足 → 不动作（也不是撤单）
	act := e.Decide(testItem(), quote(60, 62), decimal.NewFromInt(100))
	if act.Kind != ActionNone {
		t.Fatalf("kind got=%s want=none", act.Kind)
	}
}

func TestTakeWinsOverMake(t *testing.T) {
	e := NewEngine(testRules())

	// bid=0.20 同时满足规则 B，ask=0.21 满足规则 A → 只执行 A
	act := e.Decide(testItem(), quote(20, 21), decimal.NewFromInt(10))
	if act.Kind != ActionTake {
		t.Fatalf("rule A must take precedence, got=%s", act.Kind)
	}
}

func TestMakeAtBidPlusTick(t *testing.T) {
	e := NewEngine(testRules())

	// 价差 0.05 超限 → 规则 A 不触发；bid=0.30 在 [0.10,0.55) → 规则 B
	act := e.Decide(testItem(), quote(30, 35), decimal.NewFromInt(10))
	if act.Kind != ActionMake {
		t.Fatalf("kind got=%s want=make", act.Kind)
	}
	if act.Price != domain.PriceFromCents(31) {
		t.Fatalf("make price got=%d pips want=3100 (bid+tick)", act.Price.Pips)
	}
}

func TestMakeExcludesMaxBid(t *testing.T) {
	e := NewEngine(testRules())

	// bid == maxBid：区间右开，规则 B 不触发
	act := e.Decide(testItem(), quote(55, 70), decimal.NewFromInt(10))
	if act.Kind != ActionNone {
		t.Fatalf("bid at maxBid must not trigger make, got=%s", act.Kind)
	}
}

func TestExhaustedBudgetCancelsAll(t *testing.T) {
	e := NewEngine(testRules())

	act := e.Decide(testItem(), quote(20, 22), decimal.Zero)
	if act.Kind != ActionCancelAll {
		t.Fatalf("kind got=%s want=cancel_all", act.Kind)
	}
	act = e.Decide(testItem(), quote(20, 22), decimal.NewFromInt(-3))
	if act.Kind != ActionCancelAll {
		t.Fatalf("negative available must cancel, got=%s", act.Kind)
	}
}

func TestMissingSidesNeverEnter(t *testing.T) {
	e := NewEngine(testRules())

	// 空盘口：哨兵值 bid=0 / ask=1.0 天然落在所有区间之外
	act := e.Decide(testItem(), domain.Quote{}, decimal.NewFromInt(100))
	if act.Kind != ActionNone {
		t.Fatalf("empty book must be a no-op, got=%s", act.Kind)
	}

	// 只有 ask 缺失：bid 侧规则仍可评估
	q := domain.Quote{Bid: domain.PriceFromCents(20), HasBid: true}
	act = e.Decide(testItem(), q, decimal.NewFromInt(10))
	if act.Kind != ActionMake {
		t.Fatalf("missing ask must still allow make, got=%s", act.Kind)
	}
}

func TestSizeTruncationNeverExceedsBudget(t *testing.T) {
	e := NewEngine(testRules())

	cases := []struct {
		available string
		askCents  int
	}{
		{"10", 33},
		{"7.77", 21},
		{"0.5", 13},
		{"123.456", 49},
	}
	for _, tc := range cases {
		avail := decimal.RequireFromString(tc.available)
		act := e.Decide(testItem(), quote(tc.askCents-1, tc.askCents), avail)
		if act.Kind != ActionTake {
			t.Fatalf("available=%s ask=%d: expected take, got=%s", tc.available, tc.askCents, act.Kind)
		}
		cost := act.Size.Mul(act.Price.Decimal())
		if cost.GreaterThan(avail) {
			t.Fatalf("available=%s ask=%d: cost %s exceeds budget", tc.available, tc.askCents, cost)
		}
	}
}

func TestTinyBudgetYieldsNoOrder(t *testing.T) {
	e := NewEngine(testRules())

	// 预算买不满最小数量粒度：不下单也不撤单
	act := e.Decide(testItem(), quote(20, 22), decimal.RequireFromString("0.001"))
	if act.Kind != ActionNone {
		t.Fatalf("dust budget must be a no-op, got=%s", act.Kind)
	}
}

func TestTakeProfitAttachedWhenConfigured(t *testing.T) {
	rules := testRules()
	rules.SellThreshold = domain.PriceFromCents(80)
	e := NewEngine(rules)

	act := e.Decide(testItem(), quote(20, 22), decimal.NewFromInt(10))
	if act.Kind != ActionTake {
		t.Fatalf("kind got=%s want=take", act.Kind)
	}
	if act.TakeProfit == nil || *act.TakeProfit != domain.PriceFromCents(80) {
		t.Fatalf("take-profit got=%v want=0.80", act.TakeProfit)
	}
}

func TestCoarseTickTruncatesEntryPrice(t *testing.T) {
	e := NewEngine(testRules())
	item := testItem()
	item.TickSize = domain.PriceFromCents(10) // 0.1

	// ask=0.22 截断到 0.2 档位
	act := e.Decide(item, quote(20, 22), decimal.NewFromInt(10))
	if act.Kind != ActionTake {
		t.Fatalf("kind got=%s want=take", act.Kind)
	}
	if act.Price != domain.PriceFromCents(20) {
		t.Fatalf("price got=%d pips want=2000 (truncated down)", act.Price.Pips)
	}
}

func TestRulesFromStrategy(t *testing.T) {
	s := config.StrategyConfig{
		MinBidCents:        10,
		MaxBidCents:        55,
		SpreadLimitCents:   3,
		SellThresholdCents: 80,
	}
	r := RulesFromStrategy(s)
	if r.MinBid.Pips != 1000 || r.MaxBid.Pips != 5500 || r.SpreadLimit.Pips != 300 || r.SellThreshold.Pips != 8000 {
		t.Fatalf("unexpected conversion: %+v", r)
	}
}
