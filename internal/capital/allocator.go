package capital

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/ports"
)

var log = logrus.WithField("module", "capital")

// RiskBudget 单轮扫描的风险预算快照
// 计算一次后在整轮内只读共享，worker 不得中途重算，
// 否则多个 worker 会各自认为整个预算都归自己（风险双花）
type RiskBudget struct {
	TotalBudget     decimal.Decimal // (总敞口 + 可用余额) * portfolioPercent
	CashAvailable   decimal.Decimal // 当前可用余额
	EffectiveBudget decimal.Decimal // min(TotalBudget, CashAvailable)
}

// Allocator 每轮扫描开始时计算一次风险预算
type Allocator struct {
	gateway          ports.ExecutionGateway
	portfolioPercent decimal.Decimal // 已除以 100 的比例

	mu   sync.RWMutex
	last *RiskBudget // 最近一次成功计算的预算（供状态接口展示）
}

// NewAllocator 创建分配器；portfolioPercent 以百分数传入（1 表示 1%）
func NewAllocator(gateway ports.ExecutionGateway, portfolioPercent float64) *Allocator {
	return &Allocator{
		gateway:          gateway,
		portfolioPercent: decimal.NewFromFloat(portfolioPercent).Div(decimal.NewFromInt(100)),
	}
}

// ComputeBudget 查询总敞口与可用余额并计算本轮预算
//
// 网关失败时返回错误，调用方应跳过整轮派发——用过期或为零的预算
// 定价风险比少跑一轮更危险。
func (a *Allocator) ComputeBudget(ctx context.Context) (RiskBudget, error) {
	free, err := a.gateway.GetFreeBalance(ctx)
	if err != nil {
		return RiskBudget{}, fmt.Errorf("查询可用余额失败: %w", err)
	}
	exposure, err := a.gateway.GetOpenExposure(ctx)
	if err != nil {
		return RiskBudget{}, fmt.Errorf("查询总敞口失败: %w", err)
	}

	total := exposure.Add(free).Mul(a.portfolioPercent)
	effective := total
	// 钳制：绝不提议投入超过实际流动资金的量
	if effective.GreaterThan(free) {
		effective = free
	}

	budget := RiskBudget{
		TotalBudget:     total,
		CashAvailable:   free,
		EffectiveBudget: effective,
	}

	a.mu.Lock()
	a.last = &budget
	a.mu.Unlock()

	log.Debugf("💰 本轮预算: total=%s cash=%s effective=%s",
		total.StringFixed(4), free.StringFixed(4), effective.StringFixed(4))
	return budget, nil
}

// LastBudget 最近一次成功计算的预算（没有时返回 false）
func (a *Allocator) LastBudget() (RiskBudget, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return RiskBudget{}, false
	}
	return *a.last, true
}
