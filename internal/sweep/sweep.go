package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/brain"
	"github.com/betbot/snipebot/internal/capital"
	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/ports"
	"github.com/betbot/snipebot/internal/reconcile"
	"github.com/betbot/snipebot/internal/watchlist"
)

var log = logrus.WithField("module", "sweep")

// ActionExecutor 把决策落地为网关调用
// 返回 filled=true 表示买单已成交（条目随后被促升）
type ActionExecutor interface {
	Execute(ctx context.Context, item domain.WatchItem, act brain.Action) (filled bool, err error)
}

// Scheduler 有界并发的轮询调度器
//
// 每轮：计算一次预算 → 对监控列表取快照 → 宽度为 N 的 worker 池
// 按快照顺序消费条目 → 阻塞等待整轮完成 → 休眠固定间隔。
// 预算计算失败时跳过整轮；单个条目的失败只影响它自己。
type Scheduler struct {
	watchlist  *watchlist.Watchlist
	allocator  *capital.Allocator
	reconciler *reconcile.Reconciler
	engine     *brain.Engine
	quotes     ports.QuoteSource
	gateway    ports.ExecutionGateway
	executor   ActionExecutor

	width    int
	interval time.Duration
}

// New 创建调度器；width 为并发宽度 N，interval 为两轮之间的休眠
func New(wl *watchlist.Watchlist, alloc *capital.Allocator, rec *reconcile.Reconciler,
	engine *brain.Engine, quotes ports.QuoteSource, gateway ports.ExecutionGateway,
	executor ActionExecutor, width int, interval time.Duration) *Scheduler {
	if width <= 0 {
		width = 8
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		watchlist:  wl,
		allocator:  alloc,
		reconciler: rec,
		engine:     engine,
		quotes:     quotes,
		gateway:    gateway,
		executor:   executor,
		width:      width,
		interval:   interval,
	}
}

// Run 循环执行扫描直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) {
	log.Infof("🚀 扫描调度启动: width=%d interval=%s", s.width, s.interval)
	for {
		budget, err := s.allocator.ComputeBudget(ctx)
		if err != nil {
			// 预算不明时绝不派发：跳过整轮比误定价风险安全
			log.Warnf("⚠️ 预算计算失败，跳过本轮: %v", err)
		} else {
			snap := s.watchlist.Snapshot()
			if len(snap) > 0 {
				s.RunCycle(ctx, snap, budget)
			}
		}

		select {
		case <-ctx.Done():
			log.Info("🛑 扫描调度退出")
			return
		case <-time.After(s.interval):
		}
	}
}

// RunCycle 对一份快照执行一轮完整扫描
//
// 固定 N 个 worker 从通道按快照顺序领取条目：某个 worker 完成后
// 立即领取下一个未开始的条目，整轮并发始终是 min(N, 剩余)。
// WaitGroup 阻塞等待所有条目恰好被处理一次。
func (s *Scheduler) RunCycle(ctx context.Context, snapshot []domain.WatchItem, budget capital.RiskBudget) {
	items := make(chan domain.WatchItem)
	var wg sync.WaitGroup

	width := s.width
	if len(snapshot) < width {
		width = len(snapshot)
	}
	for i := 0; i < width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				s.processItem(ctx, item, budget)
			}
		}()
	}

	for _, item := range snapshot {
		select {
		case <-ctx.Done():
			close(items)
			wg.Wait()
			return
		case items <- item:
		}
	}
	close(items)
	wg.Wait()
}

// processItem 单个条目的工作单元：结算检查 → 决策 → 执行
// 任一步失败都只记日志跳过，绝不让一个条目拖垮整轮
func (s *Scheduler) processItem(ctx context.Context, item domain.WatchItem, budget capital.RiskBudget) {
	active, err := s.reconciler.CheckResolved(ctx, item)
	if err != nil {
		log.Warnf("⚠️ 结算检查失败: id=%s err=%v", item.ID, err)
		return
	}
	if !active {
		return
	}

	// 已投入该市场的成本要从本轮预算里扣掉
	pos, err := s.gateway.GetFillHistory(ctx, item.ID)
	if err != nil {
		log.Warnf("⚠️ 查询已投入成本失败: id=%s err=%v", item.ID, err)
		return
	}
	available := budget.EffectiveBudget.Sub(pos.TotalCost)

	quote, err := s.quotes.GetQuote(ctx, item.AssetID)
	if err != nil {
		log.Warnf("⚠️ 获取盘口失败: id=%s err=%v", item.ID, err)
		return
	}

	act := s.engine.Decide(item, quote, available)
	if act.Kind == brain.ActionNone {
		return
	}

	filled, err := s.executor.Execute(ctx, item, act)
	if err != nil {
		log.Warnf("⚠️ 执行动作失败: id=%s action=%s err=%v", item.ID, act.Kind, err)
		return
	}
	if filled {
		// 持有敞口的条目进入优先分区，后续每轮最先评估
		s.watchlist.Promote(item.ID)
		log.Infof("📈 入场成交: id=%s price=%.4f size=%s",
			item.ID, act.Price.ToDecimal(), act.Size.StringFixed(2))
	}
}
