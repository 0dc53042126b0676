package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/ports"
	"github.com/betbot/snipebot/internal/watchlist"
)

var log = logrus.WithField("module", "reconcile")

// Reconciler 终结市场的结算器
//
// 每个条目在每轮扫描中先经过结算检查，再进入决策。市场终结时，
// 结算器先把条目从监控列表摘除（用 Remove 的返回值裁定所有权，
// 并发 worker 里只有一个能赢），再等待终局胜负公布、拉取成交
// 聚合、汇报结算记录。已结算 ID 写入持久化台账，跨重启保持
// "每个市场最多结算一次"。
type Reconciler struct {
	gateway   ports.ExecutionGateway
	watchlist *watchlist.Watchlist
	ledger    ports.ReconciledLedger
	sink      ports.OutcomeSink

	pollInterval time.Duration // 等待终局结果的轮询间隔
	pollMax      int           // 最大轮询次数

	now func() time.Time // 测试注入
}

// New 创建结算器
func New(gateway ports.ExecutionGateway, wl *watchlist.Watchlist, ledger ports.ReconciledLedger, sink ports.OutcomeSink, pollInterval time.Duration, pollMax int) *Reconciler {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if pollMax <= 0 {
		pollMax = 30
	}
	return &Reconciler{
		gateway:      gateway,
		watchlist:    wl,
		ledger:       ledger,
		sink:         sink,
		pollInterval: pollInterval,
		pollMax:      pollMax,
		now:          time.Now,
	}
}

// CheckResolved 检查条目对应的市场是否已终结
//
// 返回 stillActive=true 表示市场开放接单，调用方继续决策流程；
// false 表示条目已离开监控（本 worker 完成了结算，或所有权归了
// 别的 worker），或市场暂停接单（条目留在监控里，本轮跳过决策）。
// 出错时返回 stillActive=false 并带错误——宁可本轮跳过该条目，
// 也不要在状态不明时继续下单。
func (r *Reconciler) CheckResolved(ctx context.Context, item domain.WatchItem) (bool, error) {
	state, err := r.gateway.GetResourceState(ctx, item.ID)
	if err != nil {
		return false, fmt.Errorf("查询市场状态失败: %w", err)
	}
	if !state.Terminal {
		if !state.Open {
			// 暂停接单但未终结：不决策也不结算，留在监控里等恢复
			log.Debugf("⏸️ 市场暂停接单，本轮跳过: id=%s", item.ID)
			return false, nil
		}
		return true, nil
	}

	// 先摘除再结算：Remove 返回 false 说明别的 worker 已经拿走了
	// 这个条目的结算所有权，本 worker 直接退出
	if !r.watchlist.Remove(item.ID) {
		return false, nil
	}

	done, err := r.ledger.IsReconciled(item.ID)
	if err != nil {
		return false, fmt.Errorf("读取结算台账失败: %w", err)
	}
	if done {
		// 已结算的市场被重新发现又走到了终结分支：不变量被破坏
		log.Warnf("⚠️ 市场已结算却再次出现在监控列表: id=%s", item.ID)
		return false, nil
	}

	if err := r.settle(ctx, item, state); err != nil {
		return false, err
	}
	return false, nil
}

// settle 等待终局结果、聚合成交并汇报结算记录
func (r *Reconciler) settle(ctx context.Context, item domain.WatchItem, state ports.ResourceState) error {
	state, err := r.awaitWinner(ctx, item.ID, state)
	if err != nil {
		return err
	}

	pos, err := r.gateway.GetFillHistory(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("查询成交历史失败: %w", err)
	}

	if pos.IsEmpty() {
		// 没有成交过的市场终结：只记台账，不产生结算记录
		log.Infof("🏁 市场终结（无持仓）: id=%s", item.ID)
		return r.ledger.MarkReconciled(item.ID, r.now())
	}

	label := item.Question
	if state.Question != "" {
		label = state.Question
	}
	won := state.WinningAssetID == item.AssetID
	outcome, err := domain.NewTradeOutcome(item.ID, label, won, pos, r.now())
	if err != nil {
		return fmt.Errorf("计算结算记录失败: %w", err)
	}

	if err := r.sink.Report(ctx, outcome); err != nil {
		return fmt.Errorf("汇报结算记录失败: %w", err)
	}
	if err := r.ledger.MarkReconciled(item.ID, r.now()); err != nil {
		return fmt.Errorf("写入结算台账失败: %w", err)
	}

	log.Infof("✅ 市场已结算: id=%s won=%v size=%s cost=%s pnl=%s",
		item.ID, outcome.Won, outcome.Size.StringFixed(2),
		outcome.TotalCost.StringFixed(4), outcome.PnL.StringFixed(4))
	return nil
}

// awaitWinner 有界轮询等待终局胜负公布（睡眠等待，不忙转）
func (r *Reconciler) awaitWinner(ctx context.Context, resourceID string, state ports.ResourceState) (ports.ResourceState, error) {
	for attempt := 0; !state.WinnerKnown; attempt++ {
		if attempt >= r.pollMax {
			return state, fmt.Errorf("等待终局结果超时: id=%s attempts=%d", resourceID, r.pollMax)
		}
		log.Debugf("⏳ 终局结果未公布，等待中: id=%s attempt=%d", resourceID, attempt+1)
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-time.After(r.pollInterval):
		}
		next, err := r.gateway.GetResourceState(ctx, resourceID)
		if err != nil {
			return state, fmt.Errorf("查询终局结果失败: %w", err)
		}
		state = next
	}
	return state, nil
}
