package services

import (
	"context"
	"fmt"

	"github.com/betbot/snipebot/internal/brain"
	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/ports"
)

// Execute 把决策落地为网关调用，返回买单是否成交
//
// 吃单（take）语义：按 ask 买入后若未立即成交，马上撤掉——
// 这种入场只要当下的流动性，不在盘口留单。挂单（make）则相反，
// 委托留在盘口等待成交。两种入场前都先清掉该市场的既有挂单，
// 避免叠加委托突破条目的预算份额。
func (s *TradingService) Execute(ctx context.Context, item domain.WatchItem, act brain.Action) (bool, error) {
	switch act.Kind {
	case brain.ActionCancelAll:
		return false, s.CancelAllForMarket(ctx, item.ID)
	case brain.ActionTake:
		return s.executeTake(ctx, item, act)
	case brain.ActionMake:
		return s.executeMake(ctx, item, act)
	default:
		return false, nil
	}
}

// CancelAllForMarket 撤销某市场的全部挂单
func (s *TradingService) CancelAllForMarket(ctx context.Context, resourceID string) error {
	if s.dryRun {
		log.Infof("🧪 [dry-run] 撤销全部挂单: market=%s", resourceID)
		return nil
	}
	err := s.policy.Do(ctx, "cancel-market", func(ctx context.Context) error {
		_, err := s.api.CancelMarketOrders(ctx, resourceID)
		return err
	})
	if err != nil {
		return fmt.Errorf("撤销市场挂单失败: %w", err)
	}
	return nil
}

// executeTake 吃单入场：买入 → 未成交立即撤单 → 成交后可选止盈挂单
func (s *TradingService) executeTake(ctx context.Context, item domain.WatchItem, act brain.Action) (bool, error) {
	if err := s.CancelAllForMarket(ctx, item.ID); err != nil {
		return false, err
	}

	result, err := s.PlaceOrder(ctx, ports.PlaceOrderRequest{
		AssetID: item.AssetID,
		Side:    ports.SideBuy,
		Price:   act.Price,
		Size:    act.Size,
		NegRisk: item.NegRisk,
	})
	if err != nil {
		return false, err
	}

	if !result.Filled {
		// 只吃当下的流动性：没成交就不留在盘口
		cancel, err := s.CancelOrder(ctx, result.OrderID)
		if err != nil {
			return false, fmt.Errorf("吃单未成交且撤单失败: %w", err)
		}
		if !cancel.Canceled {
			// 撤单报"已成交"说明订单在提交与撤销之间被吃掉了
			log.Infof("ℹ️ 吃单在撤销前成交: id=%s reason=%s", result.OrderID, cancel.Reason)
			s.maybePlaceTakeProfit(ctx, item, act)
			return true, nil
		}
		return false, nil
	}

	s.maybePlaceTakeProfit(ctx, item, act)
	return true, nil
}

// executeMake 挂单入场：在 bid+tick 留买单等待成交
func (s *TradingService) executeMake(ctx context.Context, item domain.WatchItem, act brain.Action) (bool, error) {
	if err := s.CancelAllForMarket(ctx, item.ID); err != nil {
		return false, err
	}

	result, err := s.PlaceOrder(ctx, ports.PlaceOrderRequest{
		AssetID: item.AssetID,
		Side:    ports.SideBuy,
		Price:   act.Price,
		Size:    act.Size,
		NegRisk: item.NegRisk,
	})
	if err != nil {
		return false, err
	}
	if !result.Filled {
		log.Debugf("📌 挂单留盘: id=%s market=%s price=%.4f", result.OrderID, item.ID, act.Price.ToDecimal())
	}
	return result.Filled, nil
}

// maybePlaceTakeProfit 吃单成交后挂出止盈卖单（配置启用时）
// 止盈单失败只告警：仓位已经建立，卖单可以下轮再补
func (s *TradingService) maybePlaceTakeProfit(ctx context.Context, item domain.WatchItem, act brain.Action) {
	if act.TakeProfit == nil {
		return
	}
	_, err := s.PlaceOrder(ctx, ports.PlaceOrderRequest{
		AssetID: item.AssetID,
		Side:    ports.SideSell,
		Price:   *act.TakeProfit,
		Size:    act.Size,
		NegRisk: item.NegRisk,
	})
	if err != nil {
		log.Warnf("⚠️ 止盈挂单失败: market=%s err=%v", item.ID, err)
		return
	}
	log.Infof("🎯 止盈卖单已挂出: market=%s price=%.4f size=%s",
		item.ID, act.TakeProfit.ToDecimal(), act.Size.StringFixed(2))
}
