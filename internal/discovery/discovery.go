// Package discovery 扫描市场目录，把符合条件的市场送进监控列表
package discovery

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/gateway/clob"
	"github.com/betbot/snipebot/internal/ports"
	"github.com/betbot/snipebot/internal/watchlist"
)

var log = logrus.WithField("module", "discovery")

// marketsAPI 目录扫描依赖的 CLOB 客户端操作子集
type marketsAPI interface {
	GetMarketsPage(ctx context.Context, cursor string) (*clob.MarketsPage, error)
	GetMarket(ctx context.Context, conditionID string) (*clob.APIMarket, error)
	GetPositions(ctx context.Context) ([]clob.DataPosition, error)
	GetOpenOrders(ctx context.Context, conditionID string) ([]clob.OpenOrderRecord, error)
}

// Scanner 市场发现
//
// 启动时先把账户已有持仓重新挂回监控列表（带优先级——这些仓位
// 需要立刻被管理），再从持久化游标开始翻目录。之后按随机抖动的
// 间隔增量拉取新页；游标逐页落盘，重启后续传而不是从头扫。
type Scanner struct {
	api     marketsAPI
	wl      *watchlist.Watchlist
	cursors ports.CursorStore
	ledger  ports.ReconciledLedger

	scanMin time.Duration
	scanMax time.Duration
	now     func() time.Time
}

// New 创建扫描器
func New(api marketsAPI, wl *watchlist.Watchlist, cursors ports.CursorStore, ledger ports.ReconciledLedger, scanMin, scanMax time.Duration) *Scanner {
	if scanMin <= 0 {
		scanMin = 10 * time.Second
	}
	if scanMax < scanMin {
		scanMax = scanMin
	}
	return &Scanner{
		api:     api,
		wl:      wl,
		cursors: cursors,
		ledger:  ledger,
		scanMin: scanMin,
		scanMax: scanMax,
		now:     time.Now,
	}
}

// Run 先重挂持仓、跑一轮全量扫描，然后进入增量轮询
func (s *Scanner) Run(ctx context.Context) {
	if err := s.Reattach(ctx); err != nil {
		log.Warnf("⚠️ 重挂持仓失败: %v", err)
	}
	s.ScanOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("🛑 目录扫描退出")
			return
		case <-time.After(s.jitter()):
		}
		s.ScanOnce(ctx)
	}
}

// jitter 两次扫描之间的随机间隔
func (s *Scanner) jitter() time.Duration {
	span := s.scanMax - s.scanMin
	if span <= 0 {
		return s.scanMin
	}
	return s.scanMin + time.Duration(rand.Int63n(int64(span)))
}

// ScanOnce 从持久化游标开始翻页直到末页
// 游标逐页保存；末页哨兵不落盘，下次轮询从同一位置重查新市场
func (s *Scanner) ScanOnce(ctx context.Context) {
	cursor, err := s.cursors.LoadCursor()
	if err != nil {
		log.Warnf("⚠️ 读取游标失败，从头扫描: %v", err)
		cursor = ""
	}

	added := 0
	for {
		if ctx.Err() != nil {
			return
		}
		page, err := s.api.GetMarketsPage(ctx, cursor)
		if err != nil {
			log.Warnf("⚠️ 拉取目录页失败: cursor=%q err=%v", cursor, err)
			return
		}
		for i := range page.Data {
			if s.consider(&page.Data[i]) {
				added++
			}
		}
		if page.NextCursor == "" || page.NextCursor == clob.EndCursor {
			break
		}
		cursor = page.NextCursor
		if err := s.cursors.SaveCursor(cursor); err != nil {
			log.Warnf("⚠️ 保存游标失败: %v", err)
		}
	}
	if added > 0 {
		log.Infof("🔍 目录扫描完成: 新增 %d 个市场, 监控中 %d", added, s.wl.Size())
	}
}

// consider 过滤单个市场并在符合条件时入列
func (s *Scanner) consider(m *clob.APIMarket) bool {
	item, ok := s.buildItem(m)
	if !ok {
		return false
	}
	if s.wl.Contains(item.ID) {
		// 已在监控中：刷新字段但不算新增
		s.wl.InsertOrUpdate(item)
		return false
	}
	if done, err := s.ledger.IsReconciled(item.ID); err != nil || done {
		// 已结算的市场重新出现时绝不再入列
		return false
	}
	s.wl.InsertOrUpdate(item)
	return true
}

// buildItem 市场条目转换与过滤规则
func (s *Scanner) buildItem(m *clob.APIMarket) (domain.WatchItem, bool) {
	if m.Closed || !m.Active || !m.AcceptingOrders {
		return domain.WatchItem{}, false
	}
	// 聚合型市场（标题带前缀）不符合单市场策略
	if strings.HasPrefix(m.Question, "[Single Market]") {
		return domain.WatchItem{}, false
	}
	if len(m.Tokens) < 2 || m.Tokens[0].TokenID == "" || m.Tokens[1].TokenID == "" {
		return domain.WatchItem{}, false
	}
	if m.EndDateISO == "" {
		return domain.WatchItem{}, false
	}
	endAt, err := time.Parse(time.RFC3339, m.EndDateISO)
	if err != nil || !endAt.After(s.now()) {
		return domain.WatchItem{}, false
	}

	item := domain.WatchItem{
		ID:             m.ConditionID,
		AssetID:        tradableToken(m.Tokens),
		Question:       m.Question,
		TickSize:       domain.PriceFromDecimal(m.MinimumTickSize),
		ActivationTime: endAt,
		NegRisk:        m.NegRisk,
	}
	if !item.IsValid() {
		return domain.WatchItem{}, false
	}
	return item, true
}

// tradableToken 选择被交易一侧的 token（NO 侧；找不到时取第二个）
func tradableToken(tokens []clob.Token) string {
	for _, tok := range tokens {
		if strings.EqualFold(tok.Outcome, "No") {
			return tok.TokenID
		}
	}
	return tokens[1].TokenID
}

// Reattach 把账户已有持仓和挂单对应的市场重新挂回监控列表
//
// 重启后这些市场可能已不在目录扫描的增量窗口里，但仓位和留在
// 盘口的委托仍然需要管理（止盈、撤单、结算）。挂回后立即促升。
func (s *Scanner) Reattach(ctx context.Context) error {
	positions, err := s.api.GetPositions(ctx)
	if err != nil {
		return err
	}

	attached := 0
	for _, pos := range positions {
		if pos.ConditionID == "" || pos.Redeemable {
			continue
		}
		if done, err := s.ledger.IsReconciled(pos.ConditionID); err != nil || done {
			continue
		}

		market, err := s.api.GetMarket(ctx, pos.ConditionID)
		if err != nil {
			log.Warnf("⚠️ 查询持仓市场失败: id=%s err=%v", pos.ConditionID, err)
			continue
		}
		item, ok := s.buildItem(market)
		if !ok {
			// 市场已终结：留给结算器处理，仍然入列让扫描流程发现它
			item = domain.WatchItem{
				ID:             pos.ConditionID,
				AssetID:        pos.Asset,
				Question:       pos.Title,
				TickSize:       domain.PriceFromDecimal(market.MinimumTickSize),
				ActivationTime: s.now(),
				NegRisk:        market.NegRisk,
			}
			if item.TickSize.Pips <= 0 {
				item.TickSize = domain.PriceFromCents(1)
			}
		}
		s.wl.InsertOrUpdate(item)
		s.wl.Promote(item.ID)
		attached++
	}

	// 只有挂单没有持仓的市场同样要挂回：未成交的买单还留在
	// 盘口，不挂回就没人撤它
	orders, err := s.api.GetOpenOrders(ctx, "")
	if err != nil {
		log.Warnf("⚠️ 查询账户挂单失败: %v", err)
	}
	for _, rec := range orders {
		if rec.Market == "" || s.wl.Contains(rec.Market) {
			continue
		}
		if done, err := s.ledger.IsReconciled(rec.Market); err != nil || done {
			continue
		}

		market, err := s.api.GetMarket(ctx, rec.Market)
		if err != nil {
			log.Warnf("⚠️ 查询挂单市场失败: id=%s err=%v", rec.Market, err)
			continue
		}
		item, ok := s.buildItem(market)
		if !ok {
			item = domain.WatchItem{
				ID:             rec.Market,
				AssetID:        rec.AssetID,
				Question:       market.Question,
				TickSize:       domain.PriceFromDecimal(market.MinimumTickSize),
				ActivationTime: s.now(),
				NegRisk:        market.NegRisk,
			}
			if item.TickSize.Pips <= 0 {
				item.TickSize = domain.PriceFromCents(1)
			}
		}
		s.wl.InsertOrUpdate(item)
		s.wl.Promote(item.ID)
		attached++
	}

	if attached > 0 {
		log.Infof("🔗 已重挂 %d 个持仓/挂单市场（带优先级）", attached)
	}
	return nil
}
