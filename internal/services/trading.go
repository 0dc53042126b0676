package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/gateway/clob"
	"github.com/betbot/snipebot/internal/gateway/stream"
	"github.com/betbot/snipebot/internal/ports"
	"github.com/betbot/snipebot/pkg/retry"
)

var log = logrus.WithField("module", "trading")

// clobAPI 交易服务依赖的 CLOB 客户端操作子集
type clobAPI interface {
	GetOrderBook(ctx context.Context, tokenID string) (*clob.OrderBookSummary, error)
	GetMarket(ctx context.Context, conditionID string) (*clob.APIMarket, error)
	GetCollateralBalance(ctx context.Context) (decimal.Decimal, error)
	GetPositionsValue(ctx context.Context) (decimal.Decimal, error)
	GetOpenOrders(ctx context.Context, conditionID string) ([]clob.OpenOrderRecord, error)
	GetTrades(ctx context.Context, conditionID string) ([]clob.TradeRecord, error)
	Funder() string
	BuildSignedOrder(spec clob.OrderSpec) (*clob.SignedOrderPayload, error)
	PostOrder(ctx context.Context, payload *clob.SignedOrderPayload) (*clob.PostOrderResponse, error)
	CancelOrder(ctx context.Context, orderID string) (*clob.CancelResponse, error)
	CancelMarketOrders(ctx context.Context, conditionID string) (*clob.CancelResponse, error)
}

// TradingService 执行网关与报价源的实现
//
// 读类调用统一包在重试封套里；下单不重试——提交类请求失败后
// 状态不明，重试可能造成重复委托，宁可让该条目本轮 no-op。
// 行情推送可用时报价走本地缓存，过期或未订阅时回退 REST。
type TradingService struct {
	api    clobAPI
	quotes *stream.QuoteCache // 可为 nil（纯 REST 轮询模式）
	policy retry.Policy
	dryRun bool
}

// NewTradingService 创建交易服务
func NewTradingService(api clobAPI, quotes *stream.QuoteCache, policy retry.Policy, dryRun bool) *TradingService {
	return &TradingService{
		api:    api,
		quotes: quotes,
		policy: policy,
		dryRun: dryRun,
	}
}

// GetQuote 返回资产的一档盘口
// 优先读行情缓存；未命中回退 REST 并顺手补订阅
func (s *TradingService) GetQuote(ctx context.Context, assetID string) (domain.Quote, error) {
	if s.quotes != nil {
		if q, ok := s.quotes.Lookup(assetID); ok {
			return q, nil
		}
	}

	var book *clob.OrderBookSummary
	err := s.policy.Do(ctx, "book", func(ctx context.Context) error {
		var err error
		book, err = s.api.GetOrderBook(ctx, assetID)
		return err
	})
	if err != nil {
		return domain.Quote{}, err
	}

	if s.quotes != nil {
		if err := s.quotes.Subscribe(assetID); err != nil {
			log.Debugf("补订阅失败: asset=%s err=%v", assetID, err)
		}
	}
	return quoteFromBook(book), nil
}

// quoteFromBook 盘口快照取顶档（档位按价格排序，最优档在末尾）
func quoteFromBook(book *clob.OrderBookSummary) domain.Quote {
	var q domain.Quote
	if n := len(book.Bids); n > 0 {
		if v, err := decimal.NewFromString(book.Bids[n-1].Price); err == nil {
			q.Bid = domain.PriceFromDecimal(v.InexactFloat64())
			q.HasBid = true
		}
	}
	if n := len(book.Asks); n > 0 {
		if v, err := decimal.NewFromString(book.Asks[n-1].Price); err == nil {
			q.Ask = domain.PriceFromDecimal(v.InexactFloat64())
			q.HasAsk = true
		}
	}
	return q
}

// PlaceOrder 提交订单（单次尝试，不重试）
func (s *TradingService) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (ports.PlaceOrderResult, error) {
	if s.dryRun {
		log.Infof("🧪 [dry-run] 下单: asset=%s side=%s price=%.4f size=%s",
			req.AssetID, req.Side, req.Price.ToDecimal(), req.Size.StringFixed(2))
		return ports.PlaceOrderResult{OrderID: "dry-" + uuid.NewString(), Filled: false}, nil
	}

	payload, err := s.api.BuildSignedOrder(clob.OrderSpec{
		TokenID: req.AssetID,
		Buy:     req.Side == ports.SideBuy,
		Price:   req.Price,
		Size:    req.Size,
		NegRisk: req.NegRisk,
	})
	if err != nil {
		return ports.PlaceOrderResult{}, retry.Permanent(err)
	}

	resp, err := s.api.PostOrder(ctx, payload)
	if err != nil {
		return ports.PlaceOrderResult{}, err
	}
	return ports.PlaceOrderResult{OrderID: resp.OrderID, Filled: resp.IsMatched()}, nil
}

// CancelOrder 撤销单个订单
func (s *TradingService) CancelOrder(ctx context.Context, orderID string) (ports.CancelResult, error) {
	if s.dryRun {
		return ports.CancelResult{Canceled: true}, nil
	}

	var resp *clob.CancelResponse
	err := s.policy.Do(ctx, "cancel", func(ctx context.Context) error {
		var err error
		resp, err = s.api.CancelOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return ports.CancelResult{}, err
	}
	for _, id := range resp.Canceled {
		if id == orderID {
			return ports.CancelResult{Canceled: true}, nil
		}
	}
	// not_canceled 给出原因（通常是订单已成交或已不存在）
	return ports.CancelResult{Canceled: false, Reason: resp.NotCanceled[orderID]}, nil
}

// ListOpenOrders 查询某市场的全部挂单
func (s *TradingService) ListOpenOrders(ctx context.Context, resourceID string) ([]ports.OpenOrder, error) {
	var records []clob.OpenOrderRecord
	err := s.policy.Do(ctx, "orders", func(ctx context.Context) error {
		var err error
		records, err = s.api.GetOpenOrders(ctx, resourceID)
		return err
	})
	if err != nil {
		return nil, err
	}

	orders := make([]ports.OpenOrder, 0, len(records))
	for _, rec := range records {
		price, err := decimal.NewFromString(rec.Price)
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(rec.OriginalSize)
		if err != nil {
			continue
		}
		if matched, err := decimal.NewFromString(rec.SizeMatched); err == nil {
			size = size.Sub(matched)
		}
		orders = append(orders, ports.OpenOrder{
			OrderID: rec.ID,
			AssetID: rec.AssetID,
			Price:   domain.PriceFromDecimal(price.InexactFloat64()),
			Size:    size,
		})
	}
	return orders, nil
}

// GetFreeBalance 可用抵押品余额
func (s *TradingService) GetFreeBalance(ctx context.Context) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.policy.Do(ctx, "balance", func(ctx context.Context) error {
		var err error
		balance, err = s.api.GetCollateralBalance(ctx)
		return err
	})
	return balance, err
}

// GetOpenExposure 全部持仓的当前市值
func (s *TradingService) GetOpenExposure(ctx context.Context) (decimal.Decimal, error) {
	var value decimal.Decimal
	err := s.policy.Do(ctx, "exposure", func(ctx context.Context) error {
		var err error
		value, err = s.api.GetPositionsValue(ctx)
		return err
	})
	return value, err
}

// GetResourceState 市场当前状态
func (s *TradingService) GetResourceState(ctx context.Context, resourceID string) (ports.ResourceState, error) {
	var market *clob.APIMarket
	err := s.policy.Do(ctx, "market", func(ctx context.Context) error {
		var err error
		market, err = s.api.GetMarket(ctx, resourceID)
		return err
	})
	if err != nil {
		return ports.ResourceState{}, err
	}

	state := ports.ResourceState{
		Open:     market.Active && market.AcceptingOrders && !market.Closed,
		Terminal: market.Closed,
		Question: market.Question,
	}
	for _, tok := range market.Tokens {
		if tok.Winner {
			state.WinnerKnown = true
			state.WinningAssetID = tok.TokenID
			break
		}
	}
	return state, nil
}

// settledTrade 成交是否计入持仓
// RETRYING/FAILED 可能回滚不计；MATCHED 虽未上链也要计，
// 否则刚成交的一轮会把同一份预算再花一遍
func settledTrade(status string) bool {
	switch strings.ToUpper(status) {
	case "MATCHED", "MINED", "CONFIRMED":
		return true
	}
	return false
}

// GetFillHistory 聚合某市场的成交得到净持仓
//
// /trades 的每一行是账户参与的一笔撮合。本方是 taker 时顶层
// price 对整笔成交量生效；本方是 maker 时顶层 size 是对手吃单
// 横跨所有 maker 的总量，本方实际成交只在 maker_orders 里属于
// 本资金地址的那几条。买入累加成本与份额，卖出等量冲减。
func (s *TradingService) GetFillHistory(ctx context.Context, resourceID string) (domain.Position, error) {
	var trades []clob.TradeRecord
	err := s.policy.Do(ctx, "trades", func(ctx context.Context) error {
		var err error
		trades, err = s.api.GetTrades(ctx, resourceID)
		return err
	})
	if err != nil {
		return domain.Position{}, err
	}

	funder := s.api.Funder()
	var pos domain.Position
	for _, tr := range trades {
		if !settledTrade(tr.Status) {
			continue
		}

		if strings.EqualFold(tr.TraderSide, "MAKER") {
			for _, mo := range tr.MakerOrders {
				if !strings.EqualFold(mo.MakerAddress, funder) {
					continue
				}
				price, err := decimal.NewFromString(mo.Price)
				if err != nil {
					continue
				}
				amount, err := decimal.NewFromString(mo.MatchedAmount)
				if err != nil {
					continue
				}
				applyFill(&pos, mo.Side, price, amount)
			}
			continue
		}

		price, err := decimal.NewFromString(tr.Price)
		if err != nil {
			continue
		}
		// taker 的成交量取各 maker 成交量之和；老记录没有
		// maker_orders 时退回顶层 size
		size := decimal.Zero
		for _, mo := range tr.MakerOrders {
			if amount, err := decimal.NewFromString(mo.MatchedAmount); err == nil {
				size = size.Add(amount)
			}
		}
		if size.IsZero() {
			if v, err := decimal.NewFromString(tr.Size); err == nil {
				size = v
			}
		}
		applyFill(&pos, tr.Side, price, size)
	}
	if pos.TotalSize.IsNegative() {
		return domain.Position{}, fmt.Errorf("市场 %s 的成交聚合出负持仓", resourceID)
	}
	return pos, nil
}

func applyFill(pos *domain.Position, side string, price, size decimal.Decimal) {
	cost := price.Mul(size)
	if strings.EqualFold(side, "BUY") {
		pos.TotalCost = pos.TotalCost.Add(cost)
		pos.TotalSize = pos.TotalSize.Add(size)
	} else {
		pos.TotalCost = pos.TotalCost.Sub(cost)
		pos.TotalSize = pos.TotalSize.Sub(size)
	}
}
