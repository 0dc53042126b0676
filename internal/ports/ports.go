package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/snipebot/internal/domain"
)

// QuoteSource 报价源：返回某资产的一档盘口
type QuoteSource interface {
	GetQuote(ctx context.Context, assetID string) (domain.Quote, error)
}

// OrderSide 订单方向
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	AssetID string
	Side    OrderSide
	Price   domain.Price
	Size    decimal.Decimal
	NegRisk bool // neg-risk 市场走独立的交易所合约
}

// PlaceOrderResult 下单结果
type PlaceOrderResult struct {
	OrderID string
	Filled  bool // 是否立即全部成交（matched）
}

// CancelResult 撤单结果
type CancelResult struct {
	Canceled bool
	Reason   string // 撤单失败原因（not_canceled 信息）
}

// OpenOrder 挂单摘要
type OpenOrder struct {
	OrderID string
	AssetID string
	Price   domain.Price
	Size    decimal.Decimal
}

// ResourceState 市场状态
type ResourceState struct {
	Open           bool   // 是否仍接受订单
	Terminal       bool   // 是否已终结
	WinnerKnown    bool   // 终局胜负是否已公布
	WinningAssetID string // 获胜 token 的资产 ID（仅 WinnerKnown 时有效）
	Question       string
}

// ExecutionGateway 执行网关：下单/撤单/持仓/余额/市场状态
// 实现方负责把瞬时网络错误包在统一的重试封套里再返回
type ExecutionGateway interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (CancelResult, error)
	ListOpenOrders(ctx context.Context, resourceID string) ([]OpenOrder, error)
	GetFreeBalance(ctx context.Context) (decimal.Decimal, error)
	GetOpenExposure(ctx context.Context) (decimal.Decimal, error)
	GetResourceState(ctx context.Context, resourceID string) (ResourceState, error)
	GetFillHistory(ctx context.Context, resourceID string) (domain.Position, error)
}

// OutcomeSink 结算记录汇报（追加写；at-least-once 可接受，
// 单次汇报的不变量由 Reconciler 一侧保证）
type OutcomeSink interface {
	Report(ctx context.Context, outcome domain.TradeOutcome) error
}

// CursorStore 目录扫描游标的持久化槽位
type CursorStore interface {
	LoadCursor() (string, error)
	SaveCursor(cursor string) error
}

// ReconciledLedger 已结算资源 ID 的持久化集合
// 用于跨进程重启保持"每个资源最多结算一次"的不变量
type ReconciledLedger interface {
	IsReconciled(resourceID string) (bool, error)
	MarkReconciled(resourceID string, at time.Time) error
}
