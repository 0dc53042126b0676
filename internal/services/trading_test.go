package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/snipebot/internal/brain"
	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/gateway/clob"
	"github.com/betbot/snipebot/internal/ports"
	"github.com/betbot/snipebot/pkg/retry"
)

type placedOrder struct {
	payload *clob.SignedOrderPayload
	spec    clob.OrderSpec
}

type fakeAPI struct {
	mu sync.Mutex

	book       *clob.OrderBookSummary
	bookErr    error
	bookCalls  int
	market     *clob.APIMarket
	trades     []clob.TradeRecord
	openOrders []clob.OpenOrderRecord
	balance    decimal.Decimal
	value      decimal.Decimal

	placed         []placedOrder
	postStatus     string // matched / live
	postErr        error
	canceled       []string
	cancelRefused  map[string]string
	marketCancels  []string
}

func (f *fakeAPI) GetOrderBook(ctx context.Context, tokenID string) (*clob.OrderBookSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookCalls++
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return f.book, nil
}

func (f *fakeAPI) GetMarket(ctx context.Context, conditionID string) (*clob.APIMarket, error) {
	return f.market, nil
}

func (f *fakeAPI) GetCollateralBalance(ctx context.Context) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeAPI) GetPositionsValue(ctx context.Context) (decimal.Decimal, error) {
	return f.value, nil
}

func (f *fakeAPI) GetOpenOrders(ctx context.Context, conditionID string) ([]clob.OpenOrderRecord, error) {
	return f.openOrders, nil
}

func (f *fakeAPI) GetTrades(ctx context.Context, conditionID string) ([]clob.TradeRecord, error) {
	return f.trades, nil
}

func (f *fakeAPI) Funder() string {
	return "0xFunder"
}

func (f *fakeAPI) BuildSignedOrder(spec clob.OrderSpec) (*clob.SignedOrderPayload, error) {
	side := "SELL"
	if spec.Buy {
		side = "BUY"
	}
	return &clob.SignedOrderPayload{TokenID: spec.TokenID, Side: side, Signature: "0xsig"}, nil
}

func (f *fakeAPI) PostOrder(ctx context.Context, payload *clob.SignedOrderPayload) (*clob.PostOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return nil, f.postErr
	}
	f.placed = append(f.placed, placedOrder{payload: payload})
	status := f.postStatus
	if status == "" {
		status = "live"
	}
	return &clob.PostOrderResponse{Success: true, OrderID: "ord-1", Status: status}, nil
}

func (f *fakeAPI) CancelOrder(ctx context.Context, orderID string) (*clob.CancelResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reason, refused := f.cancelRefused[orderID]; refused {
		return &clob.CancelResponse{NotCanceled: map[string]string{orderID: reason}}, nil
	}
	f.canceled = append(f.canceled, orderID)
	return &clob.CancelResponse{Canceled: []string{orderID}}, nil
}

func (f *fakeAPI) CancelMarketOrders(ctx context.Context, conditionID string) (*clob.CancelResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketCancels = append(f.marketCancels, conditionID)
	return &clob.CancelResponse{}, nil
}

func quickPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func testItem() domain.WatchItem {
	return domain.WatchItem{
		ID:       "cond-1",
		AssetID:  "tok-1",
		TickSize: domain.Price{Pips: 100},
	}
}

func TestGetQuoteFromRestBook(t *testing.T) {
	api := &fakeAPI{book: &clob.OrderBookSummary{
		Bids: []clob.OrderLevel{{Price: "0.10"}, {Price: "0.20"}},
		Asks: []clob.OrderLevel{{Price: "0.30"}, {Price: "0.22"}},
	}}
	s := NewTradingService(api, nil, quickPolicy(), false)

	q, err := s.GetQuote(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PriceFromCents(20), q.Bid)
	assert.Equal(t, domain.PriceFromCents(22), q.Ask)
}

func TestGetQuoteRetriesTransientFailure(t *testing.T) {
	api := &fakeAPI{bookErr: errors.New("connection reset")}
	s := NewTradingService(api, nil, quickPolicy(), false)

	_, err := s.GetQuote(context.Background(), "tok-1")
	require.Error(t, err)
	assert.Equal(t, 2, api.bookCalls, "transient failure must be retried")
}

func TestGetFillHistoryAggregation(t *testing.T) {
	api := &fakeAPI{trades: []clob.TradeRecord{
		{Side: "BUY", TraderSide: "TAKER", Price: "0.20", Size: "30", Status: "CONFIRMED",
			MakerOrders: []clob.MakerOrderRecord{
				{MakerAddress: "0xother1", MatchedAmount: "20", Price: "0.19", Side: "SELL"},
				{MakerAddress: "0xother2", MatchedAmount: "10", Price: "0.20", Side: "SELL"},
			}},
		{Side: "BUY", TraderSide: "TAKER", Price: "0.25", Size: "10", Status: "MINED"}, // 老记录无 maker_orders
		{Side: "SELL", TraderSide: "TAKER", Price: "0.50", Size: "5", Status: "CONFIRMED"},
		{Side: "BUY", TraderSide: "TAKER", Price: "0.99", Size: "99", Status: "FAILED"},   // 忽略
		{Side: "BUY", TraderSide: "TAKER", Price: "0.98", Size: "98", Status: "RETRYING"}, // 忽略
	}}
	s := NewTradingService(api, nil, quickPolicy(), false)

	pos, err := s.GetFillHistory(context.Background(), "cond-1")
	require.NoError(t, err)
	// 30*0.20 + 10*0.25 - 5*0.50 = 6 + 2.5 - 2.5 = 6
	assert.True(t, pos.TotalCost.Equal(decimal.RequireFromString("6")), "cost=%s", pos.TotalCost)
	assert.True(t, pos.TotalSize.Equal(decimal.NewFromInt(35)), "size=%s", pos.TotalSize)
}

func TestGetFillHistoryMakerSideCountsOwnOrdersOnly(t *testing.T) {
	// 本方是 maker 的成交：顶层 price/size 是对手吃单的聚合，
	// 只有 maker_orders 里本资金地址的那几条才是本方的成交
	api := &fakeAPI{trades: []clob.TradeRecord{
		{Side: "SELL", TraderSide: "MAKER", Price: "0.30", Size: "100", Status: "CONFIRMED",
			MakerOrders: []clob.MakerOrderRecord{
				{MakerAddress: "0xfunder", MatchedAmount: "40", Price: "0.21", Side: "BUY"},
				{MakerAddress: "0xSomeoneElse", MatchedAmount: "60", Price: "0.22", Side: "BUY"},
			}},
		{Side: "SELL", TraderSide: "MAKER", Price: "0.60", Size: "50", Status: "MATCHED",
			MakerOrders: []clob.MakerOrderRecord{
				{MakerAddress: "0xFUNDER", MatchedAmount: "10", Price: "0.55", Side: "SELL"},
			}},
	}}
	s := NewTradingService(api, nil, quickPolicy(), false)

	pos, err := s.GetFillHistory(context.Background(), "cond-1")
	require.NoError(t, err)
	// 40*0.21 - 10*0.55 = 8.4 - 5.5 = 2.9；对手盘的 60 股不计
	assert.True(t, pos.TotalCost.Equal(decimal.RequireFromString("2.9")), "cost=%s", pos.TotalCost)
	assert.True(t, pos.TotalSize.Equal(decimal.NewFromInt(30)), "size=%s", pos.TotalSize)
}

func TestGetResourceStateResolvedMarket(t *testing.T) {
	api := &fakeAPI{market: &clob.APIMarket{
		ConditionID: "cond-1",
		Question:    "will it happen?",
		Closed:      true,
		Tokens: []clob.Token{
			{TokenID: "tok-yes", Outcome: "Yes", Winner: false},
			{TokenID: "tok-no", Outcome: "No", Winner: true},
		},
	}}
	s := NewTradingService(api, nil, quickPolicy(), false)

	state, err := s.GetResourceState(context.Background(), "cond-1")
	require.NoError(t, err)
	assert.True(t, state.Terminal)
	assert.False(t, state.Open)
	assert.True(t, state.WinnerKnown)
	assert.Equal(t, "tok-no", state.WinningAssetID)
	assert.Equal(t, "will it happen?", state.Question)
}

func TestExecuteTakeMatchedPlacesTakeProfit(t *testing.T) {
	api := &fakeAPI{postStatus: "matched"}
	s := NewTradingService(api, nil, quickPolicy(), false)

	tp := domain.PriceFromCents(80)
	filled, err := s.Execute(context.Background(), testItem(), brain.Action{
		Kind:       brain.ActionTake,
		Price:      domain.PriceFromCents(22),
		Size:       decimal.NewFromInt(50),
		TakeProfit: &tp,
	})
	require.NoError(t, err)
	assert.True(t, filled)
	// 入场前先清掉既有挂单
	assert.Equal(t, []string{"cond-1"}, api.marketCancels)
	// 买单 + 止盈卖单
	require.Len(t, api.placed, 2)
	assert.Equal(t, "BUY", api.placed[0].payload.Side)
	assert.Equal(t, "SELL", api.placed[1].payload.Side)
}

func TestExecuteTakeUnmatchedCancelsImmediately(t *testing.T) {
	api := &fakeAPI{postStatus: "live"}
	s := NewTradingService(api, nil, quickPolicy(), false)

	filled, err := s.Execute(context.Background(), testItem(), brain.Action{
		Kind:  brain.ActionTake,
		Price: domain.PriceFromCents(22),
		Size:  decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.False(t, filled)
	assert.Equal(t, []string{"ord-1"}, api.canceled, "unmatched take must be canceled")
}

func TestExecuteTakeFilledDuringCancelRace(t *testing.T) {
	// 撤单被拒绝 = 订单在提交与撤销之间成交了
	api := &fakeAPI{
		postStatus:    "live",
		cancelRefused: map[string]string{"ord-1": "order already matched"},
	}
	s := NewTradingService(api, nil, quickPolicy(), false)

	filled, err := s.Execute(context.Background(), testItem(), brain.Action{
		Kind:  brain.ActionTake,
		Price: domain.PriceFromCents(22),
		Size:  decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.True(t, filled, "refused cancel means the order filled")
}

func TestExecuteMakeLeavesRestingOrder(t *testing.T) {
	api := &fakeAPI{postStatus: "live"}
	s := NewTradingService(api, nil, quickPolicy(), false)

	filled, err := s.Execute(context.Background(), testItem(), brain.Action{
		Kind:  brain.ActionMake,
		Price: domain.PriceFromCents(21),
		Size:  decimal.NewFromInt(40),
	})
	require.NoError(t, err)
	assert.False(t, filled)
	assert.Empty(t, api.canceled, "resting make order must not be canceled")
	require.Len(t, api.placed, 1)
}

func TestExecuteCancelAll(t *testing.T) {
	api := &fakeAPI{}
	s := NewTradingService(api, nil, quickPolicy(), false)

	filled, err := s.Execute(context.Background(), testItem(), brain.Action{Kind: brain.ActionCancelAll})
	require.NoError(t, err)
	assert.False(t, filled)
	assert.Equal(t, []string{"cond-1"}, api.marketCancels)
	assert.Empty(t, api.placed)
}

func TestDryRunPlacesNothing(t *testing.T) {
	api := &fakeAPI{}
	s := NewTradingService(api, nil, quickPolicy(), true)

	result, err := s.PlaceOrder(context.Background(), ports.PlaceOrderRequest{
		AssetID: "tok-1",
		Side:    ports.SideBuy,
		Price:   domain.PriceFromCents(22),
		Size:    decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.OrderID, "dry-"))
	assert.Empty(t, api.placed, "dry run must not reach the exchange")
}

func TestListOpenOrdersSubtractsMatched(t *testing.T) {
	api := &fakeAPI{openOrders: []clob.OpenOrderRecord{
		{ID: "o1", AssetID: "tok-1", Price: "0.21", OriginalSize: "40", SizeMatched: "15"},
	}}
	s := NewTradingService(api, nil, quickPolicy(), false)

	orders, err := s.ListOpenOrders(context.Background(), "cond-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.True(t, orders[0].Size.Equal(decimal.NewFromInt(25)), "remaining=%s", orders[0].Size)
}
