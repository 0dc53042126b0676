package clob

// OrderLevel 盘口单档（价格/数量均为字符串，按 API 原样承载）
type OrderLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderBookSummary 单个 token 的盘口快照
// bids 按价格升序、asks 按价格降序排列（API 约定），
// 最优档在各自切片的末尾
type OrderBookSummary struct {
	Market    string       `json:"market"`
	AssetID   string       `json:"asset_id"`
	Timestamp string       `json:"timestamp"`
	Bids      []OrderLevel `json:"bids"`
	Asks      []OrderLevel `json:"asks"`
}

// Token 市场里的一个结果 token
type Token struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

// APIMarket CLOB /markets 返回的市场条目
type APIMarket struct {
	ConditionID     string  `json:"condition_id"`
	Question        string  `json:"question"`
	Active          bool    `json:"active"`
	Closed          bool    `json:"closed"`
	AcceptingOrders bool    `json:"accepting_orders"`
	EndDateISO      string  `json:"end_date_iso"`
	MinimumTickSize float64 `json:"minimum_tick_size"`
	NegRisk         bool    `json:"neg_risk"`
	Tokens          []Token `json:"tokens"`
}

// EndCursor 目录翻到末页时 next_cursor 的哨兵值
const EndCursor = "LTE="

// MarketsPage /markets 的一页
type MarketsPage struct {
	Limit      int         `json:"limit"`
	Count      int         `json:"count"`
	NextCursor string      `json:"next_cursor"`
	Data       []APIMarket `json:"data"`
}

// BalanceAllowanceResponse 抵押品余额（按 1e6 缩放的整数字符串）
type BalanceAllowanceResponse struct {
	Balance   string `json:"balance"`
	Allowance string `json:"allowance"`
}

// SignedOrderPayload 提交到 /order 的签名订单
type SignedOrderPayload struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// PostOrderRequest /order 请求体
type PostOrderRequest struct {
	Order     SignedOrderPayload `json:"order"`
	Owner     string             `json:"owner"`
	OrderType string             `json:"orderType"`
}

// PostOrderResponse /order 响应
type PostOrderResponse struct {
	Success   bool   `json:"success"`
	ErrorMsg  string `json:"errorMsg"`
	OrderID   string `json:"orderID"`
	Status    string `json:"status"` // live / matched / delayed / unmatched
	OrderHash string `json:"orderHashes,omitempty"`
}

// CancelResponse /order DELETE 响应
// not_canceled 给出每个失败订单的原因
type CancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// OpenOrderRecord /orders 返回的挂单
type OpenOrderRecord struct {
	ID           string `json:"id"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
}

// MakerOrderRecord 成交里的单个 maker 委托
type MakerOrderRecord struct {
	OrderID       string `json:"order_id"`
	MakerAddress  string `json:"maker_address"`
	Owner         string `json:"owner"`
	MatchedAmount string `json:"matched_amount"`
	Price         string `json:"price"`
	AssetID       string `json:"asset_id"`
	Side          string `json:"side"`
	Outcome       string `json:"outcome"`
}

// TradeRecord /trades 返回的成交
// 顶层 price/size 是 taker 视角的聚合；maker 侧的实际成交量
// 在 maker_orders 里按委托拆分
type TradeRecord struct {
	ID          string             `json:"id"`
	Market      string             `json:"market"`
	AssetID     string             `json:"asset_id"`
	Side        string             `json:"side"`
	Price       string             `json:"price"`
	Size        string             `json:"size"`
	Status      string             `json:"status"` // MATCHED / MINED / CONFIRMED / RETRYING / FAILED
	MatchTime   string             `json:"match_time"`
	TraderSide  string             `json:"trader_side"` // MAKER / TAKER
	MakerOrders []MakerOrderRecord `json:"maker_orders"`
}

// DataPositionValue data-api /value 的持仓市值
type DataPositionValue struct {
	User  string  `json:"user"`
	Value float64 `json:"value"`
}

// DataPosition data-api /positions 的单条持仓
type DataPosition struct {
	Asset       string  `json:"asset"`
	ConditionID string  `json:"conditionId"`
	Size        float64 `json:"size"`
	AvgPrice    float64 `json:"avgPrice"`
	Title       string  `json:"title"`
	Redeemable  bool    `json:"redeemable"`
	NegRisk     bool    `json:"negativeRisk"`
}

// APIError CLOB 返回的错误体
type APIError struct {
	Error string `json:"error"`
}
