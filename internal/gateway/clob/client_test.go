package clob

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/gateway/signing"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 显式声明 JSON，否则 net/http 会嗅探成 text/plain，resty 不做解码
		w.Header().Set("Content-Type", "application/json")
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return NewClient(Options{
		ClobBaseURL: srv.URL,
		DataBaseURL: srv.URL,
		ChainID:     137,
		PrivateKey:  key,
		Creds: &signing.APICreds{
			Key:        "test-key",
			Secret:     base64.URLEncoding.EncodeToString([]byte("test-secret")),
			Passphrase: "test-pass",
		},
	})
}

func TestGetOrderBook(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token_id"))
		json.NewEncoder(w).Encode(OrderBookSummary{
			AssetID: "tok-1",
			Bids:    []OrderLevel{{Price: "0.10", Size: "100"}, {Price: "0.20", Size: "50"}},
			Asks:    []OrderLevel{{Price: "0.30", Size: "80"}, {Price: "0.22", Size: "40"}},
		})
	})
	c := testClient(t, mux)

	book, err := c.GetOrderBook(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Len(t, book.Bids, 2)
	// 最优档在切片末尾（bids 升序、asks 降序）
	assert.Equal(t, "0.20", book.Bids[len(book.Bids)-1].Price)
	assert.Equal(t, "0.22", book.Asks[len(book.Asks)-1].Price)
}

func TestGetMarketsPagePagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets", func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("next_cursor")
		page := MarketsPage{NextCursor: "AA==", Data: []APIMarket{{ConditionID: "c1"}}}
		if cursor == "AA==" {
			page = MarketsPage{NextCursor: EndCursor, Data: []APIMarket{{ConditionID: "c2"}}}
		}
		json.NewEncoder(w).Encode(page)
	})
	c := testClient(t, mux)

	first, err := c.GetMarketsPage(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "AA==", first.NextCursor)

	last, err := c.GetMarketsPage(context.Background(), first.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, EndCursor, last.NextCursor)
	assert.Equal(t, "c2", last.Data[0].ConditionID)
}

func TestGetCollateralBalanceScaling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/balance-allowance", func(w http.ResponseWriter, r *http.Request) {
		// L2 认证头必须带上
		assert.NotEmpty(t, r.Header.Get("POLY_API_KEY"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		json.NewEncoder(w).Encode(BalanceAllowanceResponse{Balance: "123450000"})
	})
	c := testClient(t, mux)

	got, err := c.GetCollateralBalance(context.Background())
	require.NoError(t, err)
	// 1e6 缩放：123450000 -> 123.45 USDC
	assert.True(t, got.Equal(decimal.RequireFromString("123.45")), "got %s", got)
}

func TestPostOrderMatched(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		var req PostOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "GTC", req.OrderType)
		assert.Equal(t, "test-key", req.Owner)
		json.NewEncoder(w).Encode(PostOrderResponse{Success: true, OrderID: "ord-1", Status: "matched"})
	})
	c := testClient(t, mux)

	payload, err := c.BuildSignedOrder(OrderSpec{
		TokenID: "123456",
		Buy:     true,
		Price:   domain.PriceFromCents(22),
		Size:    decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	resp, err := c.PostOrder(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, resp.IsMatched())
}

func TestPostOrderRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PostOrderResponse{Success: false, ErrorMsg: "not enough balance"})
	})
	c := testClient(t, mux)

	payload, err := c.BuildSignedOrder(OrderSpec{
		TokenID: "123456",
		Buy:     true,
		Price:   domain.PriceFromCents(22),
		Size:    decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	_, err = c.PostOrder(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enough balance")
}

func TestBuildSignedOrderAmounts(t *testing.T) {
	c := testClient(t, http.NewServeMux())

	// 买单：makerAmount = 0.22*50 USDC、takerAmount = 50 份，均按 1e6 缩放
	payload, err := c.BuildSignedOrder(OrderSpec{
		TokenID: "987",
		Buy:     true,
		Price:   domain.PriceFromCents(22),
		Size:    decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.Equal(t, "11000000", payload.MakerAmount)
	assert.Equal(t, "50000000", payload.TakerAmount)
	assert.Equal(t, "BUY", payload.Side)
	assert.NotEmpty(t, payload.Signature)

	// 卖单方向翻转
	sell, err := c.BuildSignedOrder(OrderSpec{
		TokenID: "987",
		Buy:     false,
		Price:   domain.PriceFromCents(80),
		Size:    decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "10000000", sell.MakerAmount)
	assert.Equal(t, "8000000", sell.TakerAmount)
	assert.Equal(t, "SELL", sell.Side)
}

func TestCancelOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/order", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(CancelResponse{
			NotCanceled: map[string]string{"ord-9": "order already matched"},
		})
	})
	c := testClient(t, mux)

	resp, err := c.CancelOrder(context.Background(), "ord-9")
	require.NoError(t, err)
	assert.Empty(t, resp.Canceled)
	assert.Equal(t, "order already matched", resp.NotCanceled["ord-9"])
}

func TestServerErrorSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/book", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	})
	c := testClient(t, mux)

	_, err := c.GetOrderBook(context.Background(), "tok-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
