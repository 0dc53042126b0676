// Package stream 订阅行情 WebSocket，把盘口顶档缓存在本地
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/pkg/cache"
)

var log = logrus.WithField("module", "stream")

const (
	quoteTTL         = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	pingInterval     = 10 * time.Second
	reconnectDelay   = 3 * time.Second
)

// bookEvent 市场频道推送的盘口事件
// 新旧两种字段名（bids/asks 与 buys/sells）都接受
type bookEvent struct {
	EventType string       `json:"event_type"`
	AssetID   string       `json:"asset_id"`
	Bids      []priceLevel `json:"bids"`
	Asks      []priceLevel `json:"asks"`
	Buys      []priceLevel `json:"buys"`
	Sells     []priceLevel `json:"sells"`
}

type priceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// QuoteCache 行情推送维护的顶档缓存
//
// 收到 book 事件时解析最优买卖档写入 TTL 缓存；读取方拿不到
// 新鲜数据时自行回退到 REST 盘口查询。连接断开后自动重连并
// 重放全部订阅。
type QuoteCache struct {
	url    string
	quotes *cache.InMemoryCache[string, domain.Quote]

	mu   sync.Mutex
	conn *websocket.Conn
	subs map[string]bool
}

// New 创建行情缓存客户端
func New(url string) *QuoteCache {
	return &QuoteCache{
		url:    url,
		quotes: cache.NewInMemoryCache[string, domain.Quote](quoteTTL),
		subs:   make(map[string]bool),
	}
}

// Run 维持连接直到 ctx 取消：断线后等待固定间隔重连
func (s *QuoteCache) Run(ctx context.Context) {
	for {
		if err := s.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warnf("⚠️ 行情连接中断: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// Subscribe 订阅一批资产的盘口推送；连接未建立时先记账，连上后重放
func (s *QuoteCache) Subscribe(assetIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if !s.subs[id] {
			s.subs[id] = true
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 || s.conn == nil {
		return nil
	}
	return s.conn.WriteJSON(map[string]any{
		"type":       "market",
		"assets_ids": fresh,
	})
}

// Lookup 读取缓存的顶档报价；过期或未订阅返回 false
func (s *QuoteCache) Lookup(assetID string) (domain.Quote, bool) {
	return s.quotes.Get(assetID)
}

// connectAndRead 建立连接、重放订阅并消费消息直到出错或 ctx 取消
func (s *QuoteCache) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	headers := http.Header{}
	headers.Set("User-Agent", "snipebot/1.0")

	conn, _, err := dialer.DialContext(ctx, s.url, headers)
	if err != nil {
		return fmt.Errorf("连接行情服务失败: %w", err)
	}

	// 重放订阅与挂载 s.conn 在同一临界区内完成：
	// 所有对连接的写（订阅、重放、PING）都持 s.mu，
	// gorilla 的连接同一时刻只允许一个写者
	s.mu.Lock()
	s.conn = conn
	replay := make([]string, 0, len(s.subs))
	for id := range s.subs {
		replay = append(replay, id)
	}
	var replayErr error
	if len(replay) > 0 {
		replayErr = conn.WriteJSON(map[string]any{
			"type":       "market",
			"assets_ids": replay,
		})
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	if replayErr != nil {
		return fmt.Errorf("重放订阅失败: %w", replayErr)
	}
	if len(replay) > 0 {
		log.Infof("📡 行情已连接，重放订阅 %d 个资产", len(replay))
	}

	// ReadMessage 没有超时；ctx 取消时关闭连接把它唤醒，
	// 否则 Run 会卡在读上无法退出
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	go s.pingLoop(ctx, conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.handleMessage(raw)
	}
}

// pingLoop 定期发送 PING 维持连接；写连接前必须拿 s.mu
func (s *QuoteCache) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleMessage 消息可能是单个事件或事件数组
func (s *QuoteCache) handleMessage(raw []byte) {
	var events []bookEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		var single bookEvent
		if err := json.Unmarshal(raw, &single); err != nil {
			return
		}
		events = []bookEvent{single}
	}
	for i := range events {
		s.applyEvent(&events[i])
	}
}

// applyEvent 把盘口事件转成顶档报价写入缓存
func (s *QuoteCache) applyEvent(ev *bookEvent) {
	if ev.EventType != "book" || ev.AssetID == "" {
		return
	}
	bids := ev.Bids
	if len(bids) == 0 {
		bids = ev.Buys
	}
	asks := ev.Asks
	if len(asks) == 0 {
		asks = ev.Sells
	}

	var quote domain.Quote
	// 档位按价格排序，最优档在末尾
	if len(bids) > 0 {
		if p, ok := parsePrice(bids[len(bids)-1].Price); ok {
			quote.Bid = p
			quote.HasBid = true
		}
	}
	if len(asks) > 0 {
		if p, ok := parsePrice(asks[len(asks)-1].Price); ok {
			quote.Ask = p
			quote.HasAsk = true
		}
	}
	s.quotes.Set(ev.AssetID, quote, quoteTTL)
}

func parsePrice(raw string) (domain.Price, bool) {
	var v float64
	if _, err := fmt.Sscanf(raw, "%f", &v); err != nil {
		return domain.Price{}, false
	}
	if v < 0 || v > 1 {
		return domain.Price{}, false
	}
	return domain.PriceFromDecimal(v), true
}
