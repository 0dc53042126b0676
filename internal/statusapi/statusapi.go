// Package statusapi 只读状态接口，给 TUI 和运维脚本用
package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/capital"
	"github.com/betbot/snipebot/internal/domain"
	"github.com/betbot/snipebot/internal/watchlist"
)

var log = logrus.WithField("module", "statusapi")

// budgetSource 预算查询（capital.Allocator 实现）
type budgetSource interface {
	LastBudget() (capital.RiskBudget, bool)
}

// outcomeSource 结算记录查询（outcomes.Ledger 实现）
type outcomeSource interface {
	Recent(ctx context.Context, limit int) ([]domain.TradeOutcome, error)
	TotalPnL(ctx context.Context) (string, error)
}

// reconciledCounter 已结算条目计数（store.Store 实现）
type reconciledCounter interface {
	ReconciledCount() (int, error)
}

// Server 状态 API
type Server struct {
	wl       *watchlist.Watchlist
	budget   budgetSource
	outcomes outcomeSource
	counter  reconciledCounter
	started  time.Time
}

// New 创建状态 API
func New(wl *watchlist.Watchlist, budget budgetSource, outcomes outcomeSource, counter reconciledCounter) *Server {
	return &Server{
		wl:       wl,
		budget:   budget,
		outcomes: outcomes,
		counter:  counter,
		started:  time.Now(),
	}
}

// Router 组装路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/watchlist", s.handleWatchlist)
	api.GET("/budget", s.handleBudget)
	api.GET("/outcomes", s.handleOutcomes)

	return r
}

// Run 启动 HTTP 服务并在 ctx 取消时优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Infof("🌐 状态 API 监听 %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type watchEntry struct {
	ID             string `json:"id"`
	AssetID        string `json:"assetId"`
	Question       string `json:"question"`
	TickSize       string `json:"tickSize"`
	ActivationTime string `json:"activationTime"`
	Priority       bool   `json:"priority"`
	NegRisk        bool   `json:"negRisk"`
}

func (s *Server) handleStatus(c *gin.Context) {
	reconciled := 0
	if s.counter != nil {
		if n, err := s.counter.ReconciledCount(); err == nil {
			reconciled = n
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"uptimeSec":  int(time.Since(s.started).Seconds()),
		"watching":   s.wl.Size(),
		"reconciled": reconciled,
	})
}

func (s *Server) handleWatchlist(c *gin.Context) {
	snap := s.wl.Snapshot()
	entries := make([]watchEntry, 0, len(snap))
	for _, it := range snap {
		entries = append(entries, watchEntry{
			ID:             it.ID,
			AssetID:        it.AssetID,
			Question:       it.Question,
			TickSize:       it.TickSize.Decimal().String(),
			ActivationTime: it.ActivationTime.UTC().Format(time.RFC3339),
			Priority:       it.Priority,
			NegRisk:        it.NegRisk,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "items": entries})
}

func (s *Server) handleBudget(c *gin.Context) {
	budget, ok := s.budget.LastBudget()
	if !ok {
		// 首轮预算还没算出来
		c.JSON(http.StatusOK, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ready":           true,
		"totalBudget":     budget.TotalBudget.String(),
		"cashAvailable":   budget.CashAvailable.String(),
		"effectiveBudget": budget.EffectiveBudget.String(),
	})
}

type outcomeEntry struct {
	ResourceID string `json:"resourceId"`
	Label      string `json:"label"`
	Won        bool   `json:"won"`
	AvgEntry   string `json:"avgEntry"`
	Size       string `json:"size"`
	TotalCost  string `json:"totalCost"`
	PnL        string `json:"pnl"`
	ResolvedAt string `json:"resolvedAt"`
}

func (s *Server) handleOutcomes(c *gin.Context) {
	ctx := c.Request.Context()

	recent, err := s.outcomes.Recent(ctx, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := s.outcomes.TotalPnL(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entries := make([]outcomeEntry, 0, len(recent))
	for _, o := range recent {
		entries = append(entries, outcomeEntry{
			ResourceID: o.ResourceID,
			Label:      o.Label,
			Won:        o.Won,
			AvgEntry:   o.AvgEntryPrice.String(),
			Size:       o.Size.String(),
			TotalCost:  o.TotalCost.String(),
			PnL:        o.PnL.String(),
			ResolvedAt: o.ResolvedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"totalPnl": total, "outcomes": entries})
}
