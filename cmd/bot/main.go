package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/brain"
	"github.com/betbot/snipebot/internal/capital"
	"github.com/betbot/snipebot/internal/discovery"
	"github.com/betbot/snipebot/internal/gateway/clob"
	"github.com/betbot/snipebot/internal/gateway/signing"
	"github.com/betbot/snipebot/internal/gateway/stream"
	"github.com/betbot/snipebot/internal/outcomes"
	"github.com/betbot/snipebot/internal/reconcile"
	"github.com/betbot/snipebot/internal/services"
	"github.com/betbot/snipebot/internal/statusapi"
	"github.com/betbot/snipebot/internal/store"
	"github.com/betbot/snipebot/internal/sweep"
	"github.com/betbot/snipebot/internal/watchlist"
	"github.com/betbot/snipebot/pkg/config"
	"github.com/betbot/snipebot/pkg/logger"
	"github.com/betbot/snipebot/pkg/retry"
	"github.com/betbot/snipebot/pkg/shutdown"
	"github.com/betbot/snipebot/pkg/syncgroup"
)

// polygonChainID Polymarket 交易所部署在 Polygon 主网
const polygonChainID = 137

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	dryRun := flag.Bool("dry-run", false, "纸交易模式（覆盖配置文件）")
	flag.Parse()

	// .env 可选：本地开发时放 PK/FUNDER
	_ = godotenv.Load()

	if err := logger.InitDefault(); err != nil {
		panic(fmt.Sprintf("初始化日志失败: %v", err))
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		logrus.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.DryRun = true
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}); err != nil {
		logrus.Errorf("重新初始化日志失败: %v", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logrus.Errorf("❌ %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if cfg.Wallet.PrivateKey == "" {
		return fmt.Errorf("缺少私钥：配置 wallet.privateKey 或环境变量 PK")
	}
	privateKey, err := signing.PrivateKeyFromHex(cfg.Wallet.PrivateKey)
	if err != nil {
		return fmt.Errorf("解析私钥失败: %w", err)
	}

	client := clob.NewClient(clob.Options{
		ClobBaseURL: cfg.API.ClobBaseURL,
		DataBaseURL: cfg.API.DataBaseURL,
		ChainID:     polygonChainID,
		PrivateKey:  privateKey,
		Funder:      cfg.Wallet.FunderAddress,
	})
	if !client.HasCreds() {
		creds, err := client.DeriveAPIKey(rootCtx)
		if err != nil {
			return fmt.Errorf("派生 API 凭据失败: %w", err)
		}
		client.SetCreds(creds)
		logrus.Info("🔑 API 凭据派生完成")
	}
	logrus.Infof("💰 资金地址: %s", client.Funder())
	if cfg.DryRun {
		logrus.Warn("📝 纸交易模式：不会提交真实订单")
	}

	db, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return fmt.Errorf("打开本地存储失败: %w", err)
	}
	outcomeDB, err := outcomes.Open(cfg.Store.OutcomeDBPath)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("打开结算记录失败: %w", err)
	}

	shutdownMgr := shutdown.NewManager()
	shutdownMgr.OnShutdown(func(ctx context.Context) { _ = db.Close() })
	shutdownMgr.OnShutdown(func(ctx context.Context) { _ = outcomeDB.Close() })

	var quotes *stream.QuoteCache
	if cfg.API.EnableStream {
		quotes = stream.New(cfg.API.StreamURL)
	}

	trading := services.NewTradingService(client, quotes, retry.DefaultPolicy(), cfg.DryRun)

	wl := watchlist.New(cfg.Strategy.WatchCapacity)
	allocator := capital.NewAllocator(trading, cfg.Strategy.PortfolioPercent)
	engine := brain.NewEngine(brain.RulesFromStrategy(cfg.Strategy))
	reconciler := reconcile.New(trading, wl, db, outcomeDB,
		time.Duration(cfg.Strategy.ResolvePollSec)*time.Second, cfg.Strategy.ResolvePollMax)
	scheduler := sweep.New(wl, allocator, reconciler, engine, trading, trading, trading,
		cfg.Strategy.WindowWidth, time.Duration(cfg.Strategy.CycleIntervalSec)*time.Second)
	scanner := discovery.New(client, wl, db, db,
		time.Duration(cfg.Discovery.ScanMinSec)*time.Second,
		time.Duration(cfg.Discovery.ScanMaxSec)*time.Second)
	status := statusapi.New(wl, allocator, outcomeDB, db)

	group := syncgroup.NewSyncGroup()
	if quotes != nil {
		group.Add(func() { quotes.Run(rootCtx) })
	}
	group.Add(func() { scanner.Run(rootCtx) })
	group.Add(func() { scheduler.Run(rootCtx) })
	group.Add(func() {
		if err := status.Run(rootCtx, cfg.API.ListenAddr); err != nil {
			logrus.Errorf("状态 API 异常退出: %v", err)
		}
	})
	group.Run()

	logrus.Info("✅ 机器人已启动，按 Ctrl+C 停止")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logrus.Info("收到停止信号，正在关闭...")
	rootCancel()

	group.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownMgr.Shutdown(shutdownCtx)

	logrus.Info("✅ 机器人已停止")
	return nil
}
