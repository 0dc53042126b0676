package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// WalletConfig 钱包配置
type WalletConfig struct {
	PrivateKey    string `yaml:"privateKey"`    // 通常由环境变量 PK 覆盖
	FunderAddress string `yaml:"funderAddress"` // 通常由环境变量 FUNDER 覆盖
}

// StrategyConfig 入场决策配置（集中管理，避免阈值在多处漂移）
type StrategyConfig struct {
	MinBidCents        int     `yaml:"minBidCents"`        // 最低入场价（分），默认 10
	MaxBidCents        int     `yaml:"maxBidCents"`        // 最高入场价（分），默认 55
	SpreadLimitCents   int     `yaml:"spreadLimitCents"`   // take 入场允许的最大价差（分），默认 3
	PortfolioPercent   float64 `yaml:"portfolioPercent"`   // 组合风险比例（%），默认 1
	SellThresholdCents int     `yaml:"sellThresholdCents"` // take 成交后的止盈卖价（分），0 表示禁用
	WindowWidth        int     `yaml:"windowWidth"`        // 扫描并发宽度 N，默认 8
	CycleIntervalSec   int     `yaml:"cycleIntervalSec"`   // 两轮扫描之间的间隔（秒），默认 5
	WatchCapacity      int     `yaml:"watchCapacity"`      // 监控列表容量 W，默认 200
	ResolvePollSec     int     `yaml:"resolvePollSec"`     // 等待终局结果的轮询间隔（秒），默认 10
	ResolvePollMax     int     `yaml:"resolvePollMax"`     // 等待终局结果的最大轮询次数，默认 30
}

// DiscoveryConfig 市场发现配置
type DiscoveryConfig struct {
	ScanMinSec int `yaml:"scanMinSec"` // 两次目录扫描的最小间隔（秒），默认 10
	ScanMaxSec int `yaml:"scanMaxSec"` // 两次目录扫描的最大间隔（秒），默认 15
}

// APIConfig 外部接口配置
type APIConfig struct {
	ClobBaseURL  string `yaml:"clobBaseURL"`  // CLOB REST 地址
	DataBaseURL  string `yaml:"dataBaseURL"`  // data-api 地址（持仓/成交）
	StreamURL    string `yaml:"streamURL"`    // 行情 WebSocket 地址
	EnableStream bool   `yaml:"enableStream"` // 是否启用行情推送（否则纯 REST 轮询）
	ListenAddr   string `yaml:"listenAddr"`   // 状态 API 监听地址，默认 :8712
}

// StoreConfig 本地存储配置
type StoreConfig struct {
	DataDir       string `yaml:"dataDir"`       // badger/持久化目录，默认 data
	OutcomeDBPath string `yaml:"outcomeDBPath"` // 结算记录 sqlite 路径，默认 data/outcomes.db
}

// Config 应用配置
type Config struct {
	Wallet    WalletConfig    `yaml:"wallet"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	API       APIConfig       `yaml:"api"`
	Store     StoreConfig     `yaml:"store"`
	LogLevel  string          `yaml:"logLevel"` // 日志级别
	LogFile   string          `yaml:"logFile"`  // 日志文件路径（可选）
	DryRun    bool            `yaml:"dryRun"`   // 纸交易模式：不发真实订单，只打印
}

// LoadFromFile 从 YAML 文件加载配置；文件不存在时返回默认配置
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖（与旧脚本保持一致的变量名）
func (c *Config) applyEnv() {
	if v := os.Getenv("PK"); v != "" {
		c.Wallet.PrivateKey = v
	}
	if v := os.Getenv("FUNDER"); v != "" {
		c.Wallet.FunderAddress = v
	}
	if v := os.Getenv("SNIPEBOT_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.DryRun = b
		}
	}
	if v := os.Getenv("SNIPEBOT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// ApplyDefaults 填充默认值
func (c *Config) ApplyDefaults() {
	s := &c.Strategy
	if s.MinBidCents == 0 {
		s.MinBidCents = 10
	}
	if s.MaxBidCents == 0 {
		s.MaxBidCents = 55
	}
	if s.SpreadLimitCents == 0 {
		s.SpreadLimitCents = 3
	}
	if s.PortfolioPercent == 0 {
		s.PortfolioPercent = 1
	}
	if s.WindowWidth == 0 {
		s.WindowWidth = 8
	}
	if s.CycleIntervalSec == 0 {
		s.CycleIntervalSec = 5
	}
	if s.WatchCapacity == 0 {
		s.WatchCapacity = 200
	}
	if s.ResolvePollSec == 0 {
		s.ResolvePollSec = 10
	}
	if s.ResolvePollMax == 0 {
		s.ResolvePollMax = 30
	}

	if c.Discovery.ScanMinSec == 0 {
		c.Discovery.ScanMinSec = 10
	}
	if c.Discovery.ScanMaxSec == 0 {
		c.Discovery.ScanMaxSec = 15
	}

	if c.API.ClobBaseURL == "" {
		c.API.ClobBaseURL = "https://clob.polymarket.com"
	}
	if c.API.DataBaseURL == "" {
		c.API.DataBaseURL = "https://data-api.polymarket.com"
	}
	if c.API.StreamURL == "" {
		c.API.StreamURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8712"
	}

	if c.Store.DataDir == "" {
		c.Store.DataDir = "data"
	}
	if c.Store.OutcomeDBPath == "" {
		c.Store.OutcomeDBPath = "data/outcomes.db"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	s := c.Strategy
	if s.MinBidCents < 0 || s.MaxBidCents > 100 || s.MinBidCents >= s.MaxBidCents {
		return fmt.Errorf("无效的入场价区间: [%d, %d] 分", s.MinBidCents, s.MaxBidCents)
	}
	if s.SpreadLimitCents <= 0 {
		return fmt.Errorf("spreadLimitCents 必须为正: %d", s.SpreadLimitCents)
	}
	if s.PortfolioPercent <= 0 || s.PortfolioPercent > 100 {
		return fmt.Errorf("portfolioPercent 必须在 (0, 100] 内: %v", s.PortfolioPercent)
	}
	if s.SellThresholdCents != 0 && s.SellThresholdCents <= s.MaxBidCents {
		// 止盈价必须高于最高入场价，否则会立刻平掉刚建立的仓位
		return fmt.Errorf("sellThresholdCents (%d) 必须大于 maxBidCents (%d)", s.SellThresholdCents, s.MaxBidCents)
	}
	if s.WindowWidth <= 0 {
		return fmt.Errorf("windowWidth 必须为正: %d", s.WindowWidth)
	}
	if s.WatchCapacity <= 0 {
		return fmt.Errorf("watchCapacity 必须为正: %d", s.WatchCapacity)
	}
	if c.Discovery.ScanMinSec > c.Discovery.ScanMaxSec {
		return fmt.Errorf("discovery 扫描间隔区间无效: [%d, %d]", c.Discovery.ScanMinSec, c.Discovery.ScanMaxSec)
	}
	return nil
}
