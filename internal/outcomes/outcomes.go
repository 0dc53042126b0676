// Package outcomes 结算记录的 SQLite 台账
package outcomes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/snipebot/internal/domain"
)

var log = logrus.WithField("module", "outcomes")

const schema = `
CREATE TABLE IF NOT EXISTS trade_outcomes (
	id            TEXT PRIMARY KEY,
	resource_id   TEXT NOT NULL UNIQUE,
	won           INTEGER NOT NULL,
	label         TEXT NOT NULL,
	avg_entry     TEXT NOT NULL,
	size          TEXT NOT NULL,
	total_cost    TEXT NOT NULL,
	pnl           TEXT NOT NULL,
	resolved_at   TIMESTAMP NOT NULL,
	recorded_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_resolved_at ON trade_outcomes(resolved_at);
`

// Ledger 追加写的结算记录存储
//
// resource_id 上的唯一约束兜底"最多结算一次"：结算器一侧
// 已经保证单次汇报，重复插入在这里被当作幂等成功吞掉。
type Ledger struct {
	db *sql.DB
}

// Open 打开（或创建）结算数据库
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开结算数据库失败: %w", err)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化结算表失败: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close 关闭数据库
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Report 写入一条结算记录
// 同一市场重复写入按幂等处理（INSERT OR IGNORE）
func (l *Ledger) Report(ctx context.Context, o domain.TradeOutcome) error {
	won := 0
	if o.Won {
		won = 1
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trade_outcomes
		(id, resource_id, won, label, avg_entry, size, total_cost, pnl, resolved_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), o.ResourceID, won, o.Label,
		o.AvgEntryPrice.String(), o.Size.String(), o.TotalCost.String(), o.PnL.String(),
		o.ResolvedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("写入结算记录失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Warnf("⚠️ 结算记录已存在，忽略重复写入: resource=%s", o.ResourceID)
	}
	return nil
}

// Recent 按结算时间倒序返回最近的记录（状态接口展示用）
func (l *Ledger) Recent(ctx context.Context, limit int) ([]domain.TradeOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT resource_id, won, label, avg_entry, size, total_cost, pnl, resolved_at
		FROM trade_outcomes ORDER BY resolved_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询结算记录失败: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeOutcome
	for rows.Next() {
		var (
			o    domain.TradeOutcome
			won  int
			avg  string
			size string
			cost string
			pnl  string
		)
		if err := rows.Scan(&o.ResourceID, &won, &o.Label, &avg, &size, &cost, &pnl, &o.ResolvedAt); err != nil {
			return nil, fmt.Errorf("解析结算记录失败: %w", err)
		}
		o.Won = won != 0
		if o.AvgEntryPrice, err = decimalFrom(avg); err != nil {
			return nil, err
		}
		if o.Size, err = decimalFrom(size); err != nil {
			return nil, err
		}
		if o.TotalCost, err = decimalFrom(cost); err != nil {
			return nil, err
		}
		if o.PnL, err = decimalFrom(pnl); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func decimalFrom(raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("解析金额字段失败 %q: %w", raw, err)
	}
	return v, nil
}

// TotalPnL 全部已结算记录的盈亏合计
func (l *Ledger) TotalPnL(ctx context.Context) (string, error) {
	var total sql.NullFloat64
	err := l.db.QueryRowContext(ctx,
		`SELECT SUM(CAST(pnl AS REAL)) FROM trade_outcomes`).Scan(&total)
	if err != nil {
		return "0", fmt.Errorf("汇总盈亏失败: %w", err)
	}
	if !total.Valid {
		return "0", nil
	}
	return fmt.Sprintf("%.4f", total.Float64), nil
}
