// Package store 基于 Badger 的本地持久化：目录游标与结算台账
package store

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "store")

const (
	cursorKey        = "discovery/cursor"
	reconciledPrefix = "reconciled/"
)

// Store 进程本地 KV 存储
//
// 两类数据共用一个 Badger 实例：
//   - 目录扫描的续传游标（重启后从上次位置继续翻页）
//   - 已结算市场 ID 的集合（跨重启保持"最多结算一次"）
type Store struct {
	db *badger.DB
}

// Open 打开（或创建）数据目录
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开本地存储失败: %w", err)
	}
	log.Infof("💾 本地存储已打开: %s", path)
	return &Store{db: db}, nil
}

// Close 关闭存储
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadCursor 读取目录扫描游标；从未保存过时返回空串
func (s *Store) LoadCursor() (string, error) {
	var cursor string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cursorKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			cursor = string(val)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("读取游标失败: %w", err)
	}
	return cursor, nil
}

// SaveCursor 保存目录扫描游标
func (s *Store) SaveCursor(cursor string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cursorKey), []byte(cursor))
	})
	if err != nil {
		return fmt.Errorf("保存游标失败: %w", err)
	}
	return nil
}

// IsReconciled 检查市场是否已经结算过
func (s *Store) IsReconciled(resourceID string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(reconciledPrefix + resourceID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("查询结算台账失败: %w", err)
	}
	return found, nil
}

// MarkReconciled 把市场记入结算台账（值为结算时间，便于排查）
func (s *Store) MarkReconciled(resourceID string, at time.Time) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(reconciledPrefix+resourceID), []byte(at.UTC().Format(time.RFC3339)))
	})
	if err != nil {
		return fmt.Errorf("写入结算台账失败: %w", err)
	}
	return nil
}

// ReconciledCount 台账中的条目数（状态接口展示用）
func (s *Store) ReconciledCount() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(reconciledPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("遍历结算台账失败: %w", err)
	}
	return count, nil
}
