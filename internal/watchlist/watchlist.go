package watchlist

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/snipebot/internal/domain"
)

var log = logrus.WithField("module", "watchlist")

// Watchlist 受监控市场的有序有界集合，整个系统唯一的共享可变状态
//
// 排序键：(Priority 降序, ActivationTime 升序)。持有敞口的条目被提升后
// 排在最前，每轮扫描优先评估。所有可变方法都在同一把互斥锁内执行；
// worker 只操作 Snapshot() 返回的副本，从不持有活引用。
type Watchlist struct {
	mu       sync.Mutex
	items    []domain.WatchItem
	capacity int
}

// New 创建容量为 capacity 的 Watchlist
func New(capacity int) *Watchlist {
	if capacity <= 0 {
		capacity = 200
	}
	return &Watchlist{capacity: capacity}
}

// InsertOrUpdate 有序插入；ID 已存在时原地更新并重排，绝不产生重复条目
// 插入后若超出容量，从低优先侧逐出直到 size == capacity
func (w *Watchlist) InsertOrUpdate(item domain.WatchItem) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx := w.indexOf(item.ID); idx >= 0 {
		// 原地更新：保留已有的优先级标记（促升不因目录重扫而丢失）
		if w.items[idx].Priority {
			item.Priority = true
		}
		w.items = append(w.items[:idx], w.items[idx+1:]...)
	}

	w.insertSorted(item)
	w.evictOver(item.ID)
}

// Promote 将条目提升到优先分区并重排；条目不存在时为 no-op
func (w *Watchlist) Promote(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.indexOf(id)
	if idx < 0 {
		return
	}
	item := w.items[idx]
	if item.Priority {
		return
	}
	item.Priority = true
	w.items = append(w.items[:idx], w.items[idx+1:]...)
	w.insertSorted(item)
	log.Debugf("⬆️ 条目已提升: id=%s", id)
}

// Remove 按 ID 删除；返回是否确实删除了条目
// 返回值让并发的 worker 可以判定谁赢得了结算所有权
func (w *Watchlist) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.indexOf(id)
	if idx < 0 {
		return false
	}
	w.items = append(w.items[:idx], w.items[idx+1:]...)
	return true
}

// Contains 检查 ID 是否在列表中
func (w *Watchlist) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.indexOf(id) >= 0
}

// Size 当前条目数
func (w *Watchlist) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Snapshot 返回某一时刻的有序副本；副本与内部切片不共享存储，
// 扫描期间的并发 Remove/Promote 不会影响 worker 手里的视图
func (w *Watchlist) Snapshot() []domain.WatchItem {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := make([]domain.WatchItem, len(w.items))
	copy(snap, w.items)
	return snap
}

// indexOf 线性查找（条目量在数百级，O(n) 足够）
func (w *Watchlist) indexOf(id string) int {
	for i := range w.items {
		if w.items[i].ID == id {
			return i
		}
	}
	return -1
}

// insertSorted 按排序键找到插入位置；相等键插到既有条目之后
func (w *Watchlist) insertSorted(item domain.WatchItem) {
	pos := len(w.items)
	for i := range w.items {
		if item.SortsBefore(&w.items[i]) {
			pos = i
			break
		}
	}
	w.items = append(w.items, domain.WatchItem{})
	copy(w.items[pos+1:], w.items[pos:])
	w.items[pos] = item
}

// evictOver 超出容量时从低优先侧逐出：优先逐出未促升、激活最早的条目；
// 刚插入的条目不作为首选逐出目标，除非它是仅剩的未促升条目
func (w *Watchlist) evictOver(justInserted string) {
	for len(w.items) > w.capacity {
		victim := -1
		fallback := -1
		for i := range w.items {
			if w.items[i].Priority {
				continue
			}
			if w.items[i].ID == justInserted {
				if fallback < 0 {
					fallback = i
				}
				continue
			}
			victim = i
			break
		}
		if victim < 0 {
			victim = fallback
		}
		if victim < 0 {
			// 全部为促升条目：逐出激活最早的一个
			victim = 0
		}
		evicted := w.items[victim]
		w.items = append(w.items[:victim], w.items[victim+1:]...)
		log.Debugf("🗑️ 容量逐出: id=%s activation=%s", evicted.ID, evicted.ActivationTime)
	}
}
