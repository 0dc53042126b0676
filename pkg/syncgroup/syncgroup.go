package syncgroup

import (
	"sync"
)

type taskFunc func()

// SyncGroup 是 sync.WaitGroup 的包装器，简化后台任务生命周期管理
// 自动管理 Add() 和 Done()，减少遗漏 Done() 的风险
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	tasks   []taskFunc
	running int
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 添加一个后台任务，需在 Run() 之前调用
func (g *SyncGroup) Add(fn taskFunc) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = append(g.tasks, fn)
}

// Run 启动所有已添加的任务；启动后清空任务列表，避免重复启动
func (g *SyncGroup) Run() {
	g.mu.Lock()
	fns := g.tasks
	g.tasks = nil
	g.running += len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(do taskFunc) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
			}()
			do()
		}(fn)
	}
}

// Wait 阻塞等待所有任务完成
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}
