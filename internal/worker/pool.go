// ============================================================================
// Labelmaker Render Pool - 批次渲染執行器
// ============================================================================
//
// Package: internal/worker
// 文件: pool.go
// 功能: 以固定數量的 goroutine 併發執行多個渲染任務（batch 指令使用）
//
// 架構組件:
//   ┌─────────────┐
//   │ batch cmd   │ --Submit()--> taskCh
//   └─────────────┘
//         ↑
//   ReceiveResult()
//         ↑
//   ┌──────────────────┐
//   │   Pool           │
//   │  ┌────────────┐  │
//   │  │ runner 1   │←── taskCh ──→ Invoker.Invoke() ──→ resultCh
//   │  │ runner 2   │←── taskCh
//   │  └────────────┘  │
//   └──────────────────┘
//
// 生命週期:
//   1. NewPool() - 建立 Pool，初始化 channels
//   2. Start(ctx, n) - 啟動 n 個 runner goroutines
//   3. Submit(task) - 提交任務到 taskCh
//   4. ReceiveResult() - 從 resultCh 讀取結果
//   5. Stop() - 關閉 taskCh，等待所有 runner 完成
//
// 注意:
//   每個任務仍然是一個獨立的渲染程序；Pool 只限制同時執行的程序數量。
//   互動流程（generate/regenerate）不經過 Pool。
//
// ============================================================================

package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	// ErrPoolClosed 表示當前 Pool 已關閉，無法提交新任務
	ErrPoolClosed = errors.New("render pool is closed")
	// ErrPoolNotStarted 表示 Pool 尚未啟動，無法提交任務
	ErrPoolNotStarted = errors.New("render pool not started")
)

// runner 從 taskCh 取任務並呼叫 Invoker
type runner struct {
	id       int
	invoker  Invoker
	taskCh   <-chan Task
	resultCh chan<- Result
	stopCh   <-chan struct{}
}

func (r *runner) run(ctx context.Context) {
	for task := range r.taskCh {
		start := time.Now()
		resp, err := r.invoker.Invoke(ctx, task.Request)

		result := Result{
			TaskID:   task.ID,
			Response: resp,
			Error:    err,
			Duration: time.Since(start),
		}

		select {
		case r.resultCh <- result:
		case <-r.stopCh:
			// Pool 已停止，沒有人會再讀取結果
		}
	}
}

// Pool 代表渲染任務池
type Pool struct {
	invoker  Invoker
	runners  []*runner
	taskCh   chan Task
	resultCh chan Result
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	mu       sync.Mutex // 保護 started / stopped
}

// NewPool 建立新的 Pool
// 參數：
//   - invoker: 實際執行渲染的 Client
//   - bufferSize: 任務和結果通道的緩衝大小
func NewPool(invoker Invoker, bufferSize int) *Pool {
	return &Pool{
		invoker:  invoker,
		runners:  make([]*runner, 0),
		taskCh:   make(chan Task, bufferSize),
		resultCh: make(chan Result, bufferSize),
		stopCh:   make(chan struct{}),
	}
}

// Start 啟動指定數量的 runner
func (p *Pool) Start(ctx context.Context, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pool already started")
	}

	for i := 0; i < count; i++ {
		r := &runner{
			id:       i,
			invoker:  p.invoker,
			taskCh:   p.taskCh,
			resultCh: p.resultCh,
			stopCh:   p.stopCh,
		}
		p.runners = append(p.runners, r)

		p.wg.Add(1)
		go func(r *runner) {
			defer p.wg.Done()
			r.run(ctx)
		}(r)
	}

	p.started = true
	return nil
}

// Submit 提交任務；Pool 未啟動或已關閉時回傳錯誤
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolClosed
	}

	// 持有鎖直到送出完成，Stop() 不會在送出途中關閉 taskCh
	select {
	case p.taskCh <- task:
		return nil
	case <-p.stopCh:
		return ErrPoolClosed
	}
}

// ReceiveResult 從結果通道接收執行結果
func (p *Pool) ReceiveResult() (Result, error) {
	select {
	case result, ok := <-p.resultCh:
		if !ok {
			return Result{}, ErrPoolClosed
		}
		return result, nil
	case <-p.stopCh:
		return Result{}, ErrPoolClosed
	}
}

// Stop 關閉 Pool 並等待所有 runner 結束
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	close(p.taskCh)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.resultCh)
}

// GetRunnerCount 返回 runner 數量
func (p *Pool) GetRunnerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runners)
}

// IsStarted 檢查 Pool 是否已啟動
func (p *Pool) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}
