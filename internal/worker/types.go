package worker

import (
	"context"
	"time"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// Invoker 執行一次渲染請求（Client 實作此介面，測試可替換）
type Invoker interface {
	Invoke(ctx context.Context, req types.WorkerRequest) (types.WorkerResponse, error)
}

// Task 代表要交給 Pool 的一個渲染任務
type Task struct {
	ID      string              // 任務識別碼（通常是表單檔名）
	Request types.WorkerRequest // 傳給渲染程序的載荷
}

// Result 代表任務執行結果
type Result struct {
	TaskID   string               // 任務 ID
	Response types.WorkerResponse // 渲染程序的分類結果
	Error    error                // 無法啟動程序等非預期錯誤
	Duration time.Duration        // 實際執行時間
}
