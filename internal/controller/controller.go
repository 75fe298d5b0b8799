// ============================================================================
// Labelmaker 控制器 - PDF 產生流程協調
// ============================================================================
//
// Package: internal/controller
// 文件: controller.go
// 功能: 串接驗證、路徑解析、渲染程序與通知，並把結果對應到錯誤分類
//
// 流程:
//   Submit(submission)
//     ├─ busy 旗標（同時只處理一個提交，其他提交直接拒絕）
//     ├─ validation.ValidateSubmission → 欄位錯誤 / 無標籤
//     └─ Generate(job)
//          ├─ builder.ForGeneration（可能提示路徑 → canceled）
//          ├─ events: generation-started
//          └─ worker.Invoke → success / worker_failed / unexpected
//
//   Regenerate(job)      不提示路徑、不檢查 busy 旗標（可能與 Submit 競爭）
//   ChangeSavePath()     提示新路徑並儲存，發出 regenerate-requested
//   SetAutosave(bool)    儲存設定，由設定變更通知發出 autosave-changed
//
// 並發:
//   busy 旗標只是協作式的保護；WorkerClient 本身不加鎖，
//   兩個同時的 Invoke 會啟動兩個渲染程序。
//
// ============================================================================

package controller

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ChuLiYu/labelmaker/internal/builder"
	"github.com/ChuLiYu/labelmaker/internal/events"
	"github.com/ChuLiYu/labelmaker/internal/prompt"
	"github.com/ChuLiYu/labelmaker/internal/settings"
	"github.com/ChuLiYu/labelmaker/internal/validation"
	"github.com/ChuLiYu/labelmaker/internal/worker"
	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	// ErrJobInFlight 已有 PDF 正在產生
	ErrJobInFlight = errors.New("a PDF is already being generated")
)

// ============================================================================
// 資料結構定義
// ============================================================================

// Settings 控制器需要的設定儲存
type Settings interface {
	builder.Source
	SetAutosave(enabled bool) error
	OnChange(fn func(settings.Change)) func()
}

// Recorder 指標記錄（metrics.Collector 實作）
type Recorder interface {
	RecordOutcome(outcome string)
	RecordValidationFailure(kind string)
	RecordLabels(n int)
	RecordBusyRejection()
	WorkerStarted() func()
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(string)           {}
func (nopRecorder) RecordValidationFailure(string) {}
func (nopRecorder) RecordLabels(int)               {}
func (nopRecorder) RecordBusyRejection()           {}
func (nopRecorder) WorkerStarted() func()          { return func() {} }

// Deps Controller 依賴
type Deps struct {
	Settings Settings
	Prompter prompt.SavePathPrompter
	SavePath string // 非空時第一次產生一律使用此路徑
	Invoker  worker.Invoker
	Bus      *events.Bus // nil 時建立新的
	Metrics  Recorder    // nil 時不記錄
	Logger   *zap.Logger // nil 時不輸出
}

// Controller PDF 產生流程控制器
type Controller struct {
	busy atomic.Bool

	settings Settings
	builder  *builder.Builder
	invoker  worker.Invoker
	bus      *events.Bus
	metrics  Recorder
	logger   *zap.Logger

	unsubscribe func()
}

// ============================================================================
// 核心方法實作
// ============================================================================

// New 建立 Controller，並把設定變更轉成 autosave-changed 通知
func New(d Deps) *Controller {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bus := d.Bus
	if bus == nil {
		bus = events.NewBus(logger)
	}
	var rec Recorder = nopRecorder{}
	if d.Metrics != nil {
		rec = d.Metrics
	}

	c := &Controller{
		settings: d.Settings,
		builder:  builder.New(d.Settings, d.Prompter, logger, builder.WithExplicitPath(d.SavePath)),
		invoker:  d.Invoker,
		bus:      bus,
		metrics:  rec,
		logger:   logger.Named("controller"),
	}
	c.unsubscribe = d.Settings.OnChange(c.onSettingsChange)
	return c
}

// Close 取消設定變更訂閱
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// Events 回傳事件匯流排
func (c *Controller) Events() *events.Bus {
	return c.bus
}

// Busy 是否有提交正在處理
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Submit 驗證表單並產生 PDF；處理中時回傳 ErrJobInFlight
func (c *Controller) Submit(ctx context.Context, sub types.Submission) (Outcome, error) {
	if !c.busy.CompareAndSwap(false, true) {
		c.metrics.RecordBusyRejection()
		c.logger.Debug("submission rejected, job in flight")
		return Outcome{}, ErrJobInFlight
	}
	defer c.busy.Store(false)

	job, out, ok := c.validate(sub)
	if !ok {
		return out, nil
	}
	return c.Generate(ctx, job), nil
}

// Generate 第一次產生：依 autosave 設定決定是否提示路徑
func (c *Controller) Generate(ctx context.Context, job types.PrintJob) Outcome {
	req, err := c.builder.ForGeneration(ctx, job)
	if err != nil {
		return c.finish(c.pathFailure(ctx, err))
	}
	c.bus.GenerationStarted()
	return c.finish(c.invoke(ctx, req))
}

// Regenerate 以上次的路徑與目前設定重新產生，沒有路徑時退回 Generate
func (c *Controller) Regenerate(ctx context.Context, job types.PrintJob) Outcome {
	req, err := c.builder.ForRegeneration(ctx, job)
	if errors.Is(err, builder.ErrNoSavePath) {
		c.logger.Debug("no stored save path, falling back to generation flow")
		return c.Generate(ctx, job)
	}
	if err != nil {
		return c.finish(c.pathFailure(ctx, err))
	}
	return c.finish(c.invoke(ctx, req))
}

// RegenerateSubmission 驗證後重新產生（regenerate-requested 的處理方式）
func (c *Controller) RegenerateSubmission(ctx context.Context, sub types.Submission) Outcome {
	job, out, ok := c.validate(sub)
	if !ok {
		return out
	}
	return c.Regenerate(ctx, job)
}

// ChangeSavePath 提示新的儲存位置並要求重新產生
//
// 使用者取消時回傳 builder.ErrCanceled，不發出通知
func (c *Controller) ChangeSavePath(ctx context.Context) (string, error) {
	path, err := c.builder.ChooseSavePath(ctx)
	if err != nil {
		return "", err
	}
	c.bus.RegenerateRequested()
	return path, nil
}

// SetAutosave 儲存自動儲存開關
func (c *Controller) SetAutosave(enabled bool) error {
	return c.settings.SetAutosave(enabled)
}

// ============================================================================
// 內部方法
// ============================================================================

func (c *Controller) validate(sub types.Submission) (types.PrintJob, Outcome, bool) {
	job, err := validation.ValidateSubmission(sub)
	if err == nil {
		c.metrics.RecordLabels(len(job.Labels))
		return job, Outcome{}, true
	}

	var verr *validation.Error
	if !errors.As(err, &verr) {
		c.logger.Error("validation failed unexpectedly", zap.Error(err))
		return types.PrintJob{}, c.finish(unexpectedOutcome(err)), false
	}

	for _, issue := range verr.Issues {
		c.metrics.RecordValidationFailure(issueKind(issue))
	}
	c.logger.Debug("submission rejected",
		zap.Int("field_errors", len(verr.Fields())),
		zap.Strings("job_errors", verr.Job()),
	)
	return types.PrintJob{}, c.finish(validationOutcome(verr)), false
}

func (c *Controller) pathFailure(ctx context.Context, err error) Outcome {
	if errors.Is(err, builder.ErrCanceled) || ctx.Err() != nil {
		c.logger.Debug("save path not chosen")
		return canceledOutcome()
	}
	c.logger.Error("save path resolution failed", zap.Error(err))
	return unexpectedOutcome(err)
}

func (c *Controller) invoke(ctx context.Context, req types.WorkerRequest) Outcome {
	done := c.metrics.WorkerStarted()
	resp, err := c.invoker.Invoke(ctx, req)
	done()

	if err != nil {
		if ctx.Err() != nil {
			c.logger.Info("render canceled", zap.String("path", req.SavePath))
			return canceledOutcome()
		}
		c.logger.Error("render failed unexpectedly", zap.String("path", req.SavePath), zap.Error(err))
		out := unexpectedOutcome(err)
		out.SavePath = req.SavePath
		return out
	}

	switch resp.Status {
	case types.StatusSuccess:
		c.logger.Info("pdf created", zap.String("path", req.SavePath))
		return successOutcome(req.SavePath)
	case types.StatusCanceled:
		return canceledOutcome()
	default:
		c.logger.Warn("renderer reported failure", zap.String("message", resp.Message))
		return workerFailedOutcome(req.SavePath, resp)
	}
}

func (c *Controller) finish(o Outcome) Outcome {
	c.metrics.RecordOutcome(string(o.Kind))
	return o
}

func (c *Controller) onSettingsChange(ch settings.Change) {
	if ch.Key == settings.KeyAutosaveEnabled {
		c.bus.AutosaveChanged(ch.Data.AutosaveEnabled)
	}
}
