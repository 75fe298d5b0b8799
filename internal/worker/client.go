// ============================================================================
// Labelmaker Worker Client - External Renderer Invocation
// ============================================================================
//
// Package: internal/worker
// File: client.go
// Function: Runs the external PDF renderer once per request and classifies
//           its outcome
//
// Process Contract:
//   ┌──────────────┐   argv[last] = JSON(WorkerRequest)   ┌──────────────┐
//   │   Client     │ ───────────────────────────────────▶ │   Renderer   │
//   │              │ ◀─── exit code + stdout + stderr ─── │  (one-shot)  │
//   └──────────────┘                                      └──────────────┘
//
//   - Exactly one process per Invoke call, no retries
//   - The JSON payload is the last (usually the only) argument; Config.Args
//     are placed before it (e.g. a script path for an interpreter)
//   - stdout and stderr are fully buffered, never streamed to the caller
//   - The client holds no lock: concurrent Invoke calls run concurrent
//     processes. Gating "one job in flight" belongs to the caller
//
// Outcome Classification:
//   exit == 0 && trim(stdout) starts with "success"  → success
//   anything else                                    → error, message =
//     trim(stderr) if stderr is non-empty,
//     else trim(stdout) if stdout is non-empty,
//     else "Worker exited with code <N>"
//
//   The prefix sniffing is the renderer's output contract: a diagnostic
//   printed before "success" turns a successful render into an error.
//
// Timeout:
//   Config.Timeout == 0 waits for the process indefinitely. A positive value
//   kills the process when it expires and reports an error outcome. Caller
//   cancellation through ctx also kills the process and returns ctx.Err().
//   The renderer runs in its own process group and the whole group is
//   killed, so grandchildren holding stdout/stderr cannot keep Wait blocked.
//   After the renderer exits, output still held open by a leftover child is
//   abandoned after pipeWaitDelay.
//
// ============================================================================

package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// successToken 渲染程序成功時在 stdout 開頭輸出的字串
const successToken = "success"

// pipeWaitDelay 程序結束（或被終止）後等待輸出管線關閉的上限
const pipeWaitDelay = 2 * time.Second

var (
	// ErrSpawn 無法啟動渲染程序
	ErrSpawn = errors.New("failed to start worker process")
	// ErrNoCommand 沒有設定渲染程序路徑
	ErrNoCommand = errors.New("worker command is not configured")
)

// Config 渲染程序的啟動方式
type Config struct {
	Command string        // 可執行檔路徑（或直譯器）
	Args    []string      // 放在 JSON 參數之前的參數（例如腳本路徑）
	Env     []string      // 額外的環境變數 KEY=VALUE
	Timeout time.Duration // 0 表示無限等待
}

// Client 每次呼叫啟動一個渲染程序
type Client struct {
	cfg    Config
	logger *zap.Logger
}

// NewClient 建立新的 Client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, logger: logger.Named("worker")}
}

// Invoke 執行一次渲染並等待程序結束
//
// 返回值：
//   - types.WorkerResponse: success 或 error（含訊息）
//   - error: 無法啟動程序、等待失敗或呼叫端取消；此時 response 沒有意義
func (c *Client) Invoke(ctx context.Context, req types.WorkerRequest) (types.WorkerResponse, error) {
	if c.cfg.Command == "" {
		return types.WorkerResponse{}, ErrNoCommand
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return types.WorkerResponse{}, fmt.Errorf("failed to encode worker request: %w", err)
	}

	runCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	args := make([]string, 0, len(c.cfg.Args)+1)
	args = append(args, c.cfg.Args...)
	args = append(args, string(payload))

	cmd := exec.CommandContext(runCtx, c.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeWaitDelay
	setProcessGroup(cmd)
	if len(c.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), c.cfg.Env...)
	}

	c.logger.Debug("spawning worker",
		zap.String("command", c.cfg.Command),
		zap.Int("payload_bytes", len(payload)),
		zap.Int("labels", len(req.Labels)),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		c.logger.Error("worker spawn failed", zap.String("command", c.cfg.Command), zap.Error(err))
		return types.WorkerResponse{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		// 渲染程序已結束，但留下的子程序仍佔用輸出
		c.logger.Warn("worker left processes holding its output", zap.Duration("elapsed", elapsed))
		_ = killProcessGroup(cmd)
		waitErr = nil
	}

	// 呼叫端取消優先於逾時判斷
	if ctx.Err() != nil {
		c.logger.Warn("worker canceled", zap.Duration("elapsed", elapsed))
		return types.WorkerResponse{}, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("worker timed out", zap.Duration("timeout", c.cfg.Timeout))
		return types.WorkerResponse{
			Status:  types.StatusError,
			Message: fmt.Sprintf("Worker timed out after %s", c.cfg.Timeout),
		}, nil
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		c.logger.Error("worker wait failed", zap.Error(waitErr))
		return types.WorkerResponse{}, fmt.Errorf("failed to wait for worker: %w", waitErr)
	}

	code := cmd.ProcessState.ExitCode()
	resp := Classify(code, stdout.String(), stderr.String())

	c.logger.Info("worker exited",
		zap.Int("exit_code", code),
		zap.Duration("elapsed", elapsed),
		zap.String("status", string(resp.Status)),
	)
	return resp, nil
}

// Classify 依結束碼與輸出判斷渲染結果
func Classify(exitCode int, stdout, stderr string) types.WorkerResponse {
	out := strings.TrimSpace(stdout)
	if exitCode == 0 && strings.HasPrefix(out, successToken) {
		return types.WorkerResponse{Status: types.StatusSuccess}
	}

	// 以原始 stderr 是否為空決定來源，與渲染程序端的約定一致
	var message string
	switch {
	case stderr != "":
		message = strings.TrimSpace(stderr)
	case stdout != "":
		message = out
	}
	if message == "" {
		message = fmt.Sprintf("Worker exited with code %d", exitCode)
	}
	return types.WorkerResponse{Status: types.StatusError, Message: message}
}
