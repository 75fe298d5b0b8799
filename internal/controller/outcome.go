package controller

import (
	"errors"

	"github.com/ChuLiYu/labelmaker/internal/validation"
	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// ============================================================================
// 錯誤分類
// ============================================================================

// OutcomeKind 一次提交的最終結果（同時作為 metrics 標籤）
type OutcomeKind string

const (
	OutcomeSuccess      OutcomeKind = "success"       // PDF 已產生
	OutcomeCanceled     OutcomeKind = "canceled"      // 使用者沒有選擇路徑，靜默結束
	OutcomeFieldErrors  OutcomeKind = "field_errors"  // 欄位錯誤，逐欄顯示
	OutcomeNoLabels     OutcomeKind = "no_labels"     // 任務層級錯誤，顯示對話框
	OutcomeWorkerFailed OutcomeKind = "worker_failed" // 渲染程序回報失敗
	OutcomeUnexpected   OutcomeKind = "unexpected"    // 無法啟動程序等
)

const (
	// MsgUnexpected 非預期錯誤時顯示給使用者的訊息
	MsgUnexpected = "An unexpected error occurred while creating the PDF."
	// msgWorkerFailedPrefix 渲染失敗訊息前綴
	msgWorkerFailedPrefix = "PDF creation failed: "
)

// Outcome 提交結果
type Outcome struct {
	Kind     OutcomeKind
	Response types.WorkerResponse // 傳回 UI 的 success / error / canceled
	Message  string               // 對話框訊息；success、canceled、欄位錯誤時為空
	SavePath string               // 實際使用的輸出路徑

	// Validation 驗證失敗時的欄位樹
	Validation *validation.Error
	// Err 非預期錯誤的原因（只用於日誌，不顯示給使用者）
	Err error
}

// Blocking 是否需要以對話框呈現
func (o Outcome) Blocking() bool {
	switch o.Kind {
	case OutcomeNoLabels, OutcomeWorkerFailed, OutcomeUnexpected:
		return true
	}
	return false
}

func successOutcome(path string) Outcome {
	return Outcome{
		Kind:     OutcomeSuccess,
		Response: types.WorkerResponse{Status: types.StatusSuccess},
		SavePath: path,
	}
}

func canceledOutcome() Outcome {
	return Outcome{
		Kind:     OutcomeCanceled,
		Response: types.WorkerResponse{Status: types.StatusCanceled},
	}
}

func workerFailedOutcome(path string, resp types.WorkerResponse) Outcome {
	return Outcome{
		Kind:     OutcomeWorkerFailed,
		Response: resp,
		Message:  msgWorkerFailedPrefix + resp.Message,
		SavePath: path,
	}
}

func unexpectedOutcome(err error) Outcome {
	return Outcome{
		Kind:     OutcomeUnexpected,
		Response: types.WorkerResponse{Status: types.StatusError, Message: MsgUnexpected},
		Message:  MsgUnexpected,
		Err:      err,
	}
}

// validationOutcome 任務層級錯誤（沒有可列印的標籤）與欄位錯誤分開處理
func validationOutcome(verr *validation.Error) Outcome {
	o := Outcome{
		Kind:       OutcomeFieldErrors,
		Response:   types.WorkerResponse{Status: types.StatusError},
		Validation: verr,
	}
	if !verr.HasFieldLevel() && verr.HasJobLevel() {
		o.Kind = OutcomeNoLabels
		o.Message = verr.Job()[0]
		o.Response.Message = o.Message
	}
	return o
}

// issueKind 將驗證錯誤對應到 metrics 的 kind 標籤
func issueKind(issue validation.Issue) string {
	switch {
	case errors.Is(issue.Kind, validation.ErrInvalidType),
		errors.Is(issue.Kind, validation.ErrNegative),
		errors.Is(issue.Kind, validation.ErrNotInteger),
		errors.Is(issue.Kind, validation.ErrTooLarge):
		return "quantity"
	case errors.Is(issue.Kind, validation.ErrBadCoordinateFormat):
		return "start_label"
	case errors.Is(issue.Kind, validation.ErrBadSkipFormat):
		return "skip_labels"
	case errors.Is(issue.Kind, validation.ErrBadLabelMode):
		return "label_mode"
	case errors.Is(issue.Kind, validation.ErrNoLabelsToPrint):
		return "job"
	}
	return "other"
}
