// ============================================================================
// Labelmaker Validation - Error Definitions
// ============================================================================
//
// Package: internal/validation
// File: errors.go
// Purpose: Error kinds and the field-error tree returned by every rule
//
// Error Model:
//   - Each failure is an Issue: (field path, kind, message)
//   - Kind is one of the sentinel errors below, so callers can errors.Is
//   - Field paths are dotted: "labels.0.count", "labels.1.aliquots.2.number",
//     "startLabel", "skipLabels"
//   - Job-level issues (NoLabelsToPrint) use the empty path
//
// ============================================================================

package validation

import (
	"errors"
	"sort"
	"strings"
)

// JobPath 是工作層級錯誤的路徑（不屬於任何欄位）
const JobPath = ""

// treeErrorsKey 是 Tree() 輸出中存放訊息的鍵
const treeErrorsKey = "_errors"

// ============================================================================
// 錯誤定義
// ============================================================================

var (
	ErrInvalidType         = errors.New("invalid type")
	ErrNegative            = errors.New("negative")
	ErrNotInteger          = errors.New("not an integer")
	ErrTooLarge            = errors.New("too large")
	ErrBadCoordinateFormat = errors.New("bad coordinate format")
	ErrBadSkipFormat       = errors.New("bad skip format")
	ErrBadLabelMode        = errors.New("bad label mode")
	ErrNoLabelsToPrint     = errors.New("no labels to print")
	ErrSettingOutOfRange   = errors.New("setting out of range")
	ErrBadTextAnchor       = errors.New("bad text anchor")
)

// 使用者看到的訊息
const (
	msgQuantityType     = "Quantity must be a number"
	msgQuantityNegative = "Quantity can't be negative"
	msgQuantityInteger  = "Quantity must be an integer"
	msgQuantityMax      = "Max quantity is 1000"
	msgStartLabel       = "Label coordinates start with the column letter followed by the row number."
	msgSkipLabels       = "Format => Page#: Labels to skip (See About Page)"
	msgLabelMode        = "Label must be either a count label or an aliquot label"
	msgNoLabels         = "No labels to print"
)

// Issue 單一欄位的驗證失敗
type Issue struct {
	Path    string
	Kind    error
	Message string
}

func (i Issue) Error() string {
	if i.Path == JobPath {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

func (i Issue) Unwrap() error {
	return i.Kind
}

// Error 收集一次驗證中的所有 Issue
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap 讓 errors.Is 可以比對任一 Issue 的 Kind
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, len(e.Issues))
	for _, issue := range e.Issues {
		errs = append(errs, issue)
	}
	return errs
}

// Fields 回傳欄位路徑 -> 訊息（不含工作層級錯誤）
func (e *Error) Fields() map[string][]string {
	fields := make(map[string][]string)
	for _, issue := range e.Issues {
		if issue.Path == JobPath {
			continue
		}
		fields[issue.Path] = append(fields[issue.Path], issue.Message)
	}
	return fields
}

// Job 回傳工作層級的訊息
func (e *Error) Job() []string {
	var msgs []string
	for _, issue := range e.Issues {
		if issue.Path == JobPath {
			msgs = append(msgs, issue.Message)
		}
	}
	return msgs
}

// HasJobLevel 是否含有工作層級錯誤
func (e *Error) HasJobLevel() bool {
	return len(e.Job()) > 0
}

// HasFieldLevel 是否含有欄位錯誤
func (e *Error) HasFieldLevel() bool {
	return len(e.Job()) < len(e.Issues)
}

// Paths 回傳排序後的欄位路徑
func (e *Error) Paths() []string {
	fields := e.Fields()
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Tree 將錯誤展開成巢狀結構，每一層的訊息放在 "_errors"
//
//	{"_errors": ["No labels to print"],
//	 "labels": {"0": {"count": {"_errors": ["Max quantity is 1000"]}}}}
func (e *Error) Tree() map[string]interface{} {
	root := map[string]interface{}{}
	for _, issue := range e.Issues {
		node := root
		if issue.Path != JobPath {
			for _, seg := range strings.Split(issue.Path, ".") {
				child, ok := node[seg].(map[string]interface{})
				if !ok {
					child = map[string]interface{}{}
					node[seg] = child
				}
				node = child
			}
		}
		msgs, _ := node[treeErrorsKey].([]string)
		node[treeErrorsKey] = append(msgs, issue.Message)
	}
	return root
}

// AsError 將 Issue 列表包成 error；沒有 Issue 時回傳 nil
func AsError(issues []Issue) error {
	if len(issues) == 0 {
		return nil
	}
	return &Error{Issues: issues}
}

func joinPath(parts ...string) string {
	return strings.Join(parts, ".")
}
