// ============================================================================
// Labelmaker Job Validator
// ============================================================================
//
// Package: internal/validation
// File: job.go
// Purpose: Turn a raw Submission into a canonical PrintJob
//
// Flow:
//   1. NormalizeLabel for every label (collect field issues)
//   2. ValidateStartLabel on startLabel
//   3. ValidateSkipLabels on skipLabels
//   4. Drop labels without printable content
//   5. Empty result -> job-level NoLabelsToPrint
//
// Every field is validated independently, so a bad start label never hides
// label errors and vice versa. NoLabelsToPrint is only evaluated when no
// label carries a field issue: the surviving list is meaningless otherwise.
//
// ============================================================================

package validation

import (
	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// ValidateSubmission 驗證整份表單
//
// 返回值：
//   - types.PrintJob: 正規化後的任務
//   - error: 失敗時為 *Error，包含欄位與工作層級錯誤
func ValidateSubmission(sub types.Submission) (types.PrintJob, error) {
	var issues []Issue

	labels := make([]types.NormalizedLabel, 0, len(sub.Labels))
	labelIssues := 0
	for i, l := range sub.Labels {
		nl, keep, errs := NormalizeLabel(i, l)
		if len(errs) > 0 {
			issues = append(issues, errs...)
			labelIssues += len(errs)
			continue
		}
		if keep {
			labels = append(labels, nl)
		}
	}

	startLabel, err := ValidateStartLabel(sub.StartLabel)
	if err != nil {
		issues = append(issues, Issue{Path: "startLabel", Kind: err, Message: msgStartLabel})
	}

	skipLabels, err := ValidateSkipLabels(sub.SkipLabels)
	if err != nil {
		issues = append(issues, Issue{Path: "skipLabels", Kind: err, Message: msgSkipLabels})
	}

	if labelIssues == 0 && len(labels) == 0 {
		issues = append(issues, Issue{Path: JobPath, Kind: ErrNoLabelsToPrint, Message: msgNoLabels})
	}

	if err := AsError(issues); err != nil {
		return types.PrintJob{}, err
	}

	return types.PrintJob{
		Labels:     labels,
		StartLabel: startLabel,
		SkipLabels: skipLabels,
	}, nil
}

// Normalize 重新驗證一個已正規化的任務；對合法任務而言是冪等的
func Normalize(job types.PrintJob) (types.PrintJob, error) {
	return ValidateSubmission(job.Submission())
}
