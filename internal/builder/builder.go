// ============================================================================
// Labelmaker Job Builder
// ============================================================================
//
// Package: internal/builder
// File: builder.go
// Function: Merges a validated PrintJob, a RenderSettings snapshot and a
//           resolved save path into the WorkerRequest payload
//
// Entry points:
//   ForGeneration   - use the explicit path when one was given; otherwise
//                     prompt unless autosave is on and a previous path
//                     exists. The resolved path is stored back
//   ForRegeneration - reuse the stored path without prompting; returns
//                     ErrNoSavePath when nothing has been stored yet
//
// Settings are read from the live Source on every call, never cached, so a
// settings change between two renders is honoured by the next one.
//
// ============================================================================

package builder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ChuLiYu/labelmaker/internal/prompt"
	"github.com/ChuLiYu/labelmaker/pkg/types"
)

var (
	// ErrCanceled 使用者沒有選擇儲存路徑
	ErrCanceled = errors.New("no save path chosen")
	// ErrNoSavePath 尚未儲存過路徑，無法重新產生
	ErrNoSavePath = errors.New("no stored save path")
)

// Source 提供目前（即時）的設定與儲存路徑
type Source interface {
	RenderSettings() types.RenderSettings
	AutosaveEnabled() bool
	LastSavePath() string
	SetLastSavePath(path string) error
}

// Build 純合併：不讀取任何狀態
func Build(job types.PrintJob, settings types.RenderSettings, savePath string) types.WorkerRequest {
	labels := make([]types.NormalizedLabel, 0, len(job.Labels))
	for _, l := range job.Labels {
		aliquots := make([]types.NormalizedAliquot, len(l.Aliquots))
		copy(aliquots, l.Aliquots)
		l.Aliquots = aliquots
		labels = append(labels, l)
	}

	return types.WorkerRequest{
		Labels:     labels,
		StartLabel: job.StartLabel,
		SkipLabels: job.SkipLabels,
		Border:     settings.HasBorder,
		Padding:    settings.Padding,
		FontSize:   settings.FontSize,
		TextAnchor: settings.TextAnchor,
		SavePath:   savePath,
	}
}

// Builder 依設定來源與路徑提示器組出 WorkerRequest
type Builder struct {
	source       Source
	prompter     prompt.SavePathPrompter
	explicitPath string
	logger       *zap.Logger
}

// Option 調整 Builder
type Option func(*Builder)

// WithExplicitPath 第一次產生一律使用這個路徑（優先於 autosave 與提示）
func WithExplicitPath(path string) Option {
	return func(b *Builder) { b.explicitPath = path }
}

// New 建立 Builder
func New(source Source, prompter prompt.SavePathPrompter, logger *zap.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Builder{source: source, prompter: prompter, logger: logger.Named("builder")}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ForGeneration 第一次產生 PDF
func (b *Builder) ForGeneration(ctx context.Context, job types.PrintJob) (types.WorkerRequest, error) {
	if b.explicitPath != "" {
		path, err := b.storeSavePath(b.explicitPath)
		if err != nil {
			return types.WorkerRequest{}, err
		}
		return Build(job, b.source.RenderSettings(), path), nil
	}

	path := b.source.LastSavePath()
	if !b.source.AutosaveEnabled() || path == "" {
		var err error
		path, err = b.ChooseSavePath(ctx)
		if err != nil {
			return types.WorkerRequest{}, err
		}
	}
	return Build(job, b.source.RenderSettings(), path), nil
}

// ForRegeneration 以上次的路徑與目前設定重新產生，不提示
func (b *Builder) ForRegeneration(ctx context.Context, job types.PrintJob) (types.WorkerRequest, error) {
	path := b.source.LastSavePath()
	if path == "" {
		return types.WorkerRequest{}, ErrNoSavePath
	}
	return Build(job, b.source.RenderSettings(), path), nil
}

// ChooseSavePath 一律提示使用者選擇路徑，正規化後寫回 lastSavePath
func (b *Builder) ChooseSavePath(ctx context.Context) (string, error) {
	if b.prompter == nil {
		return "", ErrCanceled
	}

	raw, err := b.prompter.PromptSavePath(ctx, b.source.LastSavePath())
	if errors.Is(err, prompt.ErrCanceled) {
		return "", ErrCanceled
	}
	if err != nil {
		return "", fmt.Errorf("save path prompt failed: %w", err)
	}

	return b.storeSavePath(raw)
}

// storeSavePath 正規化路徑並寫回 lastSavePath
func (b *Builder) storeSavePath(raw string) (string, error) {
	path, err := prompt.NormalizeSavePath(raw)
	if errors.Is(err, prompt.ErrCanceled) {
		return "", ErrCanceled
	}
	if err != nil {
		return "", fmt.Errorf("invalid save path %q: %w", raw, err)
	}

	if err := b.source.SetLastSavePath(path); err != nil {
		return "", fmt.Errorf("failed to store save path: %w", err)
	}
	b.logger.Info("save path chosen", zap.String("path", path))
	return path, nil
}
