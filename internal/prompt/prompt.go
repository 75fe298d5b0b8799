// Package prompt provides the save-location collaborator used when a PDF is
// generated for the first time or moved with "save as".
package prompt

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

const pdfExt = ".pdf"

// ErrCanceled is returned when the user declines to choose a save path.
var ErrCanceled = errors.New("save path selection canceled")

// SavePathPrompter asks the user where the rendered PDF should be written.
// defaultPath pre-fills the answer; an empty answer counts as a cancel.
type SavePathPrompter interface {
	PromptSavePath(ctx context.Context, defaultPath string) (string, error)
}

// Survey prompts on the controlling terminal.
type Survey struct {
	Message string
	opts    []survey.AskOpt
}

// NewSurvey returns a terminal prompter. Extra AskOpts (e.g. survey.WithStdio)
// are passed through to every question.
func NewSurvey(opts ...survey.AskOpt) *Survey {
	return &Survey{Message: "Change save location", opts: opts}
}

// PromptSavePath implements SavePathPrompter.
func (s *Survey) PromptSavePath(ctx context.Context, defaultPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	q := &survey.Input{
		Message: s.Message,
		Default: defaultPath,
		Help:    "PDF Files (*.pdf). Leave empty to cancel.",
	}
	if err := survey.AskOne(q, &out, s.opts...); err != nil {
		return "", translateSurveyErr(err)
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrCanceled
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrCanceled
	}
	return err
}

// Static answers every prompt with a fixed path. It backs non-interactive
// runs (--output) and tests. An empty Path behaves like a cancel.
type Static struct {
	Path string
	Err  error

	// Defaults records the defaultPath of every call.
	Defaults []string
}

// PromptSavePath implements SavePathPrompter.
func (s *Static) PromptSavePath(ctx context.Context, defaultPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.Defaults = append(s.Defaults, defaultPath)
	if s.Err != nil {
		return "", s.Err
	}
	if s.Path == "" {
		return "", ErrCanceled
	}
	return s.Path, nil
}

// NormalizeSavePath appends ".pdf" when missing, expands a leading "~/" and
// makes the path absolute.
func NormalizeSavePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrCanceled
	}
	if !strings.HasSuffix(p, pdfExt) {
		p += pdfExt
	}
	if strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(home, p[2:])
	}
	return filepath.Abs(p)
}

// DefaultSavePath is <home>/Downloads/labels.pdf.
func DefaultSavePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, "Downloads", "labels.pdf")
}
