// ============================================================================
// Labelmaker CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra command tree wiring the validation pipeline, the settings
//          store and the external renderer together
//
// Command Structure:
//   labelmaker                     # Root command
//   ├── init       -o form.json    # Write a starter form file
//   ├── validate   -f form.json    # Validate/normalize, print job or errors
//   ├── generate   -f form.json    # First generation (may prompt for a path)
//   ├── regenerate -f form.json    # Reuse last path and current settings
//   ├── save-as    -f form.json    # Choose a new location, then regenerate
//   ├── settings show | set        # Label appearance settings
//   ├── autosave   on | off        # Remember the save location
//   ├── batch      -f jobs.json    # Render several forms concurrently
//   └── watch      -f form.json    # Re-render whenever the form changes
//
// Configuration Management:
//   YAML config file (default: configs/labelmaker.yaml) loaded with viper,
//   overridable through LABELMAKER_* environment variables:
//   - worker:   renderer command, args, env, timeout
//   - settings: settings.json location
//   - log:      level, format, output
//   - metrics:  HTTP endpoint (watch) and textfile (one-shot commands)
//   - batch:    concurrent renderer processes
//
// Exit Status:
//   0 on success or when the user cancels the save dialog, non-zero on field
//   errors, "No labels to print", renderer failures and unexpected errors.
//
// ============================================================================

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ChuLiYu/labelmaker/internal/controller"
	"github.com/ChuLiYu/labelmaker/internal/form"
	"github.com/ChuLiYu/labelmaker/internal/validation"
)

var (
	// ErrRenderFailed 提交沒有產生 PDF（取消除外）
	ErrRenderFailed = errors.New("pdf was not created")
	// ErrInvalidForm 表單驗證失敗
	ErrInvalidForm = errors.New("form is invalid")
)

var configFile string

// BuildCLI 建立根指令
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "labelmaker",
		Short: "Labelmaker: validate label sheets and render them to PDF",
		Long: `Labelmaker turns a label form (counts, aliquots, start position and
positions to skip) into a print job and hands it to an external PDF renderer.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", DefaultConfigPath, "config file path")

	rootCmd.AddCommand(buildInitCommand())
	rootCmd.AddCommand(buildValidateCommand())
	rootCmd.AddCommand(buildGenerateCommand())
	rootCmd.AddCommand(buildRegenerateCommand())
	rootCmd.AddCommand(buildSaveAsCommand())
	rootCmd.AddCommand(buildSettingsCommand())
	rootCmd.AddCommand(buildAutosaveCommand())
	rootCmd.AddCommand(buildBatchCommand())
	rootCmd.AddCommand(buildWatchCommand())

	return rootCmd
}

// withApp 載入設定、建立元件，結束時釋放
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a, err := newApp(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

func loadForm(path string) (*form.Form, error) {
	if path == "" {
		return nil, fmt.Errorf("form file is required (use --file or -f)")
	}
	return form.LoadFile(path)
}

// ============================================================================
// 輸出格式
// ============================================================================

func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (json or yaml)", format)
	}
}

// printFieldErrors 逐欄輸出驗證錯誤（路徑排序）
func printFieldErrors(w io.Writer, verr *validation.Error) {
	fields := verr.Fields()
	paths := make([]string, 0, len(fields))
	for p := range fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for _, msg := range fields[p] {
			fmt.Fprintf(w, "  %s: %s\n", p, msg)
		}
	}
}

// report 輸出提交結果並轉成結束狀態
func report(w io.Writer, out controller.Outcome) error {
	switch out.Kind {
	case controller.OutcomeSuccess:
		fmt.Fprintf(w, "PDF created: %s\n", out.SavePath)
		return nil
	case controller.OutcomeCanceled:
		fmt.Fprintln(w, "Canceled: no save location chosen")
		return nil
	case controller.OutcomeFieldErrors:
		fmt.Fprintln(w, "Please fix the following fields:")
		if out.Validation != nil {
			printFieldErrors(w, out.Validation)
		}
		return ErrInvalidForm
	default:
		fmt.Fprintf(w, "Error: %s\n", out.Message)
		if out.Kind == controller.OutcomeNoLabels {
			return ErrInvalidForm
		}
		return ErrRenderFailed
	}
}
