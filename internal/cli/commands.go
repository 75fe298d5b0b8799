package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/labelmaker/internal/builder"
	"github.com/ChuLiYu/labelmaker/internal/events"
	"github.com/ChuLiYu/labelmaker/internal/form"
	"github.com/ChuLiYu/labelmaker/internal/validation"
	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// signalContext 在 SIGINT / SIGTERM 時取消
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ============================================================================
// init
// ============================================================================

func buildInitCommand() *cobra.Command {
	var output string
	var labels int
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter form file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			f := form.New()
			for i := 1; i < labels; i++ {
				f.AddLabel()
			}
			for i, e := range f.Entries {
				name := fmt.Sprintf("Label %d", i+1)
				if err := f.UpdateLabel(e.ID, func(e *form.Entry) { e.Text = name }); err != nil {
					return err
				}
			}
			if err := f.WriteFile(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d label(s)\n", output, len(f.Entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "form.json", "form file to create")
	cmd.Flags().IntVarP(&labels, "labels", "n", 1, "number of labels in the form")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// ============================================================================
// validate
// ============================================================================

func buildValidateCommand() *cobra.Command {
	var formFile string
	var format string
	var skipPages bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a form and print the normalized print job",
		Long: `Validate a form file and print the canonical print job. On failure the
field-error tree is printed instead and the command exits non-zero.
--skip-pages prints the per-page breakdown of the skip text instead of the job.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadForm(formFile)
			if err != nil {
				return err
			}

			job, err := validation.ValidateSubmission(f.Submission())
			if err == nil {
				if skipPages {
					pages, err := validation.ParseSkipPages(job.SkipLabels)
					if err != nil {
						return err
					}
					return encode(cmd.OutOrStdout(), format, pages)
				}
				return encode(cmd.OutOrStdout(), format, job)
			}

			var verr *validation.Error
			if !errors.As(err, &verr) {
				return err
			}
			if encErr := encode(cmd.OutOrStdout(), format, verr.Tree()); encErr != nil {
				return encErr
			}
			return ErrInvalidForm
		},
	}

	cmd.Flags().StringVarP(&formFile, "file", "f", "", "form JSON file")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&skipPages, "skip-pages", false, "print the skip labels grouped by page")
	cmd.MarkFlagRequired("file")
	return cmd
}

// ============================================================================
// generate / regenerate / save-as
// ============================================================================

func buildGenerateCommand() *cobra.Command {
	var formFile string
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Validate a form and render it to PDF",
		Long: `Validate a form and render it. The save location is asked for unless
autosave is on and a previous location exists. --output skips the prompt and
takes precedence over the autosave location; it becomes the stored location.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadForm(formFile)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()

				ctrl := a.controller(output)
				defer ctrl.Close()

				out, err := ctrl.Submit(ctx, f.Submission())
				if err != nil {
					return err
				}
				return report(a.out, out)
			})
		},
	}

	cmd.Flags().StringVarP(&formFile, "file", "f", "", "form JSON file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "save path (skips the prompt and overrides the autosave location)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func buildRegenerateCommand() *cobra.Command {
	var formFile string

	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Render again to the last save location with current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadForm(formFile)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()

				ctrl := a.controller("")
				defer ctrl.Close()

				return report(a.out, ctrl.RegenerateSubmission(ctx, f.Submission()))
			})
		},
	}

	cmd.Flags().StringVarP(&formFile, "file", "f", "", "form JSON file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func buildSaveAsCommand() *cobra.Command {
	var formFile string
	var output string

	cmd := &cobra.Command{
		Use:   "save-as",
		Short: "Choose a new save location and render there",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadForm(formFile)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()

				ctrl := a.controller(output)
				defer ctrl.Close()

				requests, unsubscribe := a.bus.Subscribe(events.DefaultBuffer)
				defer unsubscribe()

				if _, err := ctrl.ChangeSavePath(ctx); err != nil {
					if errors.Is(err, builder.ErrCanceled) {
						fmt.Fprintln(a.out, "Canceled: no save location chosen")
						return nil
					}
					return err
				}

				for {
					select {
					case e := <-requests:
						if e.Type == events.RegenerateRequested {
							return report(a.out, ctrl.RegenerateSubmission(ctx, f.Submission()))
						}
					default:
						return nil
					}
				}
			})
		},
	}

	cmd.Flags().StringVarP(&formFile, "file", "f", "", "form JSON file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "new save path (skips the prompt)")
	cmd.MarkFlagRequired("file")
	return cmd
}

// ============================================================================
// settings / autosave
// ============================================================================

func buildSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change label appearance settings",
	}
	cmd.AddCommand(buildSettingsShowCommand())
	cmd.AddCommand(buildSettingsSetCommand())
	return cmd
}

func buildSettingsShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				return encode(a.out, format, a.store.Snapshot())
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	return cmd
}

func buildSettingsSetCommand() *cobra.Command {
	var border bool
	var fontSize float64
	var padding float64
	var anchor string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change label appearance settings",
		Long:  "Change label appearance settings. Only the flags given are changed; invalid values leave the stored settings untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				rs := a.store.RenderSettings()
				flags := cmd.Flags()
				if flags.Changed("border") {
					rs.HasBorder = border
				}
				if flags.Changed("font-size") {
					rs.FontSize = fontSize
				}
				if flags.Changed("padding") {
					rs.Padding = padding
				}
				if flags.Changed("anchor") {
					rs.TextAnchor = types.TextAnchor(anchor)
				}

				if err := a.store.SetRenderSettings(rs); err != nil {
					var verr *validation.Error
					if errors.As(err, &verr) {
						printFieldErrors(a.out, verr)
						return ErrInvalidForm
					}
					return err
				}
				return encode(a.out, "json", rs)
			})
		},
	}

	cmd.Flags().BoolVar(&border, "border", false, "draw a border around each label")
	cmd.Flags().Float64Var(&fontSize, "font-size", 12, "font size (0, 30]")
	cmd.Flags().Float64Var(&padding, "padding", 1.75, "padding [0, 4]")
	cmd.Flags().StringVar(&anchor, "anchor", string(types.AnchorMiddle), "text alignment: start, middle or end")
	return cmd
}

func buildAutosaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "autosave on|off",
		Short:     "Remember the save location between renders",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := args[0] == "on"
			return withApp(cmd, func(a *app) error {
				ctrl := a.controller("")
				defer ctrl.Close()

				if err := ctrl.SetAutosave(enabled); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Autosave %s (save location: %s)\n", args[0], a.store.LastSavePath())
				return nil
			})
		},
	}
	return cmd
}
