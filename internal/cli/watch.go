package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ChuLiYu/labelmaker/internal/controller"
	"github.com/ChuLiYu/labelmaker/internal/events"
	"github.com/ChuLiYu/labelmaker/internal/filewatch"
	"github.com/ChuLiYu/labelmaker/internal/settings"
)

func buildWatchCommand() *cobra.Command {
	var formFile string
	var output string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-render whenever the form or the settings change",
		Long: `Render the form once (asking for a save location if needed), then render
again to the same location every time the form file or the label settings
change. Runs until interrupted; serves /metrics when metrics are enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if formFile == "" {
				return fmt.Errorf("form file is required (use --file or -f)")
			}
			return withApp(cmd, func(a *app) error {
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()
				return runWatch(ctx, a, formFile, output)
			})
		},
	}

	cmd.Flags().StringVarP(&formFile, "file", "f", "", "form JSON file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "save path for the first render (skips the prompt)")
	cmd.MarkFlagRequired("file")
	return cmd
}

// runWatch 所有觸發來源匯入同一個 trigger 通道，由單一 goroutine 依序渲染
func runWatch(ctx context.Context, a *app, formFile, output string) error {
	ctrl := a.controller(output)
	defer ctrl.Close()

	// 容量 1：渲染進行中收到的多次觸發合併成一次
	trigger := make(chan struct{}, 1)
	fire := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	unsubscribeSettings := a.store.OnChange(func(c settings.Change) {
		if c.Key == settings.KeyLabelSettings {
			fire()
		}
	})
	defer unsubscribeSettings()

	evs, unsubscribeEvents := a.bus.Subscribe(events.DefaultBuffer)
	defer unsubscribeEvents()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return filewatch.Watch(ctx, formFile, filewatch.DefaultDebounce, a.logger, fire)
	})

	g.Go(func() error {
		return a.store.Watch(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-evs:
				if !ok {
					return nil
				}
				a.logger.Debug("event", zap.String("type", string(e.Type)))
				switch e.Type {
				case events.GenerationStarted:
					fmt.Fprintln(a.out, "Generating PDF...")
				case events.RegenerateRequested:
					fire()
				case events.AutosaveChanged:
					fmt.Fprintf(a.out, "Autosave changed: %v\n", e.Autosave)
				}
			}
		}
	})

	if a.metrics != nil && a.cfg.Metrics.Enabled {
		g.Go(func() error {
			a.logger.Info("serving metrics", zap.Int("port", a.cfg.Metrics.Port))
			return a.metrics.StartServer(ctx, a.cfg.Metrics.Port)
		})
	}

	g.Go(func() error {
		generated := false
		render := func() {
			f, err := loadForm(formFile)
			if err != nil {
				fmt.Fprintf(a.out, "Error: %v\n", err)
				return
			}

			var out controller.Outcome
			if !generated {
				out, err = ctrl.Submit(ctx, f.Submission())
				if errors.Is(err, controller.ErrJobInFlight) {
					return
				}
			} else {
				out = ctrl.RegenerateSubmission(ctx, f.Submission())
			}
			if out.Kind == controller.OutcomeSuccess {
				generated = true
			}
			if rerr := report(a.out, out); rerr != nil {
				a.logger.Info("render did not produce a pdf", zap.String("outcome", string(out.Kind)))
			}
		}

		render()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-trigger:
				render()
			}
		}
	})

	return g.Wait()
}
