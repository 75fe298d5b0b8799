package cli

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ChuLiYu/labelmaker/internal/controller"
	"github.com/ChuLiYu/labelmaker/internal/events"
	"github.com/ChuLiYu/labelmaker/internal/logging"
	"github.com/ChuLiYu/labelmaker/internal/metrics"
	"github.com/ChuLiYu/labelmaker/internal/prompt"
	"github.com/ChuLiYu/labelmaker/internal/settings"
	"github.com/ChuLiYu/labelmaker/internal/worker"
)

// app 一次指令執行所需的元件
type app struct {
	cfg      *Config
	logger   *zap.Logger
	store    *settings.Store
	metrics  *metrics.Collector
	client   *worker.Client
	bus      *events.Bus
	out      io.Writer
	prompter prompt.SavePathPrompter
}

// newApp 依設定建立 logger、設定儲存、指標與渲染程序客戶端
func newApp(cfg *Config, out io.Writer) (*app, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := settings.Open(cfg.Settings.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		client: worker.NewClient(worker.Config{
			Command: cfg.Worker.Command,
			Args:    cfg.Worker.Args,
			Env:     cfg.Worker.Env,
			Timeout: cfg.Worker.Timeout,
		}, logger),
		bus:      events.NewBus(logger),
		out:      out,
		prompter: prompt.NewSurvey(),
	}
	if cfg.Metrics.Enabled || cfg.Metrics.Textfile != "" {
		a.metrics = metrics.NewCollector(nil)
	}
	return a, nil
}

// controller 建立 Controller；output 非空時取代互動提示，並優先於 autosave 路徑
func (a *app) controller(output string) *controller.Controller {
	prompter := a.prompter
	if output != "" {
		prompter = &prompt.Static{Path: output}
	}

	deps := controller.Deps{
		Settings: a.store,
		Prompter: prompter,
		SavePath: output,
		Invoker:  a.client,
		Bus:      a.bus,
		Logger:   a.logger,
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics
	}
	return controller.New(deps)
}

// close 寫出 textfile 指標並清空日誌緩衝
func (a *app) close() {
	if a.metrics != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Warn("failed to write metrics textfile", zap.Error(err))
		}
	}
	a.bus.Close()
	_ = a.logger.Sync()
}
