// ============================================================================
// Labelmaker Metrics - Prometheus 監控指標
// ============================================================================
//
// Package: internal/metrics
// 文件: metrics.go
// 功能: 收集渲染與驗證結果，透過 /metrics 或 textfile 輸出
//
// 指標分類:
//
//   1. 計數器 (Counter)：
//      - labelmaker_render_requests_total{outcome}: 每次提交的最終結果
//        outcome = success | canceled | field_errors | no_labels |
//                  worker_failed | unexpected
//      - labelmaker_validation_failures_total{kind}: 驗證失敗
//        kind = quantity | start_label | skip_labels | label_mode | job
//      - labelmaker_labels_submitted_total: 通過驗證的標籤數
//      - labelmaker_busy_rejections_total: 已有任務執行時被拒絕的提交
//
//   2. 分佈 (Histogram)：
//      - labelmaker_worker_duration_seconds: 渲染程序執行時間
//
//   3. 瞬時值 (Gauge)：
//      - labelmaker_renders_in_flight: 目前執行中的渲染程序
//
// 輸出方式:
//   - 長時間執行（watch）：HTTP /metrics
//   - 單次指令：結束前寫入 node_exporter textfile
//
// ============================================================================

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labelmaker"

// Collector Prometheus 指標收集器
type Collector struct {
	registry *prometheus.Registry

	renderRequests     *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	labelsSubmitted    prometheus.Counter
	busyRejections     prometheus.Counter

	workerDuration prometheus.Histogram
	inFlight       prometheus.Gauge
}

// NewCollector 建立收集器並註冊到 registry（nil 時建立新的）
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		renderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_requests_total",
			Help:      "Total number of PDF requests by final outcome",
		}, []string{"outcome"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of validation issues by kind",
		}, []string{"kind"}),
		labelsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_submitted_total",
			Help:      "Total number of labels that survived normalization",
		}),
		busyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_rejections_total",
			Help:      "Total number of submissions rejected while a job was in flight",
		}),
		workerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_duration_seconds",
			Help:      "Wall time of renderer processes in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "renders_in_flight",
			Help:      "Current number of running renderer processes",
		}),
	}

	registry.MustRegister(
		c.renderRequests,
		c.validationFailures,
		c.labelsSubmitted,
		c.busyRejections,
		c.workerDuration,
		c.inFlight,
	)
	return c
}

// Registry 回傳底層 registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordOutcome 記錄一次提交的最終結果
func (c *Collector) RecordOutcome(outcome string) {
	c.renderRequests.WithLabelValues(outcome).Inc()
}

// RecordValidationFailure 記錄驗證失敗
func (c *Collector) RecordValidationFailure(kind string) {
	c.validationFailures.WithLabelValues(kind).Inc()
}

// RecordLabels 記錄通過驗證的標籤數
func (c *Collector) RecordLabels(n int) {
	c.labelsSubmitted.Add(float64(n))
}

// RecordBusyRejection 記錄忙碌時被拒絕的提交
func (c *Collector) RecordBusyRejection() {
	c.busyRejections.Inc()
}

// WorkerStarted 渲染程序開始；回傳的函數在結束時呼叫
func (c *Collector) WorkerStarted() func() {
	start := time.Now()
	c.inFlight.Inc()
	return func() {
		c.inFlight.Dec()
		c.workerDuration.Observe(time.Since(start).Seconds())
	}
}

// WriteTextfile 以 Prometheus 文字格式寫出所有指標（node_exporter textfile collector）
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Handler 回傳 /metrics handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// StartServer 啟動 Prometheus metrics HTTP 伺服器，ctx 結束時關閉
//
// 參數：
//   - ctx: 控制伺服器生命週期
//   - port: HTTP 伺服器端口
//
// 返回值：
//   - error: 啟動失敗的錯誤；正常關閉時為 nil
func (c *Collector) StartServer(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
