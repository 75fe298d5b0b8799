package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChuLiYu/labelmaker/internal/builder"
	"github.com/ChuLiYu/labelmaker/internal/controller"
	"github.com/ChuLiYu/labelmaker/internal/form"
	"github.com/ChuLiYu/labelmaker/internal/prompt"
	"github.com/ChuLiYu/labelmaker/internal/validation"
	"github.com/ChuLiYu/labelmaker/internal/worker"
	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// batchEntry jobs.json 中的一筆；form 與 formFile 擇一
type batchEntry struct {
	ID       string            `json:"id"`
	Output   string            `json:"output"`
	Form     *types.Submission `json:"form,omitempty"`
	FormFile string            `json:"formFile,omitempty"`
}

// batchLine 一筆任務的最終結果
type batchLine struct {
	id      string
	status  string
	message string
}

func buildBatchCommand() *cobra.Command {
	var jobsFile string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Render several forms with a bounded number of renderer processes",
		Long: `Read a JSON array of {"id", "output", "form" | "formFile"} entries,
validate every form and render the valid ones concurrently using the current
settings. Every entry needs an explicit output path; nothing is prompted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadBatch(jobsFile)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()

				lines := make([]batchLine, len(entries))
				index := make(map[string]int, len(entries))
				paths := make(map[string]string, len(entries))
				tasks := make([]worker.Task, 0, len(entries))

				rs := a.store.RenderSettings()
				for i, e := range entries {
					lines[i] = batchLine{id: e.ID}
					job, path, err := prepareBatchEntry(e, filepath.Dir(jobsFile))
					if err != nil {
						lines[i].status = "invalid"
						lines[i].message = err.Error()
						a.recordOutcome(controller.OutcomeFieldErrors)
						continue
					}
					index[e.ID] = i
					paths[e.ID] = path
					tasks = append(tasks, worker.Task{ID: e.ID, Request: builder.Build(job, rs, path)})
				}

				if len(tasks) > 0 {
					pool := worker.NewPool(a.client, len(tasks))
					if err := pool.Start(ctx, a.cfg.Batch.Workers); err != nil {
						return err
					}
					for _, t := range tasks {
						if err := pool.Submit(t); err != nil {
							pool.Stop()
							return err
						}
					}
					for range tasks {
						res, err := pool.ReceiveResult()
						if err != nil {
							break
						}
						i := index[res.TaskID]
						switch {
						case res.Error != nil:
							a.logger.Error("batch render failed", zap.String("id", res.TaskID), zap.Error(res.Error))
							lines[i].status = string(types.StatusError)
							lines[i].message = controller.MsgUnexpected
							a.recordOutcome(controller.OutcomeUnexpected)
						case res.Response.Status == types.StatusSuccess:
							lines[i].status = string(types.StatusSuccess)
							lines[i].message = paths[res.TaskID]
							a.recordOutcome(controller.OutcomeSuccess)
						default:
							lines[i].status = string(res.Response.Status)
							lines[i].message = res.Response.Message
							a.recordOutcome(controller.OutcomeWorkerFailed)
						}
					}
					pool.Stop()
				}

				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSTATUS\tDETAIL")
				failed := 0
				for _, l := range lines {
					if l.status != string(types.StatusSuccess) {
						failed++
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", l.id, l.status, l.message)
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				if failed > 0 {
					return fmt.Errorf("%w: %d of %d entries", ErrRenderFailed, failed, len(lines))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&jobsFile, "file", "f", "", "JSON file with batch entries")
	cmd.MarkFlagRequired("file")
	return cmd
}

func loadBatch(path string) ([]batchEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	var entries []batchEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			entries[i].ID = fmt.Sprintf("entry-%d", i+1)
		}
		if seen[entries[i].ID] {
			return nil, fmt.Errorf("duplicate batch id %q", entries[i].ID)
		}
		seen[entries[i].ID] = true
	}
	return entries, nil
}

// prepareBatchEntry 讀取表單、驗證並解析輸出路徑
func prepareBatchEntry(e batchEntry, baseDir string) (types.PrintJob, string, error) {
	var sub types.Submission
	switch {
	case e.Form != nil:
		sub = *e.Form
	case e.FormFile != "":
		path := e.FormFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		f, err := form.LoadFile(path)
		if err != nil {
			return types.PrintJob{}, "", err
		}
		sub = f.Submission()
	default:
		return types.PrintJob{}, "", errors.New("entry has neither form nor formFile")
	}

	job, err := validation.ValidateSubmission(sub)
	if err != nil {
		return types.PrintJob{}, "", err
	}

	if e.Output == "" {
		return types.PrintJob{}, "", errors.New("output path is required")
	}
	path, err := prompt.NormalizeSavePath(e.Output)
	if err != nil {
		return types.PrintJob{}, "", err
	}
	return job, path, nil
}

// recordOutcome 記錄到 metrics（未啟用時略過）
func (a *app) recordOutcome(kind controller.OutcomeKind) {
	if a.metrics != nil {
		a.metrics.RecordOutcome(string(kind))
	}
}
