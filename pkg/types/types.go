// Package types 定義了 labelmaker 系統中使用的核心領域模型
package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ItemID 表單列表項目的識別碼（只用於新增/刪除/編輯時的穩定身分）
type ItemID string

// NewItemID 產生新的項目識別碼
func NewItemID() ItemID {
	return ItemID(uuid.NewString())
}

// Status 渲染結果狀態
type Status string

// 定義渲染結果狀態常數
const (
	StatusSuccess  Status = "success"  // 成功：worker 以 0 結束且 stdout 以 success 開頭
	StatusError    Status = "error"    // 失敗：其他所有組合
	StatusCanceled Status = "canceled" // 取消：使用者沒有選擇儲存路徑
)

// TextAnchor 文字對齊方式
type TextAnchor string

const (
	AnchorStart  TextAnchor = "start"
	AnchorMiddle TextAnchor = "middle"
	AnchorEnd    TextAnchor = "end"
)

// LabelMode 標籤模式（判別欄位）
type LabelMode string

const (
	ModeCount    LabelMode = "count"    // 單純數量
	ModeAliquots LabelMode = "aliquots" // 分裝（多個子份量）
)

// ============================================================================
// 原始表單輸入
// ============================================================================

// RawQuantity 保存尚未驗證的數量欄位，可能是字串、數字或其他 JSON 值
type RawQuantity struct {
	Value interface{}
}

// Quantity 包裝任意原始值
func Quantity(v interface{}) RawQuantity {
	return RawQuantity{Value: v}
}

func (q RawQuantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Value)
}

func (q *RawQuantity) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	q.Value = v
	return nil
}

// Aliquot 標籤底下的一個分裝項目
type Aliquot struct {
	ID     ItemID      `json:"id,omitempty"`
	Text   string      `json:"text"`
	Number RawQuantity `json:"number"`
}

// NewAliquot 以新的識別碼建立分裝項目（預設數量 "1"）
func NewAliquot() Aliquot {
	return Aliquot{ID: NewItemID(), Number: Quantity("1")}
}

// Label 是表單上的一個標籤條目，只有 CountLabel 與 AliquotLabel 兩種變體
type Label interface {
	LabelID() ItemID
	LabelText() string
	Mode() LabelMode
	isLabel()
}

// CountLabel 以數量列印的標籤
type CountLabel struct {
	ID    ItemID
	Text  string
	Count RawQuantity
}

func (l CountLabel) LabelID() ItemID   { return l.ID }
func (l CountLabel) LabelText() string { return l.Text }
func (l CountLabel) Mode() LabelMode   { return ModeCount }
func (CountLabel) isLabel()            {}

// AliquotLabel 以分裝列印的標籤
type AliquotLabel struct {
	ID       ItemID
	Text     string
	Aliquots []Aliquot
}

func (l AliquotLabel) LabelID() ItemID   { return l.ID }
func (l AliquotLabel) LabelText() string { return l.Text }
func (l AliquotLabel) Mode() LabelMode   { return ModeAliquots }
func (AliquotLabel) isLabel()            {}

// labelRecord 是標籤在 JSON 表單檔中的線上格式
// mode 優先於 useAliquots；兩者都缺少時視為 count 模式
type labelRecord struct {
	ID          ItemID       `json:"id,omitempty"`
	Text        string       `json:"text"`
	Mode        LabelMode    `json:"mode,omitempty"`
	UseAliquots *bool        `json:"useAliquots,omitempty"`
	Count       *RawQuantity `json:"count,omitempty"`
	Aliquots    []Aliquot    `json:"aliquots,omitempty"`
}

func (r labelRecord) toLabel() (Label, error) {
	mode := r.Mode
	if mode == "" {
		mode = ModeCount
		if r.UseAliquots != nil && *r.UseAliquots {
			mode = ModeAliquots
		}
	}

	switch mode {
	case ModeCount:
		l := CountLabel{ID: r.ID, Text: r.Text}
		if r.Count != nil {
			l.Count = *r.Count
		}
		return l, nil
	case ModeAliquots:
		return AliquotLabel{ID: r.ID, Text: r.Text, Aliquots: r.Aliquots}, nil
	default:
		return nil, fmt.Errorf("unknown label mode %q", r.Mode)
	}
}

func recordOf(l Label) labelRecord {
	switch v := l.(type) {
	case CountLabel:
		count := v.Count
		return labelRecord{ID: v.ID, Text: v.Text, Mode: ModeCount, Count: &count}
	case AliquotLabel:
		return labelRecord{ID: v.ID, Text: v.Text, Mode: ModeAliquots, Aliquots: v.Aliquots}
	}
	return labelRecord{}
}

// Submission 使用者送出的原始表單（標籤列表 + 起始位置 + 跳過規則文字）
type Submission struct {
	Labels     []Label
	StartLabel string
	SkipLabels string
}

type submissionRecord struct {
	Labels     []labelRecord `json:"labels"`
	StartLabel string        `json:"startLabel"`
	SkipLabels string        `json:"skipLabels"`
}

func (s Submission) MarshalJSON() ([]byte, error) {
	rec := submissionRecord{
		Labels:     make([]labelRecord, 0, len(s.Labels)),
		StartLabel: s.StartLabel,
		SkipLabels: s.SkipLabels,
	}
	for _, l := range s.Labels {
		rec.Labels = append(rec.Labels, recordOf(l))
	}
	return json.Marshal(rec)
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var rec submissionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	labels := make([]Label, 0, len(rec.Labels))
	for i, r := range rec.Labels {
		l, err := r.toLabel()
		if err != nil {
			return fmt.Errorf("labels[%d]: %w", i, err)
		}
		labels = append(labels, l)
	}
	*s = Submission{Labels: labels, StartLabel: rec.StartLabel, SkipLabels: rec.SkipLabels}
	return nil
}

// ============================================================================
// 正規化後的任務
// ============================================================================

// NormalizedAliquot 驗證後的分裝（number > 0）
type NormalizedAliquot struct {
	Text   string `json:"text" yaml:"text"`
	Number int    `json:"number" yaml:"number"`
}

// NormalizedLabel 驗證後的標籤，欄位名稱即為 worker 的線上格式
type NormalizedLabel struct {
	Name        string              `json:"name" yaml:"name"`
	UseAliquots bool                `json:"use_aliquots" yaml:"use_aliquots"`
	Count       int                 `json:"count" yaml:"count"`
	Aliquots    []NormalizedAliquot `json:"aliquots" yaml:"aliquots"`
}

// PrintJob 正規化後的列印任務（不會被持久化）
type PrintJob struct {
	Labels     []NormalizedLabel `json:"labels" yaml:"labels"`
	StartLabel string            `json:"startLabel" yaml:"startLabel"`
	SkipLabels string            `json:"skipLabels" yaml:"skipLabels"`
}

// Submission 將已正規化的任務轉回表單輸入，用於重新驗證
func (j PrintJob) Submission() Submission {
	labels := make([]Label, 0, len(j.Labels))
	for _, nl := range j.Labels {
		if nl.UseAliquots {
			aliquots := make([]Aliquot, 0, len(nl.Aliquots))
			for _, a := range nl.Aliquots {
				aliquots = append(aliquots, Aliquot{Text: a.Text, Number: Quantity(a.Number)})
			}
			labels = append(labels, AliquotLabel{Text: nl.Name, Aliquots: aliquots})
			continue
		}
		labels = append(labels, CountLabel{Text: nl.Name, Count: Quantity(nl.Count)})
	}
	return Submission{Labels: labels, StartLabel: j.StartLabel, SkipLabels: j.SkipLabels}
}

// ============================================================================
// 渲染設定與 worker 線上格式
// ============================================================================

// RenderSettings 標籤外觀設定
type RenderSettings struct {
	HasBorder  bool       `json:"hasBorder" yaml:"hasBorder"`
	FontSize   float64    `json:"fontSize" yaml:"fontSize" validate:"gt=0,lte=30"`
	Padding    float64    `json:"padding" yaml:"padding" validate:"gte=0,lte=4"`
	TextAnchor TextAnchor `json:"textAnchor" yaml:"textAnchor" validate:"oneof=start middle end"`
}

// DefaultRenderSettings 回傳預設外觀設定
func DefaultRenderSettings() RenderSettings {
	return RenderSettings{
		HasBorder:  false,
		FontSize:   12,
		Padding:    1.75,
		TextAnchor: AnchorMiddle,
	}
}

// WorkerRequest 傳給外部渲染程序的完整載荷
type WorkerRequest struct {
	Labels     []NormalizedLabel `json:"labels"`
	StartLabel string            `json:"start_label"`
	SkipLabels string            `json:"skip_labels"`
	Border     bool              `json:"border"`
	Padding    float64           `json:"padding"`
	FontSize   float64           `json:"font_size"`
	TextAnchor TextAnchor        `json:"text_anchor"`
	SavePath   string            `json:"save_path"`
}

// WorkerResponse 渲染程序的結果
type WorkerResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}
