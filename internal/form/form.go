// ============================================================================
// Labelmaker Form - Editable Label List
// ============================================================================
//
// Package: internal/form
// File: form.go
// Purpose: Session state for the label list being edited
//
// Entries keep both the count and the aliquot list while editing, so that
// switching a label between modes does not lose what the user typed. Only the
// branch selected by UseAliquots is carried into the Submission.
//
// Item ids are random UUIDs used for add/remove/edit without reordering; they
// carry no ordering and are never compared across sessions.
//
// ============================================================================

package form

import (
	"errors"
	"fmt"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

var (
	ErrLabelNotFound   = errors.New("label not found")
	ErrAliquotNotFound = errors.New("aliquot not found")
)

// Entry 表單上正在編輯的一個標籤
type Entry struct {
	ID          types.ItemID
	Text        string
	UseAliquots bool
	Count       types.RawQuantity
	Aliquots    []types.Aliquot
}

// NewEntry 建立預設標籤：count 模式、數量 "1"、附一個預設分裝
func NewEntry() Entry {
	return Entry{
		ID:       types.NewItemID(),
		Count:    types.Quantity("1"),
		Aliquots: []types.Aliquot{types.NewAliquot()},
	}
}

// Label 依模式轉成對應的標籤變體
func (e Entry) Label() types.Label {
	if e.UseAliquots {
		aliquots := make([]types.Aliquot, len(e.Aliquots))
		copy(aliquots, e.Aliquots)
		return types.AliquotLabel{ID: e.ID, Text: e.Text, Aliquots: aliquots}
	}
	return types.CountLabel{ID: e.ID, Text: e.Text, Count: e.Count}
}

// Form 一次編輯工作階段的完整表單
type Form struct {
	StartLabel string
	SkipLabels string
	Entries    []Entry
}

// New 建立只含一個預設標籤的表單
func New() *Form {
	return &Form{Entries: []Entry{NewEntry()}}
}

// FromSubmission 由已送出的表單重建編輯狀態；缺少的識別碼會補上
func FromSubmission(sub types.Submission) *Form {
	f := &Form{StartLabel: sub.StartLabel, SkipLabels: sub.SkipLabels}
	for _, l := range sub.Labels {
		e := Entry{ID: l.LabelID(), Text: l.LabelText(), Count: types.Quantity("1")}
		switch v := l.(type) {
		case types.CountLabel:
			e.Count = v.Count
		case types.AliquotLabel:
			e.UseAliquots = true
			e.Aliquots = withIDs(v.Aliquots)
		}
		if e.ID == "" {
			e.ID = types.NewItemID()
		}
		f.Entries = append(f.Entries, e)
	}
	return f
}

// Submission 產生送出用的表單
func (f *Form) Submission() types.Submission {
	labels := make([]types.Label, 0, len(f.Entries))
	for _, e := range f.Entries {
		labels = append(labels, e.Label())
	}
	return types.Submission{Labels: labels, StartLabel: f.StartLabel, SkipLabels: f.SkipLabels}
}

// AddLabel 在列表尾端加入預設標籤並回傳其識別碼
func (f *Form) AddLabel() types.ItemID {
	e := NewEntry()
	f.Entries = append(f.Entries, e)
	return e.ID
}

// RemoveLabel 依識別碼移除標籤
func (f *Form) RemoveLabel(id types.ItemID) error {
	i := f.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLabelNotFound, id)
	}
	f.Entries = append(f.Entries[:i], f.Entries[i+1:]...)
	return nil
}

// UpdateLabel 原地修改標籤欄位
func (f *Form) UpdateLabel(id types.ItemID, update func(e *Entry)) error {
	i := f.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLabelNotFound, id)
	}
	update(&f.Entries[i])
	return nil
}

// AddAliquot 在指定標籤加入預設分裝
func (f *Form) AddAliquot(labelID types.ItemID) (types.ItemID, error) {
	a := types.NewAliquot()
	err := f.UpdateLabel(labelID, func(e *Entry) {
		e.Aliquots = append(e.Aliquots, a)
	})
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// RemoveAliquot 依識別碼移除分裝
func (f *Form) RemoveAliquot(labelID, aliquotID types.ItemID) error {
	i := f.indexOf(labelID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLabelNotFound, labelID)
	}
	e := &f.Entries[i]
	for j, a := range e.Aliquots {
		if a.ID == aliquotID {
			e.Aliquots = append(e.Aliquots[:j], e.Aliquots[j+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAliquotNotFound, aliquotID)
}

// UpdateAliquot 原地修改分裝欄位
func (f *Form) UpdateAliquot(labelID, aliquotID types.ItemID, update func(a *types.Aliquot)) error {
	i := f.indexOf(labelID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLabelNotFound, labelID)
	}
	e := &f.Entries[i]
	for j := range e.Aliquots {
		if e.Aliquots[j].ID == aliquotID {
			update(&e.Aliquots[j])
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAliquotNotFound, aliquotID)
}

// SetAliquots 整批取代分裝列表，每個項目都會拿到新的識別碼
func (f *Form) SetAliquots(labelID types.ItemID, aliquots []types.Aliquot) error {
	fresh := make([]types.Aliquot, 0, len(aliquots))
	for _, a := range aliquots {
		a.ID = types.NewItemID()
		fresh = append(fresh, a)
	}
	return f.UpdateLabel(labelID, func(e *Entry) {
		e.Aliquots = fresh
	})
}

func (f *Form) indexOf(id types.ItemID) int {
	for i, e := range f.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func withIDs(aliquots []types.Aliquot) []types.Aliquot {
	out := make([]types.Aliquot, 0, len(aliquots))
	for _, a := range aliquots {
		if a.ID == "" {
			a.ID = types.NewItemID()
		}
		out = append(out, a)
	}
	return out
}
