package form

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// LoadFile 讀取 JSON 表單檔（labels / startLabel / skipLabels）
func LoadFile(path string) (*Form, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read form file: %w", err)
	}

	var sub types.Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse form file %s: %w", path, err)
	}
	return FromSubmission(sub), nil
}

// WriteFile 將表單寫成 JSON（含識別碼，方便之後編輯）
func (f *Form) WriteFile(path string) error {
	raw, err := json.MarshalIndent(f.Submission(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode form: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	return nil
}
