package validation

import (
	"strconv"
	"strings"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// NormalizeLabel 驗證並正規化單一標籤
//
// 參數：
//   - index: 標籤在列表中的位置，用於組成欄位路徑
//   - label: CountLabel 或 AliquotLabel
//
// 返回值：
//   - types.NormalizedLabel: 正規化後的標籤
//   - bool: 是否保留（名稱非空，且 count > 0 或至少一個 number > 0 的分裝）
//   - []Issue: 欄位錯誤；有錯誤時前兩個返回值沒有意義
//
// 沒有內容的標籤不算錯誤，只是不保留，由呼叫端移除
func NormalizeLabel(index int, label types.Label) (types.NormalizedLabel, bool, []Issue) {
	prefix := joinPath("labels", strconv.Itoa(index))

	switch l := label.(type) {
	case types.CountLabel:
		return normalizeCountLabel(prefix, l)
	case types.AliquotLabel:
		return normalizeAliquotLabel(prefix, l)
	default:
		return types.NormalizedLabel{}, false, []Issue{{Path: prefix, Kind: ErrBadLabelMode, Message: msgLabelMode}}
	}
}

func normalizeCountLabel(prefix string, l types.CountLabel) (types.NormalizedLabel, bool, []Issue) {
	count, err := ValidateQuantity(l.Count)
	if err != nil {
		return types.NormalizedLabel{}, false, []Issue{quantityIssue(joinPath(prefix, "count"), err)}
	}

	nl := types.NormalizedLabel{
		Name:     strings.TrimSpace(l.Text),
		Count:    count,
		Aliquots: []types.NormalizedAliquot{},
	}
	return nl, nl.Name != "" && nl.Count > 0, nil
}

func normalizeAliquotLabel(prefix string, l types.AliquotLabel) (types.NormalizedLabel, bool, []Issue) {
	var issues []Issue
	aliquots := make([]types.NormalizedAliquot, 0, len(l.Aliquots))

	for i, a := range l.Aliquots {
		number, err := ValidateQuantity(a.Number)
		if err != nil {
			path := joinPath(prefix, "aliquots", strconv.Itoa(i), "number")
			issues = append(issues, quantityIssue(path, err))
			continue
		}
		if number == 0 {
			continue
		}
		aliquots = append(aliquots, types.NormalizedAliquot{Text: a.Text, Number: number})
	}
	if len(issues) > 0 {
		return types.NormalizedLabel{}, false, issues
	}

	nl := types.NormalizedLabel{
		Name:        strings.TrimSpace(l.Text),
		UseAliquots: true,
		Aliquots:    aliquots,
	}
	return nl, nl.Name != "" && len(nl.Aliquots) > 0, nil
}
