package validation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

// MaxQuantity 單一數量欄位的上限
const MaxQuantity = 1000

// ValidateQuantity 將原始值轉成 [0, 1000] 之間的整數
//
// 接受字串或數字。空白字串視為 0（與表單欄位清空時的行為一致）。
// 檢查順序：InvalidType -> Negative -> NotInteger -> TooLarge，回傳第一個失敗
func ValidateQuantity(raw interface{}) (int, error) {
	f, ok := coerceNumber(raw)
	if !ok {
		return 0, ErrInvalidType
	}
	switch {
	case f < 0:
		return 0, ErrNegative
	case f != math.Trunc(f):
		return 0, ErrNotInteger
	case f > MaxQuantity:
		return 0, ErrTooLarge
	}
	return int(f), nil
}

func coerceNumber(raw interface{}) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case types.RawQuantity:
		return coerceNumber(v.Value)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.Number:
		parsed, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func quantityIssue(path string, err error) Issue {
	return Issue{Path: path, Kind: err, Message: quantityMessage(err)}
}

func quantityMessage(err error) string {
	switch err {
	case ErrNegative:
		return msgQuantityNegative
	case ErrNotInteger:
		return msgQuantityInteger
	case ErrTooLarge:
		return msgQuantityMax
	default:
		return msgQuantityType
	}
}
