package validation

import "regexp"

// CoordinatePattern 標籤紙上的一格：欄字母 + 1~2 位數列號，例如 A1、B17
const CoordinatePattern = `[A-Za-z]\d{1,2}`

var startLabelRe = regexp.MustCompile(`^` + CoordinatePattern + `$`)

// ValidateStartLabel 驗證起始位置；空字串代表從第一格開始
func ValidateStartLabel(s string) (string, error) {
	if s == "" || startLabelRe.MatchString(s) {
		return s, nil
	}
	return "", ErrBadCoordinateFormat
}
