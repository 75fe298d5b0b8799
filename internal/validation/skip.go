// ============================================================================
// Labelmaker Skip-Range Grammar
// ============================================================================
//
// Package: internal/validation
// File: skip.go
// Purpose: Normalize and validate the "page: label-range list" text
//
// Grammar (after normalization):
//   text  := line ("\n" line)*
//   line  := page ":" item ("," item)*
//   item  := coord | coord "-" coord
//   coord := [A-Za-z][0-9]{1,2}
//   page  := [0-9]+
//
// Example:
//   1:A1,B2-B5
//   2:C3
//
// Boundary:
//   The grammar is purely syntactic. It does not check that a range's end
//   comes after its start, that page numbers are unique, or that pages and
//   cells exist on the sheet. The renderer resolves the cells and decides.
//   Validation is all-or-nothing: one bad line fails the whole value.
//
// ============================================================================

package validation

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	intraLineSpaceRe = regexp.MustCompile(`[ \t\f\v\r]+`)
	edgeNewlinesRe   = regexp.MustCompile(`^\n+|\n+$`)
	newlineRunRe     = regexp.MustCompile(`\n+`)

	skipItem = CoordinatePattern + `(?:-` + CoordinatePattern + `)?`
	skipLine = `\d+:` + skipItem + `(?:,` + skipItem + `)*`
	skipRe   = regexp.MustCompile(`^` + skipLine + `(?:\n` + skipLine + `)*$`)
)

// NormalizeSkipLabels 移除行內空白、頭尾空行，並將連續空行合併成一個換行
func NormalizeSkipLabels(s string) string {
	s = intraLineSpaceRe.ReplaceAllString(s, "")
	s = edgeNewlinesRe.ReplaceAllString(s, "")
	return newlineRunRe.ReplaceAllString(s, "\n")
}

// ValidateSkipLabels 正規化並驗證整段跳過規則文字
// 空字串合法（不跳過任何標籤）
func ValidateSkipLabels(s string) (string, error) {
	normalized := NormalizeSkipLabels(s)
	if normalized == "" || skipRe.MatchString(normalized) {
		return normalized, nil
	}
	return "", ErrBadSkipFormat
}

// SkipPage 某一頁的跳過項目（只做語法拆解，不解析成實際格子）
type SkipPage struct {
	Page  int      `json:"page" yaml:"page"`
	Items []string `json:"items" yaml:"items"`
}

// ParseSkipPages 將跳過規則拆成每頁的項目列表，用於顯示
func ParseSkipPages(s string) ([]SkipPage, error) {
	normalized, err := ValidateSkipLabels(s)
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return nil, nil
	}

	lines := strings.Split(normalized, "\n")
	pages := make([]SkipPage, 0, len(lines))
	for _, line := range lines {
		pageNo, items, _ := strings.Cut(line, ":")
		page, err := strconv.Atoi(pageNo)
		if err != nil {
			// 頁碼超出 int 範圍
			return nil, ErrBadSkipFormat
		}
		pages = append(pages, SkipPage{Page: page, Items: strings.Split(items, ",")})
	}
	return pages, nil
}
