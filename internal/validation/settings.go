package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ChuLiYu/labelmaker/pkg/types"
)

var (
	validateOnce sync.Once
	structValid  *validator.Validate
)

// settingsValidator 以 JSON tag 作為欄位名稱的共用 validator
func settingsValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		structValid = v
	})
	return structValid
}

// ValidateRenderSettings 驗證外觀設定：字體大小 (0,30]、內距 [0,4]、對齊 start/middle/end
func ValidateRenderSettings(s types.RenderSettings) error {
	err := settingsValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	issues := make([]Issue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, settingsIssue(fe))
	}
	return AsError(issues)
}

func settingsIssue(fe validator.FieldError) Issue {
	issue := Issue{Path: fe.Field(), Kind: ErrSettingOutOfRange}

	switch fe.Field() + "." + fe.Tag() {
	case "fontSize.gt":
		issue.Message = "Font size must be greater than 0"
	case "fontSize.lte":
		issue.Message = "Max font size is 30"
	case "padding.gte":
		issue.Message = "Padding can't be negative"
	case "padding.lte":
		issue.Message = "Max padding is 4"
	case "textAnchor.oneof":
		issue.Kind = ErrBadTextAnchor
		issue.Message = "Alignment must be one of: " + fe.Param()
	default:
		issue.Message = "Invalid value"
	}
	return issue
}
