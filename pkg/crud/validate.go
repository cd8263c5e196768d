package crud

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate はパッケージ共通のバリデータ。validator.Validateは並行利用に対して安全。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// エラーのフィールド名をJSONタグ名で報告する
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateInput はリクエストDTOを検証する。必須入力の欠落は400として報告する。
func ValidateInput(in any) error {
	return check(in, BadRequest("必須の入力が不足しています"))
}

// ValidateRecord はレコードの業務ルールを検証する。違反は422として報告する。
func ValidateRecord(rec any) error {
	return check(rec, Unprocessable("入力値が業務ルールを満たしていません", nil))
}

func check(v any, base *ValidationError) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		base.Message = err.Error()
		return base
	}

	base.Fields = make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		base.Fields[fe.Field()] = rule
	}
	return base
}
