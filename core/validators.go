package core

import (
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const requiredText = "this field is required"

type customValidation struct {
	tag  string
	text string
	fn   validator.Func
}

var (
	customValidations = []customValidation{
		{tag: "notblank", text: "this field cannot be blank", fn: notBlankValidation},
		{tag: "docid", text: "this field must not contain slashes or be a dot path", fn: docIDValidation},
	}

	// built-in tags whose default texts are replaced
	overriddenTexts = map[string]string{
		"required":      requiredText,
		"required_with": requiredText,
	}
)

// InitValidators registers the shared tags and English texts on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// errors are keyed by JSON field name
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for _, cv := range customValidations {
		_ = validate.RegisterValidation(cv.tag, cv.fn)
		RegisterCustomTranslation(validate, translator, cv.tag, cv.text)
	}
	for tag, text := range overriddenTexts {
		RegisterCustomTranslation(validate, translator, tag, text, true)
	}
}

// RegisterCustomTranslation sets the English text of tag. Pass override to replace a built-in text.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	ovrd := len(override) > 0 && override[0]
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// docIDValidation accepts strings usable as a single document id or path segment.
func docIDValidation(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
