// Package validator checks decoded request bodies with go-playground/validator
// and reports failures as a field to message map.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"gomate-auth/internal/util"
)

var ErrTranslatorNotFound = errors.New("translator not found")

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// ValidationError maps JSON field names to readable messages.
type ValidationError map[string]string

func (vs ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// New builds a validator with English messages. codeLength is the number of
// digits the "otpcode" rule accepts.
func New(codeLength int) (*Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	enLang := en.New()
	uni := ut.New(enLang, enLang)
	enTrans, ok := uni.GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	if err := registerCustom(validate, enTrans, codeLength); err != nil {
		return nil, err
	}

	return &Validator{
		validate:   validate,
		translator: enTrans,
	}, nil
}

// Validate returns a ValidationError when data breaks any rule.
func (v *Validator) Validate(data any) error {
	if err := v.validate.Struct(data); err != nil {
		var validateErrs validator.ValidationErrors
		if !errors.As(err, &validateErrs) {
			return err
		}

		out := make(ValidationError)
		for _, fe := range validateErrs {
			out[fe.Field()] = fe.Translate(v.translator)
		}
		return out
	}
	return nil
}

func registerCustom(validate *validator.Validate, trans ut.Translator, codeLength int) error {
	rules := []struct {
		tag     string
		message string
		fn      validator.Func
	}{
		{
			tag:     "otpcode",
			message: fmt.Sprintf("{0} must be exactly %d digits", codeLength),
			fn: func(fl validator.FieldLevel) bool {
				s := fl.Field().String()
				if len(s) != codeLength {
					return false
				}
				for _, c := range s {
					if c < '0' || c > '9' {
						return false
					}
				}
				return true
			},
		},
		{
			tag:     "safetext",
			message: "{0} contains characters that are not allowed",
			fn: func(fl validator.FieldLevel) bool {
				return !util.ContainsSuspicious(fl.Field().String())
			},
		},
	}

	for _, r := range rules {
		if err := validate.RegisterValidation(r.tag, r.fn); err != nil {
			return err
		}
		message := r.message
		err := validate.RegisterTranslation(r.tag, trans,
			func(ut ut.Translator) error {
				return ut.Add(r.tag, message, false)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				t, err := ut.T(fe.Tag(), fe.Field())
				if err != nil {
					return fe.Error()
				}
				return t
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}
