package tool

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	contractx "github.com/tanpawarit/flight-search-agent/agent/contract"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArgs maps loosely typed model arguments onto dst and validates it.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: encode args: %v", contractx.ErrValidation, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode args: %v", contractx.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	return nil
}

// ValidateForm checks a form definition before it is sent to the user.
func ValidateForm(form contractx.FormRender) error {
	if err := validate.Struct(form); err != nil {
		return fmt.Errorf("%w: form: %v", contractx.ErrValidation, err)
	}
	return nil
}
