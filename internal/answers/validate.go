package answers

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
)

// answerValidate checks submission requests and answer variants.
// Field names in errors are the JSON names.
var answerValidate *validator.Validate

func init() {
	answerValidate = validator.New()
	answerValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = answerValidate.RegisterValidation("clocktime", validateClockTime)
}

// validateClockTime accepts a wall-clock time as HH:MM or HH:MM:SS
func validateClockTime(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, layout := range []string{"15:04", "15:04:05"} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// validateStruct returns InvalidInput naming every failing field
func validateStruct(code string, v any) error {
	err := answerValidate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.InvalidInput(code, "%v", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	sort.Strings(fields)
	return apperr.InvalidInput(code, "invalid fields: %s", strings.Join(fields, ", "))
}
