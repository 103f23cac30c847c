package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
// It writes the 400 response itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "validation failed")
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Code:    CodeValidationFailed,
			Message: "validation failed",
			Fields:  fieldMessages(verrs),
		})
		return false
	}
	return true
}

func fieldMessages(errs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		name := e.Field()
		switch e.Tag() {
		case "required", "notblank":
			fields[name] = name + " is required"
		case "max":
			fields[name] = fmt.Sprintf("%s must be at most %s", name, e.Param())
		case "min":
			fields[name] = fmt.Sprintf("%s must be at least %s", name, e.Param())
		default:
			fields[name] = fmt.Sprintf("%s failed on %q", name, e.Tag())
		}
	}
	return fields
}
