package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// icd10Pattern matches an ICD-10 category (letter plus two digits) with
// an optional subcategory of up to four alphanumerics, e.g. "J06.9".
var icd10Pattern = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9A-Z]{1,4})?$`)

// CustomValidator validates engine payloads using go-playground/validator
type CustomValidator struct {
	v *validator.Validate
}

// New creates a validator with the engine's clinical rules registered.
func New() *CustomValidator {
	v := validator.New()
	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("icd10", validICD10)
	return &CustomValidator{v: v}
}

// Validate performs struct validation
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

func validICD10(fl validator.FieldLevel) bool {
	return icd10Pattern.MatchString(fl.Field().String())
}
