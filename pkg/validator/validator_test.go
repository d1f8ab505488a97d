package validator

import "testing"

type codedPayload struct {
	DiagnosisCode string `validate:"omitempty,icd10"`
}

func TestICD10Validation(t *testing.T) {
	cv := New()

	valid := []string{"", "R51", "J06.9", "M54.5", "S72.001A"}
	for _, code := range valid {
		if err := cv.Validate(&codedPayload{DiagnosisCode: code}); err != nil {
			t.Errorf("code %q rejected: %v", code, err)
		}
	}

	invalid := []string{"banana", "5R1", "J6", "j06.9", "J06."}
	for _, code := range invalid {
		if err := cv.Validate(&codedPayload{DiagnosisCode: code}); err == nil {
			t.Errorf("code %q accepted", code)
		}
	}
}
