package errors

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors so callers can branch on the failure
// class instead of string-matching messages.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindNotFound   Kind = "NOT_FOUND"
	KindTransient  Kind = "TRANSIENT"
	KindConflict   Kind = "CONFLICT"
	KindDevice     Kind = "DEVICE"
	KindInternal   Kind = "INTERNAL"
)

func (k Kind) String() string { return string(k) }

// AppError is the error type returned by every engine operation.
type AppError struct {
	Raw     error
	Kind    Kind
	Message string
	Details map[string]string
}

// Error implements the error interface.
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e AppError) Unwrap() error {
	return e.Raw
}

// WithDetail adds a detail to the error.
func (e AppError) WithDetail(key, value string) AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// General errors

func ErrInternal(err error) AppError {
	return AppError{
		Raw:     err,
		Kind:    KindInternal,
		Message: "Internal engine error",
	}
}

func ErrValidation(message string) AppError {
	return AppError{
		Kind:    KindValidation,
		Message: message,
	}
}

func ErrNotFound(resource string) AppError {
	return AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func ErrTransient(operation string, err error) AppError {
	return AppError{
		Raw:     err,
		Kind:    KindTransient,
		Message: fmt.Sprintf("Network operation failed: %s", operation),
	}
}

func ErrConflict(message string) AppError {
	return AppError{
		Kind:    KindConflict,
		Message: message,
	}
}

func ErrDevice(err error) AppError {
	return AppError{
		Raw:     err,
		Kind:    KindDevice,
		Message: "Capture device unavailable",
	}
}

// Queue errors

func ErrQueueEntryNotFound(entryID string) AppError {
	return ErrNotFound("Queue entry").WithDetail("entry_id", entryID)
}

func ErrIllegalTransition(resource, from, to string) AppError {
	return AppError{
		Kind:    KindConflict,
		Message: fmt.Sprintf("Illegal %s transition", resource),
	}.WithDetail("from", from).WithDetail("to", to)
}

func ErrOperationInFlight(operation, encounterID string) AppError {
	return AppError{
		Kind:    KindConflict,
		Message: fmt.Sprintf("%s already in flight for this encounter", operation),
	}.WithDetail("encounter_id", encounterID)
}

// Session errors

func ErrEncounterNotFound(encounterID string) AppError {
	return ErrNotFound("Encounter").WithDetail("encounter_id", encounterID)
}

func ErrMissingAppointment(patientID string) AppError {
	return AppError{
		Kind:    KindValidation,
		Message: "No resolvable appointment for patient",
	}.WithDetail("patient_id", patientID)
}

func ErrSessionAlreadyOpen(encounterID string) AppError {
	return AppError{
		Kind:    KindConflict,
		Message: "A consultation session is already open",
	}.WithDetail("encounter_id", encounterID)
}

func ErrEncounterLocked(encounterID string) AppError {
	return AppError{
		Kind:    KindConflict,
		Message: "Encounter is finalized and locked",
	}.WithDetail("encounter_id", encounterID)
}

// Recording errors

func ErrRecordingInProgress(encounterID string) AppError {
	return AppError{
		Kind:    KindConflict,
		Message: "A recording is already active for this encounter",
	}.WithDetail("encounter_id", encounterID)
}

func ErrConsentNotGranted() AppError {
	return AppError{
		Kind:    KindValidation,
		Message: "Recording consent has not been granted",
	}
}

func ErrUploadFailed(recordingID string, err error) AppError {
	return AppError{
		Raw:     err,
		Kind:    KindTransient,
		Message: "Recording upload failed",
	}.WithDetail("recording_id", recordingID)
}

// Summary errors

func ErrSummaryNotFound(summaryID string) AppError {
	return ErrNotFound("AI summary").WithDetail("summary_id", summaryID)
}

func ErrSummaryImmutable(summaryID string) AppError {
	return AppError{
		Kind:    KindConflict,
		Message: "Summary was already accepted with different content",
	}.WithDetail("summary_id", summaryID)
}

// IsNotFound reports whether err carries the NOT_FOUND kind. On update
// paths this is the create-fallback signal, not a failure.
func IsNotFound(err error) bool {
	return isKind(err, KindNotFound)
}

// IsConflict reports whether err carries the CONFLICT kind.
func IsConflict(err error) bool {
	return isKind(err, KindConflict)
}

// IsValidation reports whether err carries the VALIDATION kind.
func IsValidation(err error) bool {
	return isKind(err, KindValidation)
}

// IsTransient reports whether err carries the TRANSIENT kind.
func IsTransient(err error) bool {
	return isKind(err, KindTransient)
}

// IsDevice reports whether err carries the DEVICE kind.
func IsDevice(err error) bool {
	return isKind(err, KindDevice)
}

func isKind(err error, kind Kind) bool {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
