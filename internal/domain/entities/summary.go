package entities

import (
	"github.com/google/uuid"
)

// SummaryStatus represents the server-side processing status of a summary
type SummaryStatus string

const (
	SummaryStatusPending SummaryStatus = "pending"
	SummaryStatusDone    SummaryStatus = "done"
	SummaryStatusError   SummaryStatus = "error"
)

// SummaryPayload is the structured content produced by the
// summarization service, editable by the clinician before acceptance.
type SummaryPayload struct {
	Complaint     string `json:"complaint,omitempty"`
	History       string `json:"history,omitempty"`
	Examination   string `json:"examination,omitempty"`
	Assessment    string `json:"assessment,omitempty"`
	Plan          string `json:"plan,omitempty"`
	DiagnosisCode string `json:"diagnosis_code,omitempty" validate:"omitempty,icd10"`
}

// Equal compares two payloads field by field
func (p SummaryPayload) Equal(other SummaryPayload) bool {
	return p == other
}

// AISummary represents an AI-produced consultation summary. Created
// server-side when processing starts; status transitions arrive through
// the notification channel, never locally.
type AISummary struct {
	ID          uuid.UUID      `json:"id"`
	RecordingID uuid.UUID      `json:"recording_id"`
	EncounterID uuid.UUID      `json:"encounter_id"`
	Status      SummaryStatus  `json:"status"`
	Transcript  string         `json:"transcript,omitempty"`
	Payload     SummaryPayload `json:"payload"`

	// Client-side acceptance state. Once accepted the summary is
	// immutable; the accepted payload is kept for idempotence checks.
	Accepted        bool            `json:"accepted"`
	AcceptedPayload *SummaryPayload `json:"accepted_payload,omitempty"`
	Rejected        bool            `json:"rejected"`
}

// IsReady checks whether the summary can enter the accept/reject workflow
func (s *AISummary) IsReady() bool {
	return s.Status == SummaryStatusDone
}

// MarkAccepted freezes the summary with the payload it was accepted with
func (s *AISummary) MarkAccepted(payload SummaryPayload) {
	s.Accepted = true
	s.AcceptedPayload = &payload
}

// MarkRejected records a client-side rejection. The server copy is kept.
func (s *AISummary) MarkRejected() {
	s.Rejected = true
}
