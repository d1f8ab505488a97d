package entities

import (
	"time"

	"github.com/google/uuid"
)

// VitalSigns holds the measured vitals for an encounter. Value object
// owned by the encounter; no identity of its own.
type VitalSigns struct {
	HeartRate        int     `json:"heart_rate,omitempty" validate:"omitempty,gte=0,lte=300"`
	SystolicBP       int     `json:"systolic_bp,omitempty" validate:"omitempty,gte=0,lte=400"`
	DiastolicBP      int     `json:"diastolic_bp,omitempty" validate:"omitempty,gte=0,lte=300"`
	TemperatureC     float64 `json:"temperature_c,omitempty" validate:"omitempty,gte=25,lte=45"`
	RespiratoryRate  int     `json:"respiratory_rate,omitempty" validate:"omitempty,gte=0,lte=120"`
	OxygenSaturation int     `json:"oxygen_saturation,omitempty" validate:"omitempty,gte=0,lte=100"`
	WeightKg         float64 `json:"weight_kg,omitempty" validate:"omitempty,gte=0,lte=700"`
	HeightCm         float64 `json:"height_cm,omitempty" validate:"omitempty,gte=0,lte=300"`
}

// ClinicalNotes holds the SOAP-structured notes for an encounter
type ClinicalNotes struct {
	Subjective string `json:"subjective,omitempty"`
	Objective  string `json:"objective,omitempty"`
	Assessment string `json:"assessment,omitempty"`
	Plan       string `json:"plan,omitempty"`
}

// IsEmpty checks whether no note section has content
func (n ClinicalNotes) IsEmpty() bool {
	return n.Subjective == "" && n.Objective == "" && n.Assessment == "" && n.Plan == ""
}

// Encounter represents the clinical record for one patient visit
type Encounter struct {
	ID            uuid.UUID      `json:"id"`
	PatientID     uuid.UUID      `json:"patient_id"`
	ProviderID    uuid.UUID      `json:"provider_id"`
	AppointmentID *uuid.UUID     `json:"appointment_id,omitempty"`
	Date          time.Time      `json:"date"`
	Vitals        *VitalSigns    `json:"vitals,omitempty"`
	Notes         *ClinicalNotes `json:"notes,omitempty"`
	DiagnosisCode string         `json:"diagnosis_code,omitempty"`
	Attachments   []Attachment   `json:"attachments,omitempty"`
	Recording     *Recording     `json:"recording,omitempty"`
	Summary       *AISummary     `json:"summary,omitempty"`
	IsLocked      bool           `json:"is_locked"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewEncounter creates a new encounter for today's visit
func NewEncounter(patientID, providerID uuid.UUID, appointmentID *uuid.UUID) *Encounter {
	now := time.Now()
	return &Encounter{
		ID:            uuid.New(),
		PatientID:     patientID,
		ProviderID:    providerID,
		AppointmentID: appointmentID,
		Date:          now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Lock marks the encounter as finalized. Encounters are never deleted,
// only locked.
func (e *Encounter) Lock() {
	e.IsLocked = true
	e.UpdatedAt = time.Now()
}

// HasActiveRecording checks whether a recording is in a non-terminal
// state for this encounter. At most one may be.
func (e *Encounter) HasActiveRecording() bool {
	if e.Recording == nil {
		return false
	}
	return e.Recording.IsActive()
}

// ApplySummary merges an accepted (possibly clinician-edited) summary
// payload into the encounter's notes and diagnosis. Manual note content
// is appended to, never replaced.
func (e *Encounter) ApplySummary(summary *AISummary, payload SummaryPayload) {
	if e.Notes == nil {
		e.Notes = &ClinicalNotes{}
	}
	e.Notes.Subjective = appendSection(e.Notes.Subjective, payload.Complaint)
	e.Notes.Subjective = appendSection(e.Notes.Subjective, payload.History)
	e.Notes.Objective = appendSection(e.Notes.Objective, payload.Examination)
	e.Notes.Assessment = appendSection(e.Notes.Assessment, payload.Assessment)
	e.Notes.Plan = appendSection(e.Notes.Plan, payload.Plan)
	if payload.DiagnosisCode != "" {
		e.DiagnosisCode = payload.DiagnosisCode
	}
	e.Summary = summary
	e.UpdatedAt = time.Now()
}

func appendSection(existing, addition string) string {
	if addition == "" {
		return existing
	}
	if existing == "" {
		return addition
	}
	return existing + "\n\n" + addition
}
