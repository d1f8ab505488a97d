package restapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

// CreateEncounterRequest is the payload for creating a new encounter
type CreateEncounterRequest struct {
	PatientID     uuid.UUID `json:"patient_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
}

// FindTodayEncounter looks up an unfinished encounter for the patient
// for the current day. A NOT_FOUND error means none exists yet.
func (c *Client) FindTodayEncounter(ctx context.Context, patientID uuid.UUID) (*entities.Encounter, error) {
	var encounter entities.Encounter
	if err := c.do(ctx, http.MethodGet, "/encounters/today/"+patientID.String(), nil, &encounter); err != nil {
		return nil, err
	}
	return &encounter, nil
}

// CreateEncounter creates a new encounter bound to an appointment.
func (c *Client) CreateEncounter(ctx context.Context, req CreateEncounterRequest) (*entities.Encounter, error) {
	var encounter entities.Encounter
	if err := c.do(ctx, http.MethodPost, "/encounters", req, &encounter); err != nil {
		return nil, err
	}
	return &encounter, nil
}

// GetVitals reads the vitals sub-resource of an encounter.
func (c *Client) GetVitals(ctx context.Context, encounterID uuid.UUID) (*entities.VitalSigns, error) {
	var vitals entities.VitalSigns
	if err := c.do(ctx, http.MethodGet, "/vitals/"+encounterID.String(), nil, &vitals); err != nil {
		return nil, err
	}
	return &vitals, nil
}

// UpdateVitals updates existing vitals. A NOT_FOUND error is the signal
// for the create fallback, decided by the caller.
func (c *Client) UpdateVitals(ctx context.Context, encounterID uuid.UUID, vitals *entities.VitalSigns) error {
	return c.do(ctx, http.MethodPut, "/vitals/"+encounterID.String(), vitals, nil)
}

// CreateVitals creates the vitals sub-resource.
func (c *Client) CreateVitals(ctx context.Context, encounterID uuid.UUID, vitals *entities.VitalSigns) error {
	return c.do(ctx, http.MethodPost, "/vitals/"+encounterID.String(), vitals, nil)
}

// GetNotes reads the notes sub-resource of an encounter.
func (c *Client) GetNotes(ctx context.Context, encounterID uuid.UUID) (*entities.ClinicalNotes, error) {
	var notes entities.ClinicalNotes
	if err := c.do(ctx, http.MethodGet, "/notes/"+encounterID.String(), nil, &notes); err != nil {
		return nil, err
	}
	return &notes, nil
}

// UpdateNotes updates existing notes. A NOT_FOUND error is the signal
// for the create fallback, decided by the caller.
func (c *Client) UpdateNotes(ctx context.Context, encounterID uuid.UUID, notes *entities.ClinicalNotes) error {
	return c.do(ctx, http.MethodPut, "/notes/"+encounterID.String(), notes, nil)
}

// CreateNotes creates the notes sub-resource.
func (c *Client) CreateNotes(ctx context.Context, encounterID uuid.UUID, notes *entities.ClinicalNotes) error {
	return c.do(ctx, http.MethodPost, "/notes/"+encounterID.String(), notes, nil)
}
