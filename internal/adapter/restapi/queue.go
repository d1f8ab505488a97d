package restapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

// ListQueue fetches the active queue entries for the day.
func (c *Client) ListQueue(ctx context.Context) ([]*entities.QueueEntry, error) {
	var entries []*entities.QueueEntry
	if err := c.do(ctx, http.MethodGet, "/queue", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CallPatient marks the patient's entry as called and returns the
// resolved (or newly created) encounter.
func (c *Client) CallPatient(ctx context.Context, patientID uuid.UUID) (*entities.Encounter, error) {
	var encounter entities.Encounter
	if err := c.do(ctx, http.MethodPost, "/queue/call/"+patientID.String(), nil, &encounter); err != nil {
		return nil, err
	}
	return &encounter, nil
}

// ReturnEncounter reverts the bound queue entry to waiting without
// discarding the encounter's saved data.
func (c *Client) ReturnEncounter(ctx context.Context, encounterID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/queue/return/"+encounterID.String(), nil, nil)
}

// FinalizeEncounter transitions the bound queue entry to completed.
func (c *Client) FinalizeEncounter(ctx context.Context, encounterID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/queue/finalize/"+encounterID.String(), nil, nil)
}
