package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

// CreateTelemedSessionRequest allocates a scheduled video window
type CreateTelemedSessionRequest struct {
	EncounterID    uuid.UUID `json:"consultation_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
}

// CreateTelemedSession allocates a telemedicine session for an encounter.
func (c *Client) CreateTelemedSession(ctx context.Context, req CreateTelemedSessionRequest) (*entities.TelemedicineSession, error) {
	var session entities.TelemedicineSession
	if err := c.do(ctx, http.MethodPost, "/telemed/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}
