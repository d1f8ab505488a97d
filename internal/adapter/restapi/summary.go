package restapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

// AcceptSummaryRequest carries the (possibly edited) payload a clinician
// accepted
type AcceptSummaryRequest struct {
	Payload entities.SummaryPayload `json:"payload"`
}

// ListSummaries refetches the summary list for an encounter. Called on
// every notification signal; the signal itself carries no payload.
func (c *Client) ListSummaries(ctx context.Context, encounterID uuid.UUID) ([]*entities.AISummary, error) {
	var summaries []*entities.AISummary
	if err := c.do(ctx, http.MethodGet, "/summaries?consultation_id="+encounterID.String(), nil, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// AcceptSummary marks the summary immutable server-side with the
// accepted payload. Rejection is client-side only and has no call.
func (c *Client) AcceptSummary(ctx context.Context, summaryID uuid.UUID, payload entities.SummaryPayload) error {
	return c.do(ctx, http.MethodPost, "/summaries/"+summaryID.String()+"/accept", AcceptSummaryRequest{Payload: payload}, nil)
}
