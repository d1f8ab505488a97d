package telemed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/adapter/restapi"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
	"github.com/clinicore/consulta-engine/pkg/config"
)

// Bridge allocates telemedicine sessions for encounters and hands out
// their join links. Video sessions live on the backend with their own
// lifecycle; the bridge never tears one down when an encounter closes.
type Bridge struct {
	api    *restapi.Client
	cfg    config.TelemedConfig
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*entities.TelemedicineSession
}

// NewBridge creates a telemedicine bridge.
func NewBridge(api *restapi.Client, cfg config.TelemedConfig, logger *zap.Logger) *Bridge {
	return &Bridge{
		api:      api,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[uuid.UUID]*entities.TelemedicineSession),
	}
}

// CreateSession allocates a video window for the encounter starting now
// and running for the configured default duration.
func (b *Bridge) CreateSession(ctx context.Context, encounterID uuid.UUID) (*entities.TelemedicineSession, error) {
	if encounterID == uuid.Nil {
		return nil, errors.ErrValidation("Encounter is required for a telemedicine session")
	}

	start := time.Now()
	session, err := b.api.CreateTelemedSession(ctx, restapi.CreateTelemedSessionRequest{
		EncounterID:    encounterID,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(b.cfg.DefaultDuration),
	})
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.sessions[encounterID] = session
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Info("telemedicine session created",
			zap.String("encounter_id", encounterID.String()),
			zap.String("session_id", session.ID.String()),
			zap.Time("scheduled_end", session.ScheduledEnd),
		)
	}
	return session, nil
}

// Session returns the known session for an encounter, or nil.
func (b *Bridge) Session(encounterID uuid.UUID) *entities.TelemedicineSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[encounterID]
}

// Join returns the join link for the encounter's session. Joining
// outside the scheduled window or without a session fails.
func (b *Bridge) Join(encounterID uuid.UUID) (string, error) {
	b.mu.Lock()
	session := b.sessions[encounterID]
	b.mu.Unlock()

	if session == nil {
		return "", errors.ErrNotFound("Telemedicine session").
			WithDetail("encounter_id", encounterID.String())
	}
	if session.Link == "" {
		return "", errors.ErrValidation("Telemedicine session has no join link").
			WithDetail("session_id", session.ID.String())
	}
	if !session.IsOpen(time.Now()) {
		return "", errors.ErrConflict("Telemedicine session window is closed").
			WithDetail("session_id", session.ID.String())
	}
	return session.Link, nil
}
