package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/adapter/restapi"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
	"github.com/clinicore/consulta-engine/internal/infrastructure/draftstore"
	"github.com/clinicore/consulta-engine/pkg/config"
	"github.com/clinicore/consulta-engine/pkg/validator"
)

// QueueFinalizer is the slice of the queue coordinator the session
// needs: committing the queue transition when an encounter finalizes.
type QueueFinalizer interface {
	Finalize(ctx context.Context, encounterID uuid.UUID) error
}

// OpenRequest identifies the patient being seen and the data needed if
// a new encounter must be created.
type OpenRequest struct {
	PatientID     uuid.UUID
	ProviderID    uuid.UUID
	AppointmentID *uuid.UUID
}

// Manager opens consultation sessions and enforces the at-most-one-open
// guarantee: opening a new session always tears the previous one down
// first, timers and subscriptions included.
type Manager struct {
	api      *restapi.Client
	queue    QueueFinalizer
	drafts   *draftstore.Store
	validate *validator.CustomValidator
	cfg      config.SessionConfig
	logger   *zap.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager creates a session manager. drafts may be nil to disable
// the local journal.
func NewManager(api *restapi.Client, queue QueueFinalizer, drafts *draftstore.Store, cfg config.SessionConfig, logger *zap.Logger) *Manager {
	return &Manager{
		api:      api,
		queue:    queue,
		drafts:   drafts,
		validate: validator.New(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Open resolves the patient's encounter for today, creating one when
// none exists, and returns an open session with autosave running.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if req.PatientID == uuid.Nil {
		return nil, errors.ErrValidation("Patient is required to open a session")
	}

	// Tear down the previous session before anything else so its
	// timers can never write against the new encounter.
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	encounter, err := m.api.FindTodayEncounter(ctx, req.PatientID)
	if errors.IsNotFound(err) {
		encounter, err = m.createEncounter(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if encounter.IsLocked {
		return nil, errors.ErrEncounterLocked(encounter.ID.String())
	}

	s := newSession(m, encounter)
	m.recoverDraft(s)
	s.startAutosave()

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("consultation session opened",
			zap.String("encounter_id", encounter.ID.String()),
			zap.String("patient_id", encounter.PatientID.String()),
		)
	}
	return s, nil
}

// Current returns the open session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// createEncounter creates today's encounter. Both the appointment and
// the provider must be resolvable; otherwise the open fails before any
// network call.
func (m *Manager) createEncounter(ctx context.Context, req OpenRequest) (*entities.Encounter, error) {
	if req.AppointmentID == nil {
		return nil, errors.ErrMissingAppointment(req.PatientID.String())
	}
	if req.ProviderID == uuid.Nil {
		return nil, errors.ErrValidation("Provider is required to create an encounter").
			WithDetail("patient_id", req.PatientID.String())
	}
	return m.api.CreateEncounter(ctx, restapi.CreateEncounterRequest{
		PatientID:     req.PatientID,
		ProviderID:    req.ProviderID,
		AppointmentID: *req.AppointmentID,
	})
}

// recoverDraft offers an unsent journaled draft back to the session.
func (m *Manager) recoverDraft(s *Session) {
	if m.drafts == nil {
		return
	}
	draft, err := m.drafts.Load(s.encounter.ID)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn("draft recovery failed", zap.Error(err))
		}
		return
	}
	if draft != nil {
		s.SetNotes(*draft)
		if m.logger != nil {
			m.logger.Info("recovered unsent notes draft",
				zap.String("encounter_id", s.encounter.ID.String()))
		}
	}
}

// release clears the current slot if s still owns it.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == s {
		m.current = nil
	}
}
