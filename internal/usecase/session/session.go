package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clinicore/consulta-engine/errors"
	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

// Session is one open consultation. It owns the encounter aggregate,
// the autosave timer, and the teardown of any watchers (recording
// upload, summary subscription) registered against it.
type Session struct {
	manager   *Manager
	encounter *entities.Encounter

	mu       sync.Mutex
	notes    entities.ClinicalNotes
	dirty    bool
	notesGen uint64
	closed   bool
	watchers []func()

	autosaveCancel context.CancelFunc
	autosaveDone   chan struct{}
}

func newSession(m *Manager, encounter *entities.Encounter) *Session {
	s := &Session{
		manager:   m,
		encounter: encounter,
	}
	if encounter.Notes != nil {
		s.notes = *encounter.Notes
	}
	return s
}

// Encounter returns the session's encounter aggregate.
func (s *Session) Encounter() *entities.Encounter {
	return s.encounter
}

// SetNotes replaces the working copy of the notes and marks them dirty
// for the next autosave tick.
func (s *Session) SetNotes(notes entities.ClinicalNotes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = notes
	s.dirty = true
	s.notesGen++
}

// Notes returns the working copy of the notes.
func (s *Session) Notes() entities.ClinicalNotes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes
}

// RegisterWatcher records a cancel function to run on teardown, so
// recording and summary subscriptions die with the session.
func (s *Session) RegisterWatcher(cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return
	}
	s.watchers = append(s.watchers, cancel)
}

// SaveVitals validates and persists the vitals with the update-or-create
// pattern: one fallback to create on a not-found update, never more.
func (s *Session) SaveVitals(ctx context.Context, vitals *entities.VitalSigns) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.manager.validate.Validate(vitals); err != nil {
		return errors.ErrValidation("Vitals failed validation").WithDetail("cause", err.Error())
	}

	err := s.manager.api.UpdateVitals(ctx, s.encounter.ID, vitals)
	if errors.IsNotFound(err) {
		// Fall back to create exactly once. Whatever the create path
		// returns, including another not-found, is final.
		err = s.manager.api.CreateVitals(ctx, s.encounter.ID, vitals)
	}
	if err != nil {
		return err
	}

	s.encounter.Vitals = vitals
	return nil
}

// SaveNotes persists the notes with the same update-or-create pattern,
// journaling them locally first.
func (s *Session) SaveNotes(ctx context.Context, notes *entities.ClinicalNotes) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.notes = *notes
	s.dirty = true
	s.notesGen++
	gen := s.notesGen
	s.mu.Unlock()

	s.journal(notes)
	if err := s.persistNotes(ctx, notes); err != nil {
		return err
	}
	s.markClean(gen)
	return nil
}

// persistNotes runs one update-or-create round trip.
func (s *Session) persistNotes(ctx context.Context, notes *entities.ClinicalNotes) error {
	err := s.manager.api.UpdateNotes(ctx, s.encounter.ID, notes)
	if errors.IsNotFound(err) {
		err = s.manager.api.CreateNotes(ctx, s.encounter.ID, notes)
	}
	if err != nil {
		return err
	}
	s.encounter.Notes = notes
	return nil
}

// startAutosave launches the periodic background save.
func (s *Session) startAutosave() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.autosaveCancel = cancel
	s.autosaveDone = done
	s.mu.Unlock()

	go s.autosaveLoop(ctx, done)
}

// autosaveLoop silently persists dirty notes every interval. Failures
// are logged, never surfaced; the clinician is not interrupted by
// transient network trouble.
func (s *Session) autosaveLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.manager.cfg.AutosaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.autosaveTick(ctx)
		}
	}
}

func (s *Session) autosaveTick(ctx context.Context) {
	s.mu.Lock()
	if !s.dirty || s.closed {
		s.mu.Unlock()
		return
	}
	notes := s.notes
	gen := s.notesGen
	s.mu.Unlock()

	s.journal(&notes)
	if err := s.persistNotes(ctx, &notes); err != nil {
		if s.manager.logger != nil {
			s.manager.logger.Warn("autosave failed",
				zap.String("encounter_id", s.encounter.ID.String()),
				zap.Error(err),
			)
		}
		return
	}
	s.markClean(gen)
}

// stopAutosave cancels the timer and waits for an in-flight tick to
// drain, so no autosave write can land after it returns.
func (s *Session) stopAutosave() {
	s.mu.Lock()
	cancel := s.autosaveCancel
	done := s.autosaveDone
	s.autosaveCancel = nil
	s.autosaveDone = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Finalize persists the final vitals and notes (blocking, user-visible),
// commits the queue transition, and tears the session down. Autosave is
// cancelled before the final save so a late background write can never
// clobber it.
func (s *Session) Finalize(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	s.stopAutosave()

	s.mu.Lock()
	notes := s.notes
	s.mu.Unlock()

	if err := s.finalSave(ctx, &notes); err != nil {
		// Leave the session usable: the clinician retries finalize
		// by re-invoking it, and background saving resumes meanwhile.
		s.startAutosave()
		return err
	}

	if err := s.manager.queue.Finalize(ctx, s.encounter.ID); err != nil {
		s.startAutosave()
		return err
	}

	// Notes are independent of the recording pipeline, so finalizing
	// with a recording still processing is allowed, but never silent.
	if s.encounter.HasActiveRecording() && s.manager.logger != nil {
		s.manager.logger.Warn("finalizing with recording still in flight",
			zap.String("encounter_id", s.encounter.ID.String()),
			zap.String("recording_state", string(s.encounter.Recording.CurrentState())),
		)
	}

	s.encounter.Lock()
	s.teardown(true)

	if s.manager.logger != nil {
		s.manager.logger.Info("consultation finalized",
			zap.String("encounter_id", s.encounter.ID.String()))
	}
	return nil
}

func (s *Session) finalSave(ctx context.Context, notes *entities.ClinicalNotes) error {
	if s.encounter.Vitals != nil {
		if err := s.manager.validate.Validate(s.encounter.Vitals); err != nil {
			return errors.ErrValidation("Vitals failed validation").WithDetail("cause", err.Error())
		}
		err := s.manager.api.UpdateVitals(ctx, s.encounter.ID, s.encounter.Vitals)
		if errors.IsNotFound(err) {
			err = s.manager.api.CreateVitals(ctx, s.encounter.ID, s.encounter.Vitals)
		}
		if err != nil {
			return err
		}
	}
	if !notes.IsEmpty() {
		if err := s.persistNotes(ctx, notes); err != nil {
			return err
		}
	}
	return nil
}

// Close tears the session down without finalizing, keeping all saved
// data. Used when the provider exits a session to return the patient to
// the queue, or when a new session replaces this one.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.stopAutosave()
	s.teardown(false)
}

// teardown cancels watchers and releases the manager slot. finalized
// controls whether the local draft is cleared: an unfinished session
// keeps its journal for recovery.
func (s *Session) teardown(finalized bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	watchers := s.watchers
	s.watchers = nil
	s.mu.Unlock()

	for _, cancel := range watchers {
		cancel()
	}
	if finalized && s.manager.drafts != nil {
		if err := s.manager.drafts.Clear(s.encounter.ID); err != nil && s.manager.logger != nil {
			s.manager.logger.Warn("draft clear failed", zap.Error(err))
		}
	}
	s.manager.release(s)
}

// ensureOpen rejects operations against a closed session.
func (s *Session) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.ErrConflict("Consultation session is closed").
			WithDetail("encounter_id", s.encounter.ID.String())
	}
	return nil
}

// journal writes the notes to the local draft store; failures are
// logged only, the journal is best effort.
func (s *Session) journal(notes *entities.ClinicalNotes) {
	if s.manager.drafts == nil {
		return
	}
	if err := s.manager.drafts.Save(s.encounter.ID, notes); err != nil && s.manager.logger != nil {
		s.manager.logger.Warn("draft journal failed",
			zap.String("encounter_id", s.encounter.ID.String()),
			zap.Error(err),
		)
	}
}

// markClean clears the dirty flag unless the notes changed while the
// save was in flight, and drops the now-persisted draft.
func (s *Session) markClean(gen uint64) {
	s.mu.Lock()
	if s.notesGen == gen {
		s.dirty = false
	}
	stillDirty := s.dirty
	s.mu.Unlock()

	if !stillDirty && s.manager.drafts != nil {
		if err := s.manager.drafts.Clear(s.encounter.ID); err != nil && s.manager.logger != nil {
			s.manager.logger.Warn("draft clear failed", zap.Error(err))
		}
	}
}
