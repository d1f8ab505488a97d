package entities

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/errors"
)

// RecordingState represents where a recording sits in the
// consent → capture → upload → processing pipeline
type RecordingState string

const (
	RecordingStateIdle               RecordingState = "idle"
	RecordingStateConsentPending     RecordingState = "consent_pending"
	RecordingStateRecording          RecordingState = "recording"
	RecordingStateStopped            RecordingState = "stopped"
	RecordingStateUploading          RecordingState = "uploading"
	RecordingStateAwaitingProcessing RecordingState = "awaiting_processing"
	RecordingStateDone               RecordingState = "done"
	RecordingStateError              RecordingState = "error"
)

// RecordingTransitions maps each recording state to its legal next states.
// consent_pending → idle is consent refused; done/error → idle permits a
// fresh recording without replacing the pipeline.
var RecordingTransitions = map[RecordingState][]RecordingState{
	RecordingStateIdle:               {RecordingStateConsentPending},
	RecordingStateConsentPending:     {RecordingStateRecording, RecordingStateIdle},
	RecordingStateRecording:          {RecordingStateStopped, RecordingStateError},
	RecordingStateStopped:            {RecordingStateUploading, RecordingStateError},
	RecordingStateUploading:          {RecordingStateAwaitingProcessing, RecordingStateError},
	RecordingStateAwaitingProcessing: {RecordingStateDone, RecordingStateError},
	RecordingStateDone:               {RecordingStateIdle},
	RecordingStateError:              {RecordingStateIdle},
}

// CanTransitionTo checks whether next is a legal edge from s.
func (s RecordingState) CanTransitionTo(next RecordingState) bool {
	for _, allowed := range RecordingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal checks whether the state ends a recording's lifecycle.
// Idle is the rest state of the pipeline, not a recording outcome.
func (s RecordingState) IsTerminal() bool {
	return s == RecordingStateDone || s == RecordingStateError
}

// Recording represents one captured consultation audio recording. The
// state is written by the pipeline and by the summary notifier's
// background goroutine, so every mutation and every concurrent read
// goes through the methods below, which share the recording's own lock.
type Recording struct {
	ID           uuid.UUID      `json:"id"`
	EncounterID  uuid.UUID      `json:"encounter_id"`
	ConsentGiven bool           `json:"consent_given"`
	State        RecordingState `json:"state"`
	MimeType     string         `json:"mime_type,omitempty"`
	SizeBytes    int64          `json:"size_bytes,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	StoppedAt    *time.Time     `json:"stopped_at,omitempty"`
	LastError    string         `json:"last_error,omitempty"`

	mu sync.Mutex
}

// NewRecording creates a recording in the idle state for an encounter
func NewRecording(encounterID uuid.UUID) *Recording {
	return &Recording{
		ID:          uuid.New(),
		EncounterID: encounterID,
		State:       RecordingStateIdle,
	}
}

// CurrentState reads the state under the recording's lock.
func (r *Recording) CurrentState() RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

// IsActive checks whether the recording is in a non-terminal working
// state. Idle recordings are at rest, not active.
func (r *Recording) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State != RecordingStateIdle && !r.State.IsTerminal()
}

// ErrorReason reads the failure reason under the recording's lock.
func (r *Recording) ErrorReason() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.LastError
}

// Transition moves the recording to the next state, rejecting illegal edges.
func (r *Recording) Transition(next RecordingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.State.CanTransitionTo(next) {
		return errors.ErrIllegalTransition("recording", string(r.State), string(next))
	}
	r.State = next
	return nil
}

// MarkStarted records the capture start time
func (r *Recording) MarkStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.StartedAt = &now
}

// MarkStopped records the capture end, the captured blob size and its
// media type
func (r *Recording) MarkStopped(sizeBytes int64, mimeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.StoppedAt = &now
	r.SizeBytes = sizeBytes
	r.MimeType = mimeType
}

// MarkError forces the recording into the error state with a reason.
// Unlike Transition, this is reachable from any non-terminal state so a
// failing pipeline is never stuck.
func (r *Recording) MarkError(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = RecordingStateError
	r.LastError = reason
}
