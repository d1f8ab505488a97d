package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/errors"
)

// QueueStatus represents a patient's status in the day's waiting list
type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "waiting"
	QueueStatusCalled     QueueStatus = "called"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusCancelled  QueueStatus = "cancelled"
)

// QueueTransitions maps each queue status to its legal next statuses.
// Completed and cancelled are terminal.
var QueueTransitions = map[QueueStatus][]QueueStatus{
	QueueStatusWaiting:    {QueueStatusCalled, QueueStatusCancelled},
	QueueStatusCalled:     {QueueStatusInProgress},
	QueueStatusInProgress: {QueueStatusCompleted, QueueStatusWaiting},
	QueueStatusCompleted:  {},
	QueueStatusCancelled:  {},
}

// CanTransitionTo checks whether next is a legal edge from s.
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	for _, allowed := range QueueTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal checks whether the status has no outgoing edges.
func (s QueueStatus) IsTerminal() bool {
	return len(QueueTransitions[s]) == 0
}

// QueueEntry represents one patient's position in the waiting list.
// Unique per (day, patient, appointment).
type QueueEntry struct {
	ID            uuid.UUID   `json:"id"`
	PatientID     uuid.UUID   `json:"patient_id"`
	EncounterID   *uuid.UUID  `json:"encounter_id,omitempty"`
	AppointmentID *uuid.UUID  `json:"appointment_id,omitempty"`
	Status        QueueStatus `json:"status"`
	Priority      int         `json:"priority"`
	ScheduledTime time.Time   `json:"scheduled_time"`
	CheckedInAt   time.Time   `json:"checked_in_at"`
}

// Transition moves the entry to the next status, rejecting illegal edges.
func (e *QueueEntry) Transition(next QueueStatus) error {
	if !e.Status.CanTransitionTo(next) {
		return errors.ErrIllegalTransition("queue entry", string(e.Status), string(next))
	}
	e.Status = next
	return nil
}

// IsActive checks whether the entry still belongs in the active view.
func (e *QueueEntry) IsActive() bool {
	return !e.Status.IsTerminal()
}
