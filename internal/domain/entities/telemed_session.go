package entities

import (
	"time"

	"github.com/google/uuid"
)

// TelemedicineSession represents a time-boxed video session tied to an
// encounter. Independent lifecycle; it may outlive the encounter.
type TelemedicineSession struct {
	ID             uuid.UUID `json:"id"`
	EncounterID    uuid.UUID `json:"encounter_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	Link           string    `json:"link"`
}

// IsOpen checks whether the scheduled window covers the given time
func (s *TelemedicineSession) IsOpen(at time.Time) bool {
	return !at.Before(s.ScheduledStart) && at.Before(s.ScheduledEnd)
}
