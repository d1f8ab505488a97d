package draftstore

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

// NoteDraft is one journaled copy of unsaved clinical notes. Autosave
// writes here before every network attempt so an offline stretch or a
// crash never loses clinician input.
type NoteDraft struct {
	EncounterID string    `gorm:"primaryKey;size:36"`
	Payload     string    `gorm:"type:text;not null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (NoteDraft) TableName() string {
	return "note_drafts"
}

// Store is the local sqlite draft journal
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the journal at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&NoteDraft{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Save journals the current notes for an encounter, replacing any
// previous draft.
func (s *Store) Save(encounterID uuid.UUID, notes *entities.ClinicalNotes) error {
	payload, err := json.Marshal(notes)
	if err != nil {
		return err
	}
	draft := NoteDraft{
		EncounterID: encounterID.String(),
		Payload:     string(payload),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "encounter_id"}},
		UpdateAll: true,
	}).Create(&draft).Error
}

// Load returns the journaled notes for an encounter, or nil when no
// draft exists.
func (s *Store) Load(encounterID uuid.UUID) (*entities.ClinicalNotes, error) {
	var draft NoteDraft
	if err := s.db.Where("encounter_id = ?", encounterID.String()).First(&draft).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var notes entities.ClinicalNotes
	if err := json.Unmarshal([]byte(draft.Payload), &notes); err != nil {
		return nil, err
	}
	return &notes, nil
}

// Clear removes the draft once the notes were persisted remotely.
func (s *Store) Clear(encounterID uuid.UUID) error {
	return s.db.Where("encounter_id = ?", encounterID.String()).Delete(&NoteDraft{}).Error
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
