package draftstore

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicore/consulta-engine/internal/domain/entities"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "drafts.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadDraft(t *testing.T) {
	store := openTestStore(t)
	encounterID := uuid.New()

	notes := &entities.ClinicalNotes{
		Subjective: "three days of cough",
		Plan:       "chest x-ray",
	}
	if err := store.Save(encounterID, notes); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(encounterID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || *got != *notes {
		t.Fatalf("loaded draft %+v", got)
	}
}

func TestSaveReplacesPreviousDraft(t *testing.T) {
	store := openTestStore(t)
	encounterID := uuid.New()

	if err := store.Save(encounterID, &entities.ClinicalNotes{Plan: "v1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(encounterID, &entities.ClinicalNotes{Plan: "v2"}); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := store.Load(encounterID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Plan != "v2" {
		t.Fatalf("draft not replaced: %q", got.Plan)
	}
}

func TestLoadMissingDraftReturnsNil(t *testing.T) {
	store := openTestStore(t)
	got, err := store.Load(uuid.New())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestClearRemovesDraft(t *testing.T) {
	store := openTestStore(t)
	encounterID := uuid.New()

	if err := store.Save(encounterID, &entities.ClinicalNotes{Plan: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(encounterID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err := store.Load(encounterID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("draft survived clear: %+v", got)
	}
	// Clearing an absent draft is not an error.
	if err := store.Clear(encounterID); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}
