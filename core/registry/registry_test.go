package registry

import (
	"errors"
	"path/filepath"
	"testing"
)

type rosterChecker map[string]bool

func (r rosterChecker) Has(id string) (bool, error) { return r[id], nil }

func testStore(t *testing.T, roster rosterChecker) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "conferences.db"), roster)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleAgenda() []Phase {
	return []Phase{
		{Name: "Framing", Topics: []string{"problem statement"}, Instructions: "keep it short"},
		{Name: "Debate", Topics: []string{"tradeoffs", "evidence"}},
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	store := testStore(t, rosterChecker{"a1": true, "a2": true})

	created, err := store.Create("Quarterly Review", sampleAgenda(), []string{"a1", "a2"})
	if err != nil {
		t.Fatalf("failed to create conference: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if created.CurrentPhaseIndex != -1 {
		t.Fatalf("expected new conference to be not-started, got phase %d", created.CurrentPhaseIndex)
	}

	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatalf("failed to get conference: %v", err)
	}
	if got.Title != "Quarterly Review" || len(got.Agenda) != 2 || len(got.ParticipantIDs) != 2 {
		t.Fatalf("round trip mangled the conference: %+v", got)
	}
	if got.Agenda[1].Topics[1] != "evidence" {
		t.Fatalf("agenda topics mangled: %v", got.Agenda[1].Topics)
	}
	if got.StartTime != nil || got.EndTime != nil {
		t.Fatalf("expected no timestamps before start")
	}
}

func TestCreateRejectsUnknownParticipant(t *testing.T) {
	store := testStore(t, rosterChecker{"a1": true})

	_, err := store.Create("t", sampleAgenda(), []string{"a1", "ghost"})
	if !errors.Is(err, ErrUnknownParticipant) {
		t.Fatalf("expected ErrUnknownParticipant, got %v", err)
	}

	conferences, _ := store.List()
	if len(conferences) != 0 {
		t.Fatalf("expected rejected create to leave no record")
	}
}

func TestLifecycle(t *testing.T) {
	store := testStore(t, rosterChecker{"a1": true})

	created, err := store.Create("t", sampleAgenda(), []string{"a1"})
	if err != nil {
		t.Fatalf("failed to create conference: %v", err)
	}

	if _, err := store.AdvancePhase(created.ID); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected advance before start to fail, got %v", err)
	}

	if err := store.Start(created.ID); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if err := store.Start(created.ID); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected second start to fail, got %v", err)
	}

	got, _ := store.Get(created.ID)
	if got.CurrentPhaseIndex != 0 || got.StartTime == nil {
		t.Fatalf("start did not record state: %+v", got)
	}

	next, err := store.AdvancePhase(created.ID)
	if err != nil || next != 1 {
		t.Fatalf("expected advance to phase 1, got %d, %v", next, err)
	}
	if _, err := store.AdvancePhase(created.ID); !errors.Is(err, ErrNoMorePhases) {
		t.Fatalf("expected advance past the agenda to fail, got %v", err)
	}

	if err := store.End(created.ID, "wrapped up"); err != nil {
		t.Fatalf("failed to end: %v", err)
	}
	got, _ = store.Get(created.ID)
	if got.EndTime == nil || got.Summary != "wrapped up" {
		t.Fatalf("end did not record state: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	store := testStore(t, nil)

	_, err := store.Get("nope")
	if !errors.Is(err, ErrConferenceNotFound) {
		t.Fatalf("expected ErrConferenceNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := testStore(t, nil)

	created, err := store.Create("t", sampleAgenda(), nil)
	if err != nil {
		t.Fatalf("failed to create conference: %v", err)
	}

	if err := store.Delete(created.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := store.Delete(created.ID); !errors.Is(err, ErrConferenceNotFound) {
		t.Fatalf("expected second delete to fail, got %v", err)
	}
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	store := testStore(t, nil)

	created, err := store.Create("t", sampleAgenda(), nil)
	if err != nil {
		t.Fatalf("failed to create conference: %v", err)
	}

	first, _ := store.Get(created.ID)
	first.Agenda[0].Topics[0] = "mutated"

	second, _ := store.Get(created.ID)
	if second.Agenda[0].Topics[0] != "problem statement" {
		t.Fatalf("mutation through one copy leaked into another")
	}
}
