package journal

import (
	"os"
	"testing"
)

func TestAppendDeduplicates(t *testing.T) {
	store := NewStore(t.TempDir())
	j := store.Load("D1", 0)

	if !j.Append(NewTurn("P1", "hello")) {
		t.Fatalf("expected first append to be recorded")
	}
	if j.Append(NewTurn("P1", "hello")) {
		t.Fatalf("expected duplicate (speaker, text) to be a no-op")
	}
	if !j.Append(NewTurn("P2", "hello")) {
		t.Fatalf("expected same text from another speaker to be recorded")
	}
	if j.Len() != 2 {
		t.Fatalf("expected 2 turns, got %d", j.Len())
	}
}

func TestReloadPreservesOrderAndDedup(t *testing.T) {
	store := NewStore(t.TempDir())

	j := store.Load("D1", 0)
	j.Append(NewTurn("P1", "first"))
	j.Append(NewTurn("P2", "second"))
	j.Append(NewTurn("P1", "third"))

	reloaded := store.Load("D1", 0)
	turns := reloaded.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns after reload, got %d", len(turns))
	}
	for i, want := range []string{"first", "second", "third"} {
		if turns[i].Text != want {
			t.Fatalf("turn %d: expected %q, got %q", i, want, turns[i].Text)
		}
	}

	if reloaded.Append(NewTurn("P2", "second")) {
		t.Fatalf("expected reloaded journal to keep the dedup index")
	}
}

func TestLoadMissingJournalIsEmpty(t *testing.T) {
	store := NewStore(t.TempDir())

	j := store.Load("never-ran", 3)
	if j.Len() != 0 {
		t.Fatalf("expected empty journal, got %d turns", j.Len())
	}
}

func TestLoadSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	j := store.Load("D1", 0)
	j.Append(NewTurn("P1", "good"))

	file, err := os.OpenFile(store.Path("D1", 0), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("failed to open journal file: %v", err)
	}
	if _, err := file.WriteString("{not json\n"); err != nil {
		t.Fatalf("failed to corrupt journal: %v", err)
	}
	file.Close()

	j = store.Load("D1", 0)
	j.Append(NewTurn("P2", "after corruption"))

	if j.Len() != 2 {
		t.Fatalf("expected corrupt line to be skipped, got %d turns", j.Len())
	}
}

func TestLastSkipsExcludedSpeakers(t *testing.T) {
	store := NewStore(t.TempDir())
	j := store.Load("D1", 0)

	if j.Last() != nil {
		t.Fatalf("expected no last turn in empty journal")
	}

	j.Append(NewTurn("P1", "substance"))
	j.Append(NewTurn(SpeakerUser, "a live question"))

	last := j.Last(SpeakerUser)
	if last == nil || last.Speaker != "P1" {
		t.Fatalf("expected last non-user turn from P1, got %+v", last)
	}

	last = j.Last()
	if last == nil || last.Speaker != SpeakerUser {
		t.Fatalf("expected unfiltered last turn from user, got %+v", last)
	}
}

func TestBySpeakerKeepsLatest(t *testing.T) {
	store := NewStore(t.TempDir())
	j := store.Load("D1", 0)

	j.Append(NewTurn("P1", "early"))
	j.Append(NewTurn("P2", "middle"))
	j.Append(NewTurn("P1", "late"))

	latest := j.BySpeaker()
	if latest["P1"].Text != "late" {
		t.Fatalf("expected latest P1 turn, got %q", latest["P1"].Text)
	}
	if latest["P2"].Text != "middle" {
		t.Fatalf("expected latest P2 turn, got %q", latest["P2"].Text)
	}
}
