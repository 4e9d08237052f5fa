package session

import "testing"

func TestAnswerStoreUpsertLastWriteWins(t *testing.T) {
	s := NewAnswerStore()

	s.Upsert("q1", "x")
	s.Upsert("q1", "x")
	if got := s.Value("q1"); got != "x" {
		t.Fatalf("Value after repeated upsert = %q, want x", got)
	}

	s.Upsert("q1", "y")
	if got := s.Value("q1"); got != "y" {
		t.Fatalf("Value = %q, want y", got)
	}
	if n := len(s.Snapshot()); n != 1 {
		t.Fatalf("Snapshot has %d entries, want 1", n)
	}
}

func TestAnswerStoreToggleFlagInvolution(t *testing.T) {
	s := NewAnswerStore()

	if !s.ToggleFlag("q2") {
		t.Fatal("first toggle should flag")
	}
	if !s.IsFlagged("q2") {
		t.Fatal("q2 should be flagged")
	}
	if s.ToggleFlag("q2") {
		t.Fatal("second toggle should unflag")
	}
	if s.IsFlagged("q2") {
		t.Fatal("double toggle should restore the original state")
	}
}

func TestAnswerStoreStatusPrecedence(t *testing.T) {
	s := NewAnswerStore()

	if got := s.StatusOf("q1"); got != StatusUnanswered {
		t.Fatalf("fresh status = %s", got)
	}
	s.ToggleFlag("q1")
	if got := s.StatusOf("q1"); got != StatusFlagged {
		t.Fatalf("flagged status = %s", got)
	}
	s.Upsert("q1", "42")
	if got := s.StatusOf("q1"); got != StatusAnswered {
		t.Fatalf("answered and flagged status = %s, want answered", got)
	}
	s.Upsert("q1", "")
	if got := s.StatusOf("q1"); got != StatusFlagged {
		t.Fatalf("cleared answer status = %s, want flagged", got)
	}
}

func TestAnswerStoreSnapshotOrderAndCount(t *testing.T) {
	s := NewAnswerStore()
	s.Upsert("q3", "c")
	s.Upsert("q1", "a")
	s.Upsert("q2", "")

	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot len = %d, want 3", len(snap))
	}
	for i, want := range []string{"q1", "q2", "q3"} {
		if snap[i].QuestionID != want {
			t.Fatalf("snap[%d] = %s, want %s", i, snap[i].QuestionID, want)
		}
	}
	if got := s.AnsweredCount(); got != 2 {
		t.Fatalf("AnsweredCount = %d, want 2", got)
	}
}
