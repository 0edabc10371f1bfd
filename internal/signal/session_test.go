package signal

import (
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	store := NewSessionStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	session := store.Create("alice", "bob", now)
	if session.CallID != "call-alice-bob-1748779200000" {
		t.Fatalf("unexpected call id: %s", session.CallID)
	}
	if session.Status != CallStatusPending {
		t.Fatalf("new session should be pending, got %s", session.Status)
	}
	if !session.StartTime.Equal(now) {
		t.Fatalf("unexpected start time: %v", session.StartTime)
	}

	got, ok := store.Get(session.CallID)
	if !ok || got != session {
		t.Fatal("session should be retrievable by id")
	}
}

func TestSessionCounterparty(t *testing.T) {
	session := &CallSession{CallerID: "alice", TargetUserID: "bob"}

	if session.Counterparty("alice") != "bob" {
		t.Fatal("counterparty of the caller is the target")
	}
	if session.Counterparty("bob") != "alice" {
		t.Fatal("counterparty of the target is the caller")
	}
}

func TestSessionRemove(t *testing.T) {
	store := NewSessionStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := store.Create("alice", "bob", now)

	store.Remove(session.CallID)
	if _, ok := store.Get(session.CallID); ok {
		t.Fatal("removed session should be gone")
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}

	store.Remove(session.CallID)
}
