package signal

import "testing"

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	user := reg.Register("alice", "Alice", "conn-1")
	if user.UserID != "alice" || user.ConnectionID != "conn-1" || !user.IsAvailable {
		t.Fatalf("unexpected entry: %+v", user)
	}

	got, ok := reg.Lookup("alice")
	if !ok || got != user {
		t.Fatal("lookup should return the registered entry")
	}
	if userID, ok := reg.UserByConn("conn-1"); !ok || userID != "alice" {
		t.Fatalf("reverse lookup failed: %q %v", userID, ok)
	}
}

func TestRegistryReplacementInvalidatesOldHandle(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", "Alice", "conn-1")
	reg.Register("alice", "Alice", "conn-2")

	if _, ok := reg.UserByConn("conn-1"); ok {
		t.Fatal("replaced handle must not resolve to the user")
	}
	if userID, _ := reg.UserByConn("conn-2"); userID != "alice" {
		t.Fatal("new handle must own the entry")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", reg.Len())
	}
}

func TestRegistryConnReregistersAsDifferentUser(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", "Alice", "conn-1")
	reg.Register("bob", "Bob", "conn-1")

	if _, ok := reg.Lookup("alice"); ok {
		t.Fatal("alice should be dropped when her connection re-registers as bob")
	}
	if userID, _ := reg.UserByConn("conn-1"); userID != "bob" {
		t.Fatal("conn-1 should belong to bob")
	}
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", "Alice", "conn-1")
	reg.Remove("alice")

	if _, ok := reg.Lookup("alice"); ok {
		t.Fatal("removed user should be gone")
	}
	if _, ok := reg.UserByConn("conn-1"); ok {
		t.Fatal("removed user's handle should be gone")
	}

	// Removing twice is harmless.
	reg.Remove("alice")
}

func TestRegistrySetAvailability(t *testing.T) {
	reg := NewRegistry()
	reg.Register("alice", "Alice", "conn-1")

	reg.SetAvailability("alice", false)
	user, _ := reg.Lookup("alice")
	if user.IsAvailable {
		t.Fatal("availability should be cleared")
	}

	reg.SetAvailability("nobody", true)
}
