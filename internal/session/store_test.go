package session

import (
	"testing"
	"time"
)

func TestPutRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	s := NewStore()
	if err := s.Put(Session{UserID: 1}); err != ErrEmptyToken {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatal("store should stay empty")
	}
}

func TestPutReplacesWholeRecord(t *testing.T) {
	t.Parallel()
	s := NewStore()
	now := time.Now()

	if err := s.Put(Session{UserID: 7, AccessToken: "a", Username: "alice", LastAlertCheckAt: now}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(Session{UserID: 7, AccessToken: "b", Username: "alice"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("expected 1 session per user, got %d", s.Len())
	}
	got, ok := s.Get(7)
	if !ok || got.AccessToken != "b" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.LastAlertCheckAt.IsZero() {
		t.Fatal("re-login must reset LastAlertCheckAt, not carry it over")
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Remove(42) // must not panic or error
}

func TestSnapshotIsCopyOnRead(t *testing.T) {
	t.Parallel()
	s := NewStore()
	for i := int64(1); i <= 3; i++ {
		if err := s.Put(Session{UserID: i, AccessToken: "t"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	snap := s.Snapshot()
	s.Evict(2)
	if err := s.Put(Session{UserID: 9, AccessToken: "t"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if len(snap) != 3 {
		t.Fatalf("snapshot mutated by later writes: %+v", snap)
	}
	for i, e := range snap {
		if e.UserID != int64(i+1) {
			t.Fatalf("snapshot not ordered: %+v", snap)
		}
	}
}

func TestTouchAlertCheckMonotonic(t *testing.T) {
	t.Parallel()
	s := NewStore()
	if err := s.Put(Session{UserID: 1, AccessToken: "t"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	t1 := time.Now()
	if !s.TouchAlertCheck(1, t1) {
		t.Fatal("first touch should succeed")
	}
	if s.TouchAlertCheck(1, t1.Add(-time.Minute)) {
		t.Fatal("touch must not move the clock backwards")
	}
	got, _ := s.Get(1)
	if !got.LastAlertCheckAt.Equal(t1) {
		t.Fatalf("LastAlertCheckAt = %v, want %v", got.LastAlertCheckAt, t1)
	}

	if s.TouchAlertCheck(99, t1) {
		t.Fatal("touch on absent session must be refused")
	}
}

func TestEvictDropsBinding(t *testing.T) {
	t.Parallel()
	s := NewStore()
	if err := s.Put(Session{UserID: 5, AccessToken: "t"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.BindChannel(5, 1234)

	s.Evict(5)
	if _, ok := s.Get(5); ok {
		t.Fatal("session should be gone")
	}
	if _, ok := s.Channel(5); ok {
		t.Fatal("channel binding should be gone")
	}
}

func TestOrphanBindingIsInert(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.BindChannel(8, 999) // no session

	if s.Len() != 0 {
		t.Fatal("binding alone must not count as a session")
	}
	if len(s.Snapshot()) != 0 {
		t.Fatal("snapshot must not include users without sessions")
	}
	if ch, ok := s.Channel(8); !ok || ch != 999 {
		t.Fatal("binding itself should still be readable")
	}
}
