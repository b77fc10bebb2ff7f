package memory

import (
	"testing"

	"exam-delivery-service/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	created := 0
	create := func() *app.AttemptSession {
		created++
		return app.NewAttemptSession("u1", NewStore())
	}

	session := store.GetOrCreate("u1", create)
	if session == nil {
		t.Fatalf("expected session")
	}
	if again := store.GetOrCreate("u1", create); again != session || created != 1 {
		t.Fatalf("expected existing session reused, created=%d", created)
	}
	if _, ok := store.Get("u1"); !ok {
		t.Fatalf("expected session present")
	}

	store.DeleteIfIdle("u1")
	if _, ok := store.Get("u1"); ok {
		t.Fatalf("expected session removed when idle")
	}
}
