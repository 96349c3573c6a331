package flow

import (
	"context"
	"testing"

	"github.com/vmoreyra/registrobot/internal/models"
)

func TestInMemorySessionManagerRoundTrip(t *testing.T) {
	m := NewInMemorySessionManager()
	ctx := context.Background()

	got, err := m.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil session before Put, got %+v", got)
	}

	sess := models.NewSession("42", "tester")
	sess.Set(models.DataKeyProduct, "Widget")
	if err := m.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err = m.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.State != models.StateMenu || got.Get(models.DataKeyProduct) != "Widget" {
		t.Errorf("unexpected session: %+v", got)
	}

	if err := m.Delete(ctx, "42"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = m.Get(ctx, "42")
	if got != nil {
		t.Errorf("expected session deleted, got %+v", got)
	}
}

func TestInMemorySessionManagerReturnsCopies(t *testing.T) {
	m := NewInMemorySessionManager()
	ctx := context.Background()

	sess := models.NewSession("42", "tester")
	if err := m.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	first, _ := m.Get(ctx, "42")
	first.Set(models.DataKeyProduct, "mutated")

	second, _ := m.Get(ctx, "42")
	if second.Get(models.DataKeyProduct) != "" {
		t.Error("mutating a retrieved session must not affect the stored one")
	}
}

func TestDeleteMissingSessionIsNotAnError(t *testing.T) {
	m := NewInMemorySessionManager()
	if err := m.Delete(context.Background(), "missing"); err != nil {
		t.Fatalf("Delete of missing session: %v", err)
	}
}
