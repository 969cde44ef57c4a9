package memory

import (
	"context"
	"errors"
	"testing"

	"bilancio/internal/core"
)

func TestLoadSeedsOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if len(first) == 0 {
		t.Fatalf("expected seeded dataset")
	}

	second, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("second load must return the same collection, got %d vs %d", len(second), len(first))
	}
}

func TestSaveRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	want := []core.Transaction{{
		ID:          1,
		Description: "Bus ticket",
		Amount:      core.Money{Cents: 250},
		Type:        core.Expense,
		Category:    "Transport",
		Date:        core.NewDate(2024, 4, 1),
	}}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestSaveEmptyIsNotReseeded(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Initialized but empty must stay empty: the seeding flag separates
	// "never initialized" from "emptied on purpose".
	if len(got) != 0 {
		t.Fatalf("expected empty collection, got %d", len(got))
	}
}

func TestResetReseeds(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("expected re-seeded dataset")
	}
}

func TestFailureInjectionIsOneShot(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.FailNextLoad(errors.New("boom"))
	if _, err := s.Load(ctx); err == nil {
		t.Fatalf("expected injected load error")
	}
	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("injection must be one-shot, got %v", err)
	}

	s.FailNextSave(errors.New("boom"))
	if err := s.Save(ctx, nil); err == nil {
		t.Fatalf("expected injected save error")
	}
	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("injection must be one-shot, got %v", err)
	}
}
