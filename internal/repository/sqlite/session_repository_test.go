package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/pairing"
	"github.com/glebk/match-quiz/internal/repository/storetest"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return db
}

func TestSessionRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.SessionStore {
		repo := NewSessionRepository(openTestDB(t), pairing.NewGenerator(4))
		t.Cleanup(func() { repo.Close() })
		return repo
	})
}

func TestSessionRepositorySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	repo := NewSessionRepository(db, pairing.NewGenerator(5))

	s, err := repo.Create(ctx, domain.NewParticipant("Ann", 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.RecordAnswer(ctx, s.Code, domain.SlotA, 0, domain.MultiAnswer(1, 0)); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	repo = NewSessionRepository(db, pairing.NewGenerator(5))
	defer repo.Close()

	got, err := repo.Get(ctx, s.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Code) != 5 {
		t.Errorf("Expected 5 digit code, got %q", got.Code)
	}
	if got.A.CurrentIndex != 1 || !got.A.Answers[0].Equal(domain.MultiAnswer(0, 1)) {
		t.Errorf("Expected acknowledged answer after reopen, got %+v", got.A)
	}
}

func TestChatStateRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	defer db.Close()
	repo := NewChatStateRepository(db)

	state, err := repo.Get(ctx, 42)
	if err != nil || state != nil {
		t.Fatalf("Expected nil state, got %+v %v", state, err)
	}

	if err := repo.Save(ctx, &domain.ChatState{ChatID: 42, Step: domain.StepAwaitName, Slot: domain.SlotA}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, &domain.ChatState{ChatID: 42, Step: domain.StepQuiz, Slot: domain.SlotA, Code: "0042"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	state, err = repo.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state.Step != domain.StepQuiz || state.Code != "0042" || state.Slot != domain.SlotA {
		t.Errorf("Unexpected state %+v", state)
	}

	idle, err := repo.ListIdle(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListIdle: %v", err)
	}
	if len(idle) != 0 {
		t.Errorf("Expected no idle states, got %+v", idle)
	}
	idle, err = repo.ListIdle(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ListIdle: %v", err)
	}
	if len(idle) != 1 || idle[0].ChatID != 42 {
		t.Errorf("Expected chat 42 to be idle, got %+v", idle)
	}

	if err := repo.Delete(ctx, 42); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if state, _ := repo.Get(ctx, 42); state != nil {
		t.Errorf("Expected state to be deleted, got %+v", state)
	}
}
