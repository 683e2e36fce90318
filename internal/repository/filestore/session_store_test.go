package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebk/match-quiz/internal/codec"
	"github.com/glebk/match-quiz/internal/domain"
	"github.com/glebk/match-quiz/internal/pairing"
	"github.com/glebk/match-quiz/internal/repository/storetest"
)

func TestSessionStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.SessionStore {
		store, err := NewSessionStore(t.TempDir(), pairing.NewGenerator(4))
		if err != nil {
			t.Fatalf("NewSessionStore: %v", err)
		}
		return store
	})
}

func TestSessionStoreSharesDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewSessionStore(dir, pairing.NewGenerator(4))
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	s, err := first.Create(ctx, domain.NewParticipant("Ann", 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	second, err := NewSessionStore(dir, pairing.NewGenerator(4))
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	got, err := second.Get(ctx, s.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.A.Name != "Ann" {
		t.Errorf("Expected Ann, got %q", got.A.Name)
	}

	if _, err := os.Stat(filepath.Join(dir, s.Code+fileExt)); err != nil {
		t.Errorf("Expected session file: %v", err)
	}
}

func TestSessionStoreLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewSessionStore(dir, pairing.NewGenerator(4))
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	s, err := store.Create(ctx, domain.NewParticipant("Ann", 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.RecordAnswer(ctx, s.Code, domain.SlotA, 0, domain.SingleAnswer(0)); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected a single session file, got %d entries", len(entries))
	}
}

func TestSessionStoreRejectsMalformedCodes(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "sessions")

	store, err := NewSessionStore(dir, pairing.NewGenerator(4))
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}

	// A valid record sitting next to the data directory
	data, err := codec.Marshal(sessionRecord{Code: "outside", A: participantRecord{Name: "planted", ChatID: 7}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "outside"+fileExt), data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	for _, code := range []string{"../outside", "..", "", "12/4", "abcd", "0000.tmp"} {
		if _, err := store.Get(ctx, code); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get(%q): expected ErrNotFound, got %v", code, err)
		}
		if _, err := store.Join(ctx, code, domain.NewParticipant("Bob", 7)); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Join(%q): expected ErrNotFound, got %v", code, err)
		}
		if _, err := store.RecordAnswer(ctx, code, domain.SlotA, 0, domain.SingleAnswer(0)); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("RecordAnswer(%q): expected ErrNotFound, got %v", code, err)
		}
	}

	got, err := os.ReadFile(filepath.Join(root, "outside"+fileExt))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(data) {
		t.Error("Expected the file outside the data directory to be untouched")
	}
}

func TestSessionStoreLocksDoNotAccumulate(t *testing.T) {
	ctx := context.Background()

	store, err := NewSessionStore(t.TempDir(), pairing.NewGenerator(4))
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}

	for i := 0; i < 1000; i++ {
		if _, err := store.Get(ctx, fmt.Sprintf("%04d", i)); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Get: expected ErrNotFound, got %v", err)
		}
	}

	s, err := store.Create(ctx, domain.NewParticipant("Ann", 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.RecordAnswer(ctx, s.Code, domain.SlotA, 0, domain.SingleAnswer(0)); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if _, err := store.DeleteIdle(ctx, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("DeleteIdle: %v", err)
	}

	store.locksMu.Lock()
	n := len(store.locks)
	store.locksMu.Unlock()
	if n != 0 {
		t.Errorf("Expected no lock entries once idle, got %d", n)
	}
}
