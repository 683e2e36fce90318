// Package storetest holds the behaviour every domain.SessionStore must show.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebk/match-quiz/internal/domain"
)

// Factory returns a fresh, empty store; cleanup is registered on t
type Factory func(t *testing.T) domain.SessionStore

// Run exercises a store implementation
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, newStore(t)) })
	t.Run("Join", func(t *testing.T) { testJoin(t, newStore(t)) })
	t.Run("JoinFullSession", func(t *testing.T) { testJoinFullSession(t, newStore(t)) })
	t.Run("RecordAnswer", func(t *testing.T) { testRecordAnswer(t, newStore(t)) })
	t.Run("RecordAnswerStale", func(t *testing.T) { testRecordAnswerStale(t, newStore(t)) })
	t.Run("RecordAnswerMissingSlot", func(t *testing.T) { testRecordAnswerMissingSlot(t, newStore(t)) })
	t.Run("ConcurrentSameSlot", func(t *testing.T) { testConcurrentSameSlot(t, newStore(t)) })
	t.Run("ConcurrentBothSlots", func(t *testing.T) { testConcurrentBothSlots(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("DeleteIdle", func(t *testing.T) { testDeleteIdle(t, newStore(t)) })
	t.Run("ReturnedCopies", func(t *testing.T) { testReturnedCopies(t, newStore(t)) })
}

func create(t *testing.T, store domain.SessionStore) *domain.Session {
	t.Helper()

	s, err := store.Create(context.Background(), domain.NewParticipant("Ann", 100))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func pair(t *testing.T, store domain.SessionStore) *domain.Session {
	t.Helper()

	s := create(t, store)
	s, err := store.Join(context.Background(), s.Code, domain.NewParticipant("Bob", 200))
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return s
}

func testCreateAndGet(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()

	created := create(t, store)
	if len(created.Code) != 4 {
		t.Errorf("Expected a 4 digit code, got %q", created.Code)
	}
	if created.B != nil {
		t.Errorf("Expected no joiner, got %+v", created.B)
	}

	got, err := store.Get(ctx, created.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.A.Name != "Ann" || got.A.ChatID != 100 || got.A.CurrentIndex != 0 {
		t.Errorf("Unexpected initiator %+v", got.A)
	}
	if got.State(3) != domain.StateOpen {
		t.Errorf("Expected open session, got %s", got.State(3))
	}
}

func testGetUnknown(t *testing.T, store domain.SessionStore) {
	if _, err := store.Get(context.Background(), "0000"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.Join(context.Background(), "0000", domain.NewParticipant("Bob", 2)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on join, got %v", err)
	}
	if _, err := store.RecordAnswer(context.Background(), "0000", domain.SlotA, 0, domain.SingleAnswer(0)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on record, got %v", err)
	}
}

func testJoin(t *testing.T, store domain.SessionStore) {
	s := pair(t, store)

	if s.B == nil || s.B.Name != "Bob" || s.B.ChatID != 200 {
		t.Fatalf("Expected Bob in slot b, got %+v", s.B)
	}
	if s.State(3) != domain.StatePaired {
		t.Errorf("Expected paired session, got %s", s.State(3))
	}
}

func testJoinFullSession(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := pair(t, store)

	_, err := store.Join(ctx, s.Code, domain.NewParticipant("Eve", 300))
	if !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("Expected ErrAlreadyJoined, got %v", err)
	}

	got, err := store.Get(ctx, s.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.B.Name != "Bob" || got.B.ChatID != 200 {
		t.Errorf("Expected slot b unchanged, got %+v", got.B)
	}
}

func testRecordAnswer(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := pair(t, store)

	if _, err := store.RecordAnswer(ctx, s.Code, domain.SlotA, 0, domain.SingleAnswer(1)); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	got, err := store.RecordAnswer(ctx, s.Code, domain.SlotA, 1, domain.MultiAnswer(2, 0))
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	if got.A.CurrentIndex != 2 {
		t.Errorf("Expected current index 2, got %d", got.A.CurrentIndex)
	}
	if !got.A.Answers[0].Equal(domain.SingleAnswer(1)) {
		t.Errorf("Unexpected answer 0: %+v", got.A.Answers[0])
	}
	if !got.A.Answers[1].Equal(domain.MultiAnswer(0, 2)) {
		t.Errorf("Unexpected answer 1: %+v", got.A.Answers[1])
	}
	if got.B.CurrentIndex != 0 || len(got.B.Answers) != 0 {
		t.Errorf("Expected slot b untouched, got %+v", got.B)
	}

	reread, err := store.Get(ctx, s.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reread.A.CurrentIndex != 2 || !reread.A.Answers[1].Equal(domain.MultiAnswer(0, 2)) {
		t.Errorf("Expected answers to be persisted, got %+v", reread.A)
	}
}

func testRecordAnswerStale(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := pair(t, store)

	if _, err := store.RecordAnswer(ctx, s.Code, domain.SlotB, 0, domain.SingleAnswer(1)); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	for _, idx := range []int{0, 2} {
		_, err := store.RecordAnswer(ctx, s.Code, domain.SlotB, idx, domain.SingleAnswer(0))
		if !errors.Is(err, domain.ErrStaleIndex) || !domain.IsValidation(err) {
			t.Errorf("RecordAnswer(%d): expected stale ValidationError, got %v", idx, err)
		}
	}

	got, err := store.Get(ctx, s.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.B.CurrentIndex != 1 || got.B.Answers[0].Index() != 1 || len(got.B.Answers) != 1 {
		t.Errorf("Expected state unchanged, got %+v", got.B)
	}
}

func testRecordAnswerMissingSlot(t *testing.T, store domain.SessionStore) {
	s := create(t, store)

	_, err := store.RecordAnswer(context.Background(), s.Code, domain.SlotB, 0, domain.SingleAnswer(0))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty slot b, got %v", err)
	}
}

func testConcurrentSameSlot(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := pair(t, store)

	const writers = 8
	var successCount, staleCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(opt int) {
			defer wg.Done()

			_, err := store.RecordAnswer(ctx, s.Code, domain.SlotA, 0, domain.SingleAnswer(opt%2))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrStaleIndex):
				staleCount.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("Expected exactly 1 successful write, got %d", successCount.Load())
	}
	if staleCount.Load() != writers-1 {
		t.Errorf("Expected %d stale rejections, got %d", writers-1, staleCount.Load())
	}

	got, err := store.Get(ctx, s.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.A.CurrentIndex != 1 || len(got.A.Answers) != 1 {
		t.Errorf("Expected one answer and index 1, got %+v", got.A)
	}
}

func testConcurrentBothSlots(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := pair(t, store)

	const questions = 5
	var wg sync.WaitGroup
	for _, slot := range []domain.Slot{domain.SlotA, domain.SlotB} {
		wg.Add(1)
		go func(slot domain.Slot) {
			defer wg.Done()
			for i := 0; i < questions; i++ {
				if _, err := store.RecordAnswer(ctx, s.Code, slot, i, domain.SingleAnswer(i%2)); err != nil {
					t.Errorf("RecordAnswer(%s, %d): %v", slot, i, err)
					return
				}
			}
		}(slot)
	}
	wg.Wait()

	got, err := store.Get(ctx, s.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State(questions) != domain.StateReady {
		t.Errorf("Expected ready session, got %s (a=%d b=%d)", got.State(questions), got.A.CurrentIndex, got.B.CurrentIndex)
	}
	for i := 0; i < questions; i++ {
		if got.A.Answers[i].Index() != i%2 || got.B.Answers[i].Index() != i%2 {
			t.Errorf("Question %d: unexpected answers %+v / %+v", i, got.A.Answers[i], got.B.Answers[i])
		}
	}
}

func testConcurrentCreate(t *testing.T, store domain.SessionStore) {
	const creators = 20

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup

	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()

			s, err := store.Create(context.Background(), domain.NewParticipant("Ann", chatID))
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if seen[s.Code] {
				t.Errorf("Code %s issued twice", s.Code)
			}
			seen[s.Code] = true
		}(int64(i))
	}
	wg.Wait()

	if len(seen) != creators {
		t.Errorf("Expected %d distinct codes, got %d", creators, len(seen))
	}
}

func testDeleteIdle(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := pair(t, store)
	if _, err := store.RecordAnswer(ctx, s.Code, domain.SlotA, 0, domain.MultiAnswer(0, 1)); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	removed, err := store.DeleteIdle(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteIdle: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected nothing removed, got %d", removed)
	}

	removed, err = store.DeleteIdle(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteIdle: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 session removed, got %d", removed)
	}
	if _, err := store.Get(ctx, s.Code); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}
}

func testReturnedCopies(t *testing.T, store domain.SessionStore) {
	ctx := context.Background()
	s := pair(t, store)

	s.A.Name = "Mallory"
	s.A.CurrentIndex = 7
	s.B.Answers[0] = domain.SingleAnswer(1)

	got, err := store.Get(ctx, s.Code)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.A.Name != "Ann" || got.A.CurrentIndex != 0 || len(got.B.Answers) != 0 {
		t.Errorf("Caller mutation leaked into the store: %+v", got)
	}
}
