package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/pkg/models"
)

func TestStoreMutateCreatesAndPersists(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	store := NewStore(cfg)

	sess, err := store.Mutate(context.Background(), "user-auth", func(s *Session) error {
		Advance(s, models.StatusFail, []models.Finding{failFinding("user_id")}, false)
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	if sess.CurrentIteration != 2 {
		t.Errorf("CurrentIteration = %d, want 2 after first failed pass", sess.CurrentIteration)
	}

	loaded, err := store.Load("user-auth")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.CurrentIteration != 2 || len(loaded.History) != 1 {
		t.Errorf("persisted session = iteration %d with %d records, want 2 with 1",
			loaded.CurrentIteration, len(loaded.History))
	}
	if loaded.Status != StatusInProgress {
		t.Errorf("Status = %s, want %s", loaded.Status, StatusInProgress)
	}
}

func TestStoreMutateResumesInProgress(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	store := NewStore(cfg)
	ctx := context.Background()
	fail := func(s *Session) error {
		Advance(s, models.StatusFail, []models.Finding{failFinding("user_identifier")}, false)
		return nil
	}

	for pass := 1; pass <= 2; pass++ {
		if _, err := store.Mutate(ctx, "user-auth", fail); err != nil {
			t.Fatalf("Mutate() pass %d error = %v", pass, err)
		}
	}

	sess, err := store.Mutate(ctx, "user-auth", fail)
	if err != nil {
		t.Fatalf("Mutate() final pass error = %v", err)
	}
	if sess.Status != StatusEscalated {
		t.Errorf("Status = %s, want %s after exhausting the default budget", sess.Status, StatusEscalated)
	}
	if len(sess.History) != 3 {
		t.Errorf("len(History) = %d, want 3", len(sess.History))
	}
}

func TestStoreMutateFreshAfterTerminal(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	store := NewStore(cfg)
	ctx := context.Background()

	if _, err := store.Mutate(ctx, "user-auth", func(s *Session) error {
		Advance(s, models.StatusPass, nil, false)
		return nil
	}); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	var seenIteration, seenHistory int
	if _, err := store.Mutate(ctx, "user-auth", func(s *Session) error {
		seenIteration = s.CurrentIteration
		seenHistory = len(s.History)
		return nil
	}); err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	if seenIteration != 1 || seenHistory != 0 {
		t.Errorf("second campaign saw iteration %d with %d records, want a fresh session (1, 0)",
			seenIteration, seenHistory)
	}
}

func TestStoreMutateCancelledWritesNothing(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	store := NewStore(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Mutate(ctx, "user-auth", func(s *Session) error {
		Advance(s, models.StatusFail, nil, false)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Mutate() error = %v, want context.Canceled", err)
	}

	if _, err := store.Load("user-auth"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after cancelled mutation error = %v, want ErrNotFound", err)
	}
}

func TestStoreMutateFnErrorWritesNothing(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	store := NewStore(cfg)
	boom := errors.New("fix generation failed")

	_, err := store.Mutate(context.Background(), "user-auth", func(s *Session) error {
		Advance(s, models.StatusFail, nil, false)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Mutate() error = %v, want the fn error", err)
	}

	if _, err := store.Load("user-auth"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after failed mutation error = %v, want ErrNotFound", err)
	}
}

func TestStoreMutateSerializes(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	cfg.Defaults.MaxIterations = 100
	store := NewStore(cfg)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = store.Mutate(context.Background(), "user-auth", func(s *Session) error {
				s.History = append(s.History, IterationRecord{
					Iteration: len(s.History) + 1,
					Status:    models.StatusFail,
				})
				return nil
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Mutate() worker %d error = %v", i, err)
		}
	}

	sess, err := store.Load("user-auth")
	if err != nil {
		t.Fatal(err)
	}
	// Without the lock, concurrent read-modify-write would lose records.
	if len(sess.History) != workers {
		t.Errorf("len(History) = %d, want %d", len(sess.History), workers)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())

	_, err := NewStore(cfg).Load("ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	cfg := config.DefaultAt(t.TempDir())
	store := NewStore(cfg)
	if err := os.MkdirAll(cfg.SessionsDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path("user-auth"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load("user-auth"); err == nil {
		t.Error("Load() of a corrupt session file returned nil error")
	}
}

func TestSanitizeFeatureID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user-auth", "user-auth"},
		{"checkout_v2.1", "checkout_v2.1"},
		{"a b/c", "a-b-c"},
		{"../escape", "..-escape"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := sanitizeFeatureID(tt.in); got != tt.want {
			t.Errorf("sanitizeFeatureID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
