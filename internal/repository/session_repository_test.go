package repository

import (
	"context"
	"testing"
	"time"

	"github.com/meeyouu/skiniveAPI/internal/imageprocessor"
	"github.com/meeyouu/skiniveAPI/internal/relay"
)

func TestMemoryLoadReturnsDefaultsForUnknownSession(t *testing.T) {
	repo := NewMemorySessionRepository(relay.DefaultConfig(), time.Minute, 0)

	state, err := repo.Load(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Config != relay.DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", state.Config)
	}
	if state.HasImage() {
		t.Fatal("expected no image")
	}
}

func TestMemorySaveAndLoad(t *testing.T) {
	repo := NewMemorySessionRepository(relay.DefaultConfig(), time.Minute, 0)
	ctx := context.Background()

	state := &SessionState{
		Config: relay.Config{AuthToken: "tok", Locale: relay.LocaleRU},
		Image:  &imageprocessor.Image{Name: "a.png", MediaType: imageprocessor.MediaTypePNG, Data: []byte("x")},
	}
	if err := repo.Save(ctx, "s1", state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state.Config.AuthToken = "mutated"

	loaded, err := repo.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Config.AuthToken != "tok" {
		t.Fatalf("expected stored copy, got %q", loaded.Config.AuthToken)
	}
	if !loaded.HasImage() {
		t.Fatal("expected image to be stored")
	}

	other, _ := repo.Load(ctx, "s2")
	if other.Config.AuthToken != "" {
		t.Fatal("sessions must not share state")
	}
}

func TestMemoryEntriesExpire(t *testing.T) {
	repo := NewMemorySessionRepository(relay.DefaultConfig(), time.Minute, 0)
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return current }

	ctx := context.Background()
	_ = repo.Save(ctx, "s1", &SessionState{Config: relay.Config{AuthToken: "tok"}})

	current = current.Add(2 * time.Minute)
	loaded, _ := repo.Load(ctx, "s1")
	if loaded.Config.AuthToken != "" {
		t.Fatal("expected expired session to reset")
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected expired entry to be removed, got %d", len(repo.entries))
	}
}

func TestMemoryEvictsOldestBeyondCapacity(t *testing.T) {
	repo := NewMemorySessionRepository(relay.DefaultConfig(), time.Minute, 2)
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return current }
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		_ = repo.Save(ctx, id, &SessionState{Config: relay.Config{AuthToken: id}})
		current = current.Add(time.Second)
	}

	if len(repo.entries) != 2 {
		t.Fatalf("expected 2 sessions held, got %d", len(repo.entries))
	}
	if state, _ := repo.Load(ctx, "s1"); state.Config.AuthToken != "" {
		t.Fatal("expected the oldest session to be evicted")
	}
	if state, _ := repo.Load(ctx, "s3"); state.Config.AuthToken != "s3" {
		t.Fatal("expected the newest session to be kept")
	}

	// Re-saving a held session never evicts another one.
	_ = repo.Save(ctx, "s2", &SessionState{Config: relay.Config{AuthToken: "s2b"}})
	if state, _ := repo.Load(ctx, "s3"); state.Config.AuthToken != "s3" {
		t.Fatal("updating an existing session must not evict")
	}
}
