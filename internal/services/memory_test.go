package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
)

func newMemoryService(t *testing.T) (MemoryService, uint) {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()
	user := createTestUser(t, db, "memory-user")
	return NewMemoryService(db, log, repos.NewMemoryRepo(db, log)), user.ID
}

func TestMemoryStoreAndRetrieve(t *testing.T) {
	svc, userID := newMemoryService(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, userID, "general", "favorite language", "the user prefers Go for backends", 1.0); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := svc.Store(ctx, userID, "general", "coffee order", "flat white, oat milk", 1.0); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := svc.Store(ctx, userID, "general", "gym schedule", "trains tuesdays and thursdays", 1.0); err != nil {
		t.Fatalf("store: %v", err)
	}

	results, err := svc.Retrieve(ctx, userID, "favorite language", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 result, got %d", len(results))
	}
	if results[0].Key != "favorite language" {
		t.Fatalf("want stored key ranked first, got %q", results[0].Key)
	}
}

func TestMemoryImportanceBreaksTies(t *testing.T) {
	svc, userID := newMemoryService(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, userID, "general", "project alpha", "notes about project alpha", 1.0); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := svc.Store(ctx, userID, "general", "project alpha", "notes about project alpha", 2.0); err != nil {
		t.Fatalf("store: %v", err)
	}

	results, err := svc.Retrieve(ctx, userID, "project alpha", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].ImportanceScore <= results[1].ImportanceScore {
		t.Fatalf("want higher importance first, got %v then %v",
			results[0].ImportanceScore, results[1].ImportanceScore)
	}
}

func TestMemoryEmptyQueryFallsBackToRecent(t *testing.T) {
	svc, userID := newMemoryService(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, userID, "general", "a", "first", 1.0); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := svc.Store(ctx, userID, "general", "b", "second", 3.0); err != nil {
		t.Fatalf("store: %v", err)
	}

	results, err := svc.Retrieve(ctx, userID, "   ", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	if results[0].Key != "b" {
		t.Fatalf("want importance-first fallback ordering, got %q first", results[0].Key)
	}
}

func TestMemoryContextBlockCap(t *testing.T) {
	svc, userID := newMemoryService(t)
	ctx := context.Background()

	long := strings.Repeat("x", 400)
	if _, err := svc.Store(ctx, userID, "general", "one", long, 1.0); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := svc.Store(ctx, userID, "general", "two", long, 1.0); err != nil {
		t.Fatalf("store: %v", err)
	}
	memories, err := svc.Retrieve(ctx, userID, "one two", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}

	block := svc.ContextBlock(memories)
	if len(block) > 500 {
		t.Fatalf("context block exceeds cap: %d", len(block))
	}
	if block == "" {
		t.Fatal("context block empty")
	}
}

func TestMemoryCaptureFromMessage(t *testing.T) {
	svc, userID := newMemoryService(t)
	ctx := context.Background()

	svc.CaptureFromMessage(ctx, userID, "just chatting about nothing")
	svc.CaptureFromMessage(ctx, userID, "please remember my passport renewal is due in May")

	results, err := svc.Retrieve(ctx, userID, "passport renewal", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want exactly the keyword-matched message captured, got %d records", len(results))
	}
	if results[0].Type != "important_info" || results[0].ImportanceScore != 1.5 {
		t.Fatalf("unexpected captured memory: %+v", results[0])
	}
}

func TestMemoryCaptureKeyStaysValidUTF8(t *testing.T) {
	svc, userID := newMemoryService(t)
	ctx := context.Background()

	// The 50-byte key cap falls inside a 4-byte emoji here.
	svc.CaptureFromMessage(ctx, userID, "remember "+strings.Repeat("🎂", 20))

	results, err := svc.Retrieve(ctx, userID, "remember", 5)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("want 1 captured memory, got %d", len(results))
	}
	if !utf8.ValidString(results[0].Key) {
		t.Fatalf("captured key is invalid UTF-8: %q", results[0].Key)
	}
	if len(results[0].Key) > 50 {
		t.Fatalf("key exceeds cap: %d bytes", len(results[0].Key))
	}
}
