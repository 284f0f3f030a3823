package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

func newProactiveService(t *testing.T, now time.Time) (ProactiveService, *gorm.DB, uint) {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()
	user := createTestUser(t, db, "proactive-user")
	svc := NewProactiveService(db, log, repos.NewMessageRepo(db, log))
	svc.(*proactiveService).now = func() time.Time { return now }
	return svc, db, user.ID
}

// noon avoids the morning/afternoon time-bucket suggestions.
var quietNoon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestProactiveStressSuggestion(t *testing.T) {
	svc, _, userID := newProactiveService(t, quietNoon)

	suggestions := svc.Suggest(context.Background(), userID, "hello", EmotionScores{Stress: 0.8, Neutral: 0.2})

	found := false
	for _, s := range suggestions {
		if s.Type == "wellness" {
			found = true
			if s.Priority != "high" {
				t.Fatalf("want high priority wellness, got %s", s.Priority)
			}
		}
	}
	if !found {
		t.Fatalf("want wellness suggestion for stress > 0.6, got %+v", suggestions)
	}
}

func TestProactiveNoTriggersMeansFewSuggestions(t *testing.T) {
	svc, _, userID := newProactiveService(t, quietNoon)

	suggestions := svc.Suggest(context.Background(), userID, "hello", EmotionScores{Neutral: 1})
	for _, s := range suggestions {
		switch s.Type {
		case "break", "deadline", "coding", "learning", "pace", "wellness", "momentum":
			t.Fatalf("unexpected suggestion %+v for a quiet user", s)
		}
	}
}

func TestProactiveTopFiveSortedByPriority(t *testing.T) {
	// Morning hour plus heavy traffic plus stress stacks up more than
	// five candidate suggestions.
	morning := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc, db, userID := newProactiveService(t, morning)
	conv := createTestConversation(t, db, userID)
	for i := 0; i < 25; i++ {
		msg := &types.Message{ConversationID: conv.ID, Role: types.RoleUser, Content: "msg"}
		if err := db.Create(msg).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	suggestions := svc.Suggest(context.Background(), userID,
		"debugging this code, deadline is tomorrow and I'm stressed about learning it all",
		EmotionScores{Stress: 0.9, Happiness: 0.8})

	if len(suggestions) > 5 {
		t.Fatalf("want at most 5 suggestions, got %d", len(suggestions))
	}
	for i := 1; i < len(suggestions); i++ {
		if priorityWeight[suggestions[i-1].Priority] < priorityWeight[suggestions[i].Priority] {
			t.Fatalf("suggestions not sorted by priority weight: %+v", suggestions)
		}
	}
}

func TestProactiveDeadlineDetection(t *testing.T) {
	svc, _, userID := newProactiveService(t, quietNoon)

	suggestions := svc.Suggest(context.Background(), userID,
		"the project deadline is 2026-03-15", EmotionScores{Neutral: 1})

	found := false
	for _, s := range suggestions {
		if s.Type == "deadline" && s.Priority == "high" {
			found = true
		}
	}
	if !found {
		t.Fatalf("want deadline suggestion, got %+v", suggestions)
	}
}
