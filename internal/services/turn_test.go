package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/clients/gemini"
	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/sse"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

// stubLLM implements gemini.Client for orchestrator tests.
type stubLLM struct {
	fragments []string
	streamErr error
	title     string
	titleErr  error
	calls     int
}

func (s *stubLLM) StreamGenerate(_ context.Context, _ gemini.GenerateRequest, onDelta func(string)) (string, error) {
	s.calls++
	if s.streamErr != nil {
		return "", s.streamErr
	}
	var full string
	for _, f := range s.fragments {
		full += f
		if onDelta != nil {
			onDelta(f)
		}
	}
	return full, nil
}

func (s *stubLLM) GenerateText(context.Context, string) (string, error) {
	if s.titleErr != nil {
		return "", s.titleErr
	}
	return s.title, nil
}

func newTurnService(t *testing.T, llm gemini.Client) (TurnService, *gorm.DB, uint, uint) {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewNop()
	user := createTestUser(t, db, "turn-user")
	conv := createTestConversation(t, db, user.ID)

	conversationRepo := repos.NewConversationRepo(db, log)
	messageRepo := repos.NewMessageRepo(db, log)
	emotionService := NewEmotionService(db, log, NewSentimentService(), repos.NewEmotionLogRepo(db, log))
	automationService := NewAutomationService(db, log, repos.NewAutomationRepo(db, log))
	memoryService := NewMemoryService(db, log, repos.NewMemoryRepo(db, log))
	proactiveService := NewProactiveService(db, log, messageRepo)

	svc := NewTurnService(db, log, conversationRepo, messageRepo,
		emotionService, automationService, memoryService, proactiveService, llm, nil)
	return svc, db, user.ID, conv.ID
}

func drain(t *testing.T, stream *sse.Stream) []sse.Event {
	t.Helper()
	var events []sse.Event
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	return events
}

func TestTurnEventOrderHealthyStream(t *testing.T) {
	llm := &stubLLM{fragments: []string{"Hi ", "there!"}, title: "Friendly greeting"}
	svc, db, userID, convID := newTurnService(t, llm)

	stream := svc.Run(context.Background(), TurnInput{
		UserID:         userID,
		ConversationID: convID,
		Prompt:         "hello",
	})
	events := drain(t, stream)

	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
	}

	// emotion first, sentiment before the fragments, no error.
	if len(events) == 0 || events[0].Name != "emotion" {
		t.Fatalf("want emotion event first, got %v", names)
	}
	sentimentIdx, firstFragmentIdx := -1, -1
	for i, ev := range events {
		switch {
		case ev.Name == "sentiment":
			sentimentIdx = i
		case ev.Name == "" && firstFragmentIdx == -1:
			firstFragmentIdx = i
		case ev.Name == "error":
			t.Fatalf("unexpected error event: %s", ev.Data)
		}
	}
	if sentimentIdx == -1 || firstFragmentIdx == -1 || sentimentIdx > firstFragmentIdx {
		t.Fatalf("want sentiment before fragments, got %v", names)
	}

	var fragments []string
	for _, ev := range events {
		if ev.Name == "" {
			var frag struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &frag); err != nil {
				t.Fatalf("bad fragment payload %q: %v", ev.Data, err)
			}
			fragments = append(fragments, frag.Text)
		}
	}
	if len(fragments) != 2 || fragments[0] != "Hi " || fragments[1] != "there!" {
		t.Fatalf("fragments out of order: %v", fragments)
	}

	// Both turn sides persisted, reply concatenated.
	var messages []types.Message
	if err := db.Where("conversation_id = ?", convID).Order("id").Find(&messages).Error; err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("want 2 persisted messages, got %d", len(messages))
	}
	if messages[1].Role != types.RoleModel || messages[1].Content != "Hi there!" {
		t.Fatalf("unexpected model message: %+v", messages[1])
	}
}

func TestTurnFailingLLMEmitsApology(t *testing.T) {
	llm := &stubLLM{streamErr: errors.New("provider down")}
	svc, db, userID, convID := newTurnService(t, llm)

	stream := svc.Run(context.Background(), TurnInput{
		UserID:         userID,
		ConversationID: convID,
		Prompt:         "hello",
	})
	events := drain(t, stream)

	var sawApology bool
	for _, ev := range events {
		if ev.Name == "error" {
			t.Fatalf("provider fault should not produce an error event, got %s", ev.Data)
		}
		if ev.Name == "" {
			var frag struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal([]byte(ev.Data), &frag)
			if frag.Text == apologyMessage {
				sawApology = true
			}
		}
	}
	if !sawApology {
		t.Fatal("want a single apologetic fragment on provider failure")
	}

	var messages []types.Message
	if err := db.Where("conversation_id = ? AND role = ?", convID, types.RoleModel).Find(&messages).Error; err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != apologyMessage {
		t.Fatalf("want apology persisted as the reply, got %+v", messages)
	}
}

func TestTurnNilLLMEmitsError(t *testing.T) {
	svc, _, userID, convID := newTurnService(t, nil)

	stream := svc.Run(context.Background(), TurnInput{
		UserID:         userID,
		ConversationID: convID,
		Prompt:         "hello",
	})
	events := drain(t, stream)

	if len(events) == 0 {
		t.Fatal("want events before the terminal error")
	}
	last := events[len(events)-1]
	if last.Name != "error" {
		t.Fatalf("want terminal error event, got %q", last.Name)
	}
}

func TestTurnTitleSetOnceAfterFirstExchange(t *testing.T) {
	llm := &stubLLM{fragments: []string{"sure"}, title: "Trip planning"}
	svc, db, userID, convID := newTurnService(t, llm)
	ctx := context.Background()

	drain(t, svc.Run(ctx, TurnInput{UserID: userID, ConversationID: convID, Prompt: "help me plan a trip"}))

	var conv types.Conversation
	if err := db.First(&conv, convID).Error; err != nil {
		t.Fatalf("load conversation: %v", err)
	}
	if conv.Title != "Trip planning" {
		t.Fatalf("want generated title after first exchange, got %q", conv.Title)
	}

	// Later exchanges never rename.
	llm.title = "Something else"
	drain(t, svc.Run(ctx, TurnInput{UserID: userID, ConversationID: convID, Prompt: "second message"}))

	if err := db.First(&conv, convID).Error; err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if conv.Title != "Trip planning" {
		t.Fatalf("title overwritten on later exchange: %q", conv.Title)
	}
}

func TestTurnAbandonedAfterConsumerCancel(t *testing.T) {
	llm := &stubLLM{fragments: []string{"never sent"}}
	svc, db, userID, convID := newTurnService(t, llm)

	stream := sse.NewStream(4)
	stream.Cancel()
	svc.(*turnService).run(context.Background(), TurnInput{
		UserID:         userID,
		ConversationID: convID,
		Prompt:         "hello",
	}, stream)

	if llm.calls != 0 {
		t.Fatalf("model called %d times for a cancelled consumer", llm.calls)
	}
	var count int64
	if err := db.Model(&types.Message{}).Where("conversation_id = ?", convID).Count(&count).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Fatalf("turn abandoned before persistence should store nothing, got %d messages", count)
	}
}

func TestTurnAutomationEventOnlyWhenTriggered(t *testing.T) {
	llm := &stubLLM{fragments: []string{"morning!"}, title: "Morning"}
	svc, _, userID, convID := newTurnService(t, llm)

	events := drain(t, svc.Run(context.Background(), TurnInput{
		UserID: userID, ConversationID: convID, Prompt: "good morning",
	}))
	found := false
	for _, ev := range events {
		if ev.Name == "automation" {
			found = true
		}
	}
	if !found {
		t.Fatal("want automation event for a matching trigger")
	}

	events = drain(t, svc.Run(context.Background(), TurnInput{
		UserID: userID, ConversationID: convID, Prompt: "nothing to trigger here",
	}))
	for _, ev := range events {
		if ev.Name == "automation" {
			t.Fatal("automation event without any trigger")
		}
	}
}
