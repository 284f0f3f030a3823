package services

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/clients/gemini"
	"github.com/aurelia-labs/companion-backend/internal/clients/search"
	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/sse"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

const (
	defaultTitle   = "New Conversation"
	apologyMessage = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."
)

// ImageAttachment is an optional image uploaded with a chat turn.
type ImageAttachment struct {
	MIME string
	Data []byte
}

type TurnInput struct {
	UserID         uint
	ConversationID uint
	Prompt         string
	Image          *ImageAttachment
}

// TurnService runs one chat turn: heuristics, persistence, the model
// call, and the ordered SSE event sequence describing all of it.
type TurnService interface {
	// Run starts the turn in the background and returns the stream the
	// HTTP layer drains. The stream is always closed, whatever happens
	// inside the turn.
	Run(ctx context.Context, input TurnInput) *sse.Stream
}

type turnService struct {
	db                *gorm.DB
	log               *logger.Logger
	conversationRepo  repos.ConversationRepo
	messageRepo       repos.MessageRepo
	emotionService    EmotionService
	automationService AutomationService
	memoryService     MemoryService
	proactiveService  ProactiveService
	llm               gemini.Client // nil when unconfigured
	search            search.Client // nil when unconfigured
}

func NewTurnService(
	db *gorm.DB,
	log *logger.Logger,
	conversationRepo repos.ConversationRepo,
	messageRepo repos.MessageRepo,
	emotionService EmotionService,
	automationService AutomationService,
	memoryService MemoryService,
	proactiveService ProactiveService,
	llm gemini.Client,
	searchClient search.Client,
) TurnService {
	return &turnService{
		db:                db,
		log:               log.With("service", "TurnService"),
		conversationRepo:  conversationRepo,
		messageRepo:       messageRepo,
		emotionService:    emotionService,
		automationService: automationService,
		memoryService:     memoryService,
		proactiveService:  proactiveService,
		llm:               llm,
		search:            searchClient,
	}
}

func (ts *turnService) Run(ctx context.Context, input TurnInput) *sse.Stream {
	stream := sse.NewStream(sse.DefaultBuffer)
	go ts.run(ctx, input, stream)
	return stream
}

func (ts *turnService) run(ctx context.Context, input TurnInput, stream *sse.Stream) {
	defer stream.Close()
	defer func() {
		if r := recover(); r != nil {
			ts.log.Error("Turn panicked", "conversation_id", input.ConversationID, "panic", r)
			ts.emitError(stream, "Something went wrong processing your message.")
		}
	}()

	// Emotion scoring. Log persistence inside is best-effort.
	scores, snt := ts.emotionService.Analyze(ctx, input.UserID, input.ConversationID, input.Prompt)
	if !ts.emitJSON(stream, "emotion", scores) {
		return
	}

	// Automations; failures degrade to none.
	actionResults, err := ts.automationService.CheckTriggers(ctx, input.UserID, input.Prompt)
	if err != nil {
		ts.log.Warn("Automation check failed", "error", err)
		actionResults = nil
	}
	if len(actionResults) > 0 {
		if !ts.emitJSON(stream, "automation", actionResults) {
			return
		}
	}

	// Memory retrieval feeds prompt composition only; no event.
	memories, err := ts.memoryService.Retrieve(ctx, input.UserID, input.Prompt, 5)
	if err != nil {
		ts.log.Warn("Memory retrieval failed", "error", err)
		memories = nil
	}

	suggestions := ts.proactiveService.Suggest(ctx, input.UserID, input.Prompt, scores)
	if len(suggestions) > 0 {
		if !ts.emitJSON(stream, "proactive", suggestions) {
			return
		}
	}

	ts.memoryService.CaptureFromMessage(ctx, input.UserID, input.Prompt)

	// From here failures are terminal: the user message must be on
	// record before any reply is produced.
	userMsg := &types.Message{
		ConversationID: input.ConversationID,
		Role:           types.RoleUser,
		Content:        input.Prompt,
		HasImage:       input.Image != nil,
	}
	if _, err := ts.messageRepo.Create(ctx, nil, userMsg); err != nil {
		ts.log.Error("Failed to persist user message", "conversation_id", input.ConversationID, "error", err)
		ts.emitError(stream, "Failed to save your message.")
		return
	}
	if err := ts.conversationRepo.Touch(ctx, nil, input.ConversationID); err != nil {
		ts.log.Warn("Failed to touch conversation", "conversation_id", input.ConversationID, "error", err)
	}

	// A cancelled consumer ends the turn here: the user message above
	// stays persisted, but the model round-trip is skipped.
	if !ts.emitJSON(stream, "sentiment", snt) {
		return
	}

	history, err := ts.messageRepo.ListByConversation(ctx, nil, input.ConversationID)
	if err != nil {
		ts.log.Error("Failed to load history", "conversation_id", input.ConversationID, "error", err)
		ts.emitError(stream, "Failed to load conversation history.")
		return
	}

	if ts.llm == nil {
		ts.emitError(stream, "AI service is not configured.")
		return
	}

	prompt := ts.composePrompt(ctx, input, scores, memories)

	req := gemini.GenerateRequest{
		History: historyTurns(history, userMsg.ID),
		Prompt:  prompt,
	}
	if input.Image != nil {
		req.ImageMIME = input.Image.MIME
		req.ImageData = input.Image.Data
	}

	reply, err := ts.llm.StreamGenerate(ctx, req, func(delta string) {
		ts.emitJSON(stream, "", textFragment{Text: delta})
	})
	if err != nil {
		// A provider fault becomes one apologetic fragment and a clean
		// end of stream; the turn still completes and persists.
		ts.log.Warn("Model stream failed", "conversation_id", input.ConversationID, "error", err)
		ts.emitJSON(stream, "", textFragment{Text: apologyMessage})
		if strings.TrimSpace(reply) == "" {
			reply = apologyMessage
		} else {
			reply = reply + " " + apologyMessage
		}
	}

	modelMsg := &types.Message{
		ConversationID: input.ConversationID,
		Role:           types.RoleModel,
		Content:        reply,
	}
	if _, err := ts.messageRepo.Create(ctx, nil, modelMsg); err != nil {
		ts.log.Error("Failed to persist model reply", "conversation_id", input.ConversationID, "error", err)
		ts.emitError(stream, "Failed to save the reply.")
		return
	}

	ts.memoryService.RecordInteraction(ctx, input.UserID, input.Prompt)

	ts.maybeSetTitle(ctx, input.ConversationID, input.Prompt)
}

type textFragment struct {
	Text string `json:"text"`
}

// composePrompt concatenates, in order: the memory-context prefix, an
// emotional-state note, the original text, and either realtime search
// results or nothing when an image is attached (image wins).
func (ts *turnService) composePrompt(ctx context.Context, input TurnInput, scores EmotionScores, memories []*types.Memory) string {
	var b strings.Builder

	if block := ts.memoryService.ContextBlock(memories); block != "" {
		b.WriteString("Context about the user:\n")
		b.WriteString(block)
		b.WriteString("\n\n")
	}

	switch {
	case scores.Stress > 0.6:
		b.WriteString("(The user seems stressed right now; respond with extra care.)\n")
	case scores.Happiness > 0.7:
		b.WriteString("(The user is in a great mood.)\n")
	}

	b.WriteString(input.Prompt)

	if input.Image == nil && ts.search != nil && search.NeedsRealtimeInfo(input.Prompt) {
		if info, err := ts.search.Search(ctx, input.Prompt); err == nil && info != "" {
			b.WriteString("\n\nReal-time information: ")
			b.WriteString(info)
		} else if err != nil {
			ts.log.Warn("Realtime lookup failed", "error", err)
		}
	}

	return b.String()
}

// historyTurns converts the stored log into provider history, skipping
// the just-persisted user message since the composed prompt carries it.
// Stored roles already use the provider's user/model vocabulary.
func historyTurns(history []*types.Message, currentID uint) []gemini.Turn {
	turns := make([]gemini.Turn, 0, len(history))
	for _, m := range history {
		if m.ID == currentID {
			continue
		}
		turns = append(turns, gemini.Turn{Role: m.Role, Text: m.Content})
	}
	return turns
}

// maybeSetTitle names the conversation after its first exchange. The
// default title is never overwritten twice.
func (ts *turnService) maybeSetTitle(ctx context.Context, conversationID uint, prompt string) {
	count, err := ts.messageRepo.CountByConversation(ctx, nil, conversationID)
	if err != nil || count != 2 {
		return
	}
	conv, err := ts.conversationRepo.GetByID(ctx, nil, conversationID)
	if err != nil || conv.Title != defaultTitle {
		return
	}

	title := defaultTitle
	if ts.llm != nil {
		generated, err := ts.llm.GenerateText(ctx, "Write a short title (at most six words, no quotes) for a conversation that starts with: "+prompt)
		if err != nil {
			ts.log.Warn("Title generation failed", "conversation_id", conversationID, "error", err)
		} else if generated != "" {
			title = generated
		}
	}
	if title == defaultTitle {
		return
	}
	title = truncate(title, 200)
	if err := ts.conversationRepo.UpdateTitle(ctx, nil, conversationID, title); err != nil {
		ts.log.Warn("Failed to set conversation title", "conversation_id", conversationID, "error", err)
	}
}

// emitJSON publishes one event and reports whether the consumer is
// still listening. Encoding failures skip the event but keep the turn
// going.
func (ts *turnService) emitJSON(stream *sse.Stream, name string, payload interface{}) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		ts.log.Error("Failed to encode SSE payload", "event", name, "error", err)
		return true
	}
	return stream.Publish(sse.Event{Name: name, Data: string(raw)})
}

func (ts *turnService) emitError(stream *sse.Stream, message string) {
	raw, _ := json.Marshal(map[string]string{"error": message})
	stream.Publish(sse.Event{Name: "error", Data: string(raw)})
}
