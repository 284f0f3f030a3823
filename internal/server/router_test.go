package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aurelia-labs/companion-backend/internal/clients/gemini"
	"github.com/aurelia-labs/companion-backend/internal/handlers"
	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/middleware"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/services"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

type fakeLLM struct {
	fragments []string
	fail      bool
}

func (f *fakeLLM) StreamGenerate(_ context.Context, _ gemini.GenerateRequest, onDelta func(string)) (string, error) {
	if f.fail {
		return "", fmt.Errorf("provider unavailable")
	}
	var full string
	for _, frag := range f.fragments {
		full += frag
		if onDelta != nil {
			onDelta(frag)
		}
	}
	return full, nil
}

func (f *fakeLLM) GenerateText(context.Context, string) (string, error) {
	return "Test Conversation", nil
}

func newTestRouter(t *testing.T, llm gemini.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{}, &types.UserToken{}, &types.UserProfile{},
		&types.Conversation{}, &types.Message{}, &types.Memory{},
		&types.EmotionLog{}, &types.Automation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logger.NewNop()
	userRepo := repos.NewUserRepo(db, log)
	userTokenRepo := repos.NewUserTokenRepo(db, log)
	userProfileRepo := repos.NewUserProfileRepo(db, log)
	conversationRepo := repos.NewConversationRepo(db, log)
	messageRepo := repos.NewMessageRepo(db, log)
	memoryRepo := repos.NewMemoryRepo(db, log)
	emotionLogRepo := repos.NewEmotionLogRepo(db, log)
	automationRepo := repos.NewAutomationRepo(db, log)

	sentimentService := services.NewSentimentService()
	emotionService := services.NewEmotionService(db, log, sentimentService, emotionLogRepo)
	memoryService := services.NewMemoryService(db, log, memoryRepo)
	automationService := services.NewAutomationService(db, log, automationRepo)
	proactiveService := services.NewProactiveService(db, log, messageRepo)
	authService := services.NewAuthService(db, log, userRepo, userTokenRepo, "test-secret", time.Hour, 24*time.Hour)
	userService := services.NewUserService(db, log, userRepo, userProfileRepo, conversationRepo, messageRepo, memoryRepo, automationRepo, emotionService)
	turnService := services.NewTurnService(db, log, conversationRepo, messageRepo, emotionService, automationService, memoryService, proactiveService, llm, nil)

	return NewRouter(RouterConfig{
		AuthHandler:         handlers.NewAuthHandler(authService),
		ChatHandler:         handlers.NewChatHandler(log, turnService, conversationRepo),
		ConversationHandler: handlers.NewConversationHandler(conversationRepo, messageRepo, userService),
		MemoryHandler:       handlers.NewMemoryHandler(memoryService),
		AutomationHandler:   handlers.NewAutomationHandler(automationService),
		EmotionHandler:      handlers.NewEmotionHandler(log, emotionService, nil),
		ProactiveHandler:    handlers.NewProactiveHandler(proactiveService, emotionService),
		UserHandler:         handlers.NewUserHandler(userService),
		HealthcheckHandler:  handlers.NewHealthcheckHandler(),
		AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/register", "", map[string]string{
		"username": "alice", "password": "secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, router, http.MethodPost, "/login", "", map[string]string{
		"username": "alice", "password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func createConversation(t *testing.T, router *gin.Engine, token string) uint {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/conversations", token, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create conversation: %d %s", w.Code, w.Body.String())
	}
	var conv types.Conversation
	if err := json.Unmarshal(w.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode conversation: %v", err)
	}
	return conv.ID
}

func postChat(t *testing.T, router *gin.Engine, token string, convID uint, prompt string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("prompt", prompt)
	_ = mw.WriteField("conversation_id", fmt.Sprint(convID))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/chat", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// sseEvents parses a recorded event-stream body into (name, data) pairs.
func sseEvents(body string) [][2]string {
	var out [][2]string
	for _, frame := range strings.Split(body, "\n\n") {
		var name, data string
		for _, line := range strings.Split(frame, "\n") {
			if strings.HasPrefix(line, "event: ") {
				name = strings.TrimPrefix(line, "event: ")
			}
			if strings.HasPrefix(line, "data: ") {
				if data != "" {
					data += "\n"
				}
				data += strings.TrimPrefix(line, "data: ")
			}
		}
		if data != "" {
			out = append(out, [2]string{name, data})
		}
	}
	return out
}

func TestHealthcheck(t *testing.T) {
	router := newTestRouter(t, nil)
	w := doJSON(t, router, http.MethodGet, "/healthcheck", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthcheck: %d", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, nil)
	for _, path := range []string{"/api/conversations", "/api/memories", "/api/automations"} {
		w := doJSON(t, router, http.MethodGet, path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: want 401, got %d", path, w.Code)
		}
	}
}

func TestChatStreamHappyPath(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{fragments: []string{"Hello", " back"}})
	token := registerAndLogin(t, router)
	convID := createConversation(t, router, token)

	w := postChat(t, router, token, convID, "hello")
	if w.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	events := sseEvents(w.Body.String())
	if len(events) == 0 {
		t.Fatal("no events in stream")
	}
	if events[0][0] != "emotion" {
		t.Fatalf("want emotion first, got %q", events[0][0])
	}
	var sawSentiment, sawFragment, sawError bool
	for _, ev := range events {
		switch ev[0] {
		case "sentiment":
			sawSentiment = true
		case "error":
			sawError = true
		case "":
			sawFragment = true
		}
	}
	if !sawSentiment || !sawFragment {
		t.Fatalf("incomplete stream: %v", events)
	}
	if sawError {
		t.Fatalf("unexpected error event: %v", events)
	}

	// The persisted log uses the user/model role vocabulary.
	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", convID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"role":"model"`) {
		t.Fatalf("want model role in message log, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), `"role":"assistant"`) {
		t.Fatalf("unexpected assistant role in message log: %s", w.Body.String())
	}
}

func TestChatValidationBeforeStreaming(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{fragments: []string{"x"}})
	token := registerAndLogin(t, router)

	// Missing conversation id.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("prompt", "hi")
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/chat", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("want 400 for missing conversation_id, got %d", w.Code)
	}

	// Someone else's conversation.
	w2 := postChat(t, router, token, 9999, "hi")
	if w2.Code != http.StatusNotFound {
		t.Fatalf("want 404 for foreign conversation, got %d", w2.Code)
	}
}

func TestChatFailingLLMStillCompletes(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{fail: true})
	token := registerAndLogin(t, router)
	convID := createConversation(t, router, token)

	w := postChat(t, router, token, convID, "hello")
	if w.Code != http.StatusOK {
		t.Fatalf("chat: %d", w.Code)
	}
	events := sseEvents(w.Body.String())
	var sawFragment bool
	for _, ev := range events {
		if ev[0] == "" && strings.Contains(ev[1], "sorry") {
			sawFragment = true
		}
	}
	if !sawFragment {
		t.Fatalf("want apologetic fragment, got %v", events)
	}
}

func TestMemoriesAndAutomationsEndpoints(t *testing.T) {
	router := newTestRouter(t, nil)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/memories", token, map[string]interface{}{
		"type": "general", "key": "city", "value": "lives in Oslo", "importance": 1.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create memory: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/memories?query=city&limit=5", token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Oslo") {
		t.Fatalf("query memories: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/automations", token, map[string]interface{}{
		"name": "focus", "trigger_phrase": "focus time",
		"actions": []map[string]interface{}{{"type": "timer", "priority": 1}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create automation: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/automations", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list automations: %d", w.Code)
	}
	var resp struct {
		Total  int `json:"total"`
		Active int `json:"active"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Active != 1 {
		t.Fatalf("stats wrong: %+v", resp)
	}
}

func TestEmotionTrendEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeLLM{fragments: []string{"ok"}})
	token := registerAndLogin(t, router)
	convID := createConversation(t, router, token)
	postChat(t, router, token, convID, "I am so happy today")

	w := doJSON(t, router, http.MethodGet, "/api/emotions/trend?hours=24", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("trend: %d %s", w.Code, w.Body.String())
	}
	var trend struct {
		Samples int `json:"samples"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &trend); err != nil {
		t.Fatalf("decode trend: %v", err)
	}
	if trend.Samples != 1 {
		t.Fatalf("want 1 sample, got %d", trend.Samples)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	router := newTestRouter(t, nil)
	token := registerAndLogin(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/user/profile", token, map[string]interface{}{
		"display_name": "Alice", "timezone": "Europe/Oslo",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update profile: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/user/profile", token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Alice") {
		t.Fatalf("get profile: %d %s", w.Code, w.Body.String())
	}
}
