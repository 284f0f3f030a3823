package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aurelia-labs/companion-backend/internal/services"
)

type ProactiveHandler struct {
	proactiveService services.ProactiveService
	emotionService   services.EmotionService
}

func NewProactiveHandler(proactiveService services.ProactiveService, emotionService services.EmotionService) *ProactiveHandler {
	return &ProactiveHandler{
		proactiveService: proactiveService,
		emotionService:   emotionService,
	}
}

func (h *ProactiveHandler) Suggestions(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	message := c.Query("message")

	scores, ok := h.emotionService.Latest(c.Request.Context(), rd.UserID)
	if !ok {
		scores = services.EmotionScores{Neutral: 1}
	}

	suggestions := h.proactiveService.Suggest(c.Request.Context(), rd.UserID, message, scores)
	if suggestions == nil {
		suggestions = []services.Suggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
