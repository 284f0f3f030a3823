package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/services"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

type ConversationHandler struct {
	conversationRepo repos.ConversationRepo
	messageRepo      repos.MessageRepo
	userService      services.UserService
}

func NewConversationHandler(conversationRepo repos.ConversationRepo, messageRepo repos.MessageRepo, userService services.UserService) *ConversationHandler {
	return &ConversationHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userService:      userService,
	}
}

func (h *ConversationHandler) List(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	conversations, err := h.conversationRepo.ListByUser(c.Request.Context(), nil, rd.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *ConversationHandler) Create(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	conversation := &types.Conversation{UserID: rd.UserID, Title: "New Conversation"}
	if _, err := h.conversationRepo.Create(c.Request.Context(), nil, conversation); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
		return
	}
	c.JSON(http.StatusCreated, conversation)
}

func (h *ConversationHandler) Messages(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	conversationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	if _, err := h.conversationRepo.GetForUser(c.Request.Context(), nil, uint(conversationID), rd.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}
	messages, err := h.messageRepo.ListByConversation(c.Request.Context(), nil, uint(conversationID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ConversationHandler) Export(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	export, err := h.userService.ExportConversations(c.Request.Context(), rd.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export conversations"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="conversations.json"`)
	c.JSON(http.StatusOK, gin.H{"conversations": export})
}
