package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/services"
)

const maxImageBytes = 8 << 20

type ChatHandler struct {
	log              *logger.Logger
	turnService      services.TurnService
	conversationRepo repos.ConversationRepo
}

func NewChatHandler(log *logger.Logger, turnService services.TurnService, conversationRepo repos.ConversationRepo) *ChatHandler {
	return &ChatHandler{
		log:              log.With("handler", "ChatHandler"),
		turnService:      turnService,
		conversationRepo: conversationRepo,
	}
}

// Chat accepts a multipart turn and replies as a text/event-stream.
// All validation happens before the first byte of the stream.
func (ch *ChatHandler) Chat(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}

	prompt := strings.TrimSpace(c.PostForm("prompt"))
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	conversationIDRaw := c.PostForm("conversation_id")
	conversationID, err := strconv.ParseUint(conversationIDRaw, 10, 64)
	if err != nil || conversationID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
		return
	}

	if _, err := ch.conversationRepo.GetForUser(c.Request.Context(), nil, uint(conversationID), rd.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	var image *services.ImageAttachment
	if fileHeader, err := c.FormFile("image"); err == nil && fileHeader != nil {
		if fileHeader.Size > maxImageBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image too large"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
			return
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
			return
		}
		mime := fileHeader.Header.Get("Content-Type")
		if mime == "" {
			mime = http.DetectContentType(data)
		}
		image = &services.ImageAttachment{MIME: mime, Data: data}
	}

	stream := ch.turnService.Run(c.Request.Context(), services.TurnInput{
		UserID:         rd.UserID,
		ConversationID: uint(conversationID),
		Prompt:         prompt,
		Image:          image,
	})

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			// Dropped connection just stops delivery; in-flight
			// persistence stands.
			stream.Cancel()
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			if err := ev.WriteTo(c.Writer); err != nil {
				stream.Cancel()
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
