package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aurelia-labs/companion-backend/internal/services"
)

type MemoryHandler struct {
	memoryService services.MemoryService
}

func NewMemoryHandler(memoryService services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

func (h *MemoryHandler) List(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	query := c.Query("query")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit <= 0 {
		limit = 5
	}
	memories, err := h.memoryService.Retrieve(c.Request.Context(), rd.UserID, query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve memories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": memories})
}

func (h *MemoryHandler) Create(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	var req struct {
		Type       string  `json:"type"`
		Key        string  `json:"key"`
		Value      string  `json:"value"`
		Importance float64 `json:"importance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	memory, err := h.memoryService.Store(c.Request.Context(), rd.UserID, req.Type, req.Key, req.Value, req.Importance)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, memory)
}
