package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	goredis "github.com/aurelia-labs/companion-backend/internal/clients/redis"
	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/services"
)

type EmotionHandler struct {
	log            *logger.Logger
	emotionService services.EmotionService
	trendCache     *goredis.TrendCache
}

func NewEmotionHandler(log *logger.Logger, emotionService services.EmotionService, trendCache *goredis.TrendCache) *EmotionHandler {
	return &EmotionHandler{
		log:            log.With("handler", "EmotionHandler"),
		emotionService: emotionService,
		trendCache:     trendCache,
	}
}

func (h *EmotionHandler) Trend(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	if cached, ok := h.trendCache.Get(c.Request.Context(), rd.UserID, hours); ok {
		c.Data(http.StatusOK, "application/json", cached)
		return
	}

	trend, err := h.emotionService.Trend(c.Request.Context(), rd.UserID, hours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute emotion trend"})
		return
	}
	payload, err := json.Marshal(trend)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode emotion trend"})
		return
	}
	h.trendCache.Set(c.Request.Context(), rd.UserID, hours, payload)
	c.Data(http.StatusOK, "application/json", payload)
}
