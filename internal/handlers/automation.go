package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aurelia-labs/companion-backend/internal/services"
)

type AutomationHandler struct {
	automationService services.AutomationService
}

func NewAutomationHandler(automationService services.AutomationService) *AutomationHandler {
	return &AutomationHandler{automationService: automationService}
}

func (h *AutomationHandler) List(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	automations, stats, err := h.automationService.ListWithStats(c.Request.Context(), rd.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list automations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"automations":    automations,
		"total":          stats.Total,
		"active":         stats.Active,
		"total_triggers": stats.TotalTriggers,
	})
}

func (h *AutomationHandler) Create(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	var req struct {
		Name          string                      `json:"name"`
		TriggerPhrase string                      `json:"trigger_phrase"`
		Actions       []services.ActionDescriptor `json:"actions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	automation, err := h.automationService.Create(c.Request.Context(), rd.UserID, req.Name, req.TriggerPhrase, req.Actions)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, automation)
}
