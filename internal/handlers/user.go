package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/aurelia-labs/companion-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	profile, err := h.userService.GetProfile(c.Request.Context(), rd.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	var req struct {
		DisplayName string         `json:"display_name"`
		Timezone    string         `json:"timezone"`
		Preferences datatypes.JSON `json:"preferences"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	profile, err := h.userService.UpdateProfile(c.Request.Context(), rd.UserID, req.DisplayName, req.Timezone, req.Preferences)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) DashboardStats(c *gin.Context) {
	rd, ok := callerData(c)
	if !ok {
		return
	}
	stats, err := h.userService.DashboardStats(c.Request.Context(), rd.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
