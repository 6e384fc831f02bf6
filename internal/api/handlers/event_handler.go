package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aegis-waf/aegis/internal/services"
)

type EventHandler struct {
	Events *services.EventService
}

func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{Events: events}
}

// List returns recent security events, newest first.
func (h *EventHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := h.Events.ListRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

type FeedbackRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// Feedback attaches an operator verdict (confirmed_threat or benign) to
// an event, feeding the deployment promotion metrics.
func (h *EventHandler) Feedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.Events.Feedback(c.Param("uuid"), req.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidFeedback):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update event"})
		}
		return
	}
	c.JSON(http.StatusOK, event)
}
