package handlers

import (
	"errors"
	"net/http"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type StartCallRequest struct {
	InitiatorID   string `json:"initiator_id" binding:"required"`
	ParticipantID string `json:"participant_id" binding:"required"`
	CallType      string `json:"call_type" binding:"required,oneof=audio video"`
}

type EndCallRequest struct {
	CallID string `json:"call_id" binding:"required"`
}

func (h *Handlers) StartCall(c *gin.Context) {
	var req StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := models.CallHistory{
		InitiatorID:   req.InitiatorID,
		ParticipantID: req.ParticipantID,
		CallType:      req.CallType,
		StartTime:     h.nowFn(),
	}
	if err := h.db.Create(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record call"})
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *Handlers) EndCall(c *gin.Context) {
	var req EndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var record models.CallHistory
	if err := h.db.First(&record, "id = ?", req.CallID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	now := h.nowFn()
	record.EndTime = &now
	if err := h.db.Save(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record call end"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetCallHistory lists calls the authenticated user took part in, newest
// first.
func (h *Handlers) GetCallHistory(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var records []models.CallHistory
	if err := h.db.
		Where("initiator_id = ? OR participant_id = ?", userID, userID).
		Order("start_time DESC").
		Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, records)
}
