package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallHistory is one recorded call. Rows are created either through the REST
// API or by the signaling relay at the call-start boundary; the end boundary
// fills EndTime.
type CallHistory struct {
	ID            string     `gorm:"type:varchar(100);primaryKey" json:"id"`
	InitiatorID   string     `gorm:"type:varchar(36);not null;index" json:"initiator_id"`
	ParticipantID string     `gorm:"type:varchar(36);not null;index" json:"participant_id"`
	CallType      string     `gorm:"type:varchar(20)" json:"call_type,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (c *CallHistory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
