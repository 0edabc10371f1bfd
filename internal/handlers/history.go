package handlers

import (
	"log/slog"
	"time"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/models"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/signal"

	"gorm.io/gorm"
)

// HistoryRecorder persists call boundaries for the signaling relay. Every
// write runs in its own goroutine and failures are logged, never returned:
// history must not block or break signaling.
type HistoryRecorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewHistoryRecorder(db *gorm.DB, logger *slog.Logger) *HistoryRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryRecorder{db: db, logger: logger}
}

func (r *HistoryRecorder) CallStarted(session signal.CallSession) {
	go func() {
		record := models.CallHistory{
			ID:            session.CallID,
			InitiatorID:   session.CallerID,
			ParticipantID: session.TargetUserID,
			StartTime:     session.StartTime,
		}
		if err := r.db.Create(&record).Error; err != nil {
			r.logger.Warn("call history write failed", "call_id", session.CallID, "error", err)
		}
	}()
}

func (r *HistoryRecorder) CallEnded(session signal.CallSession, endTime time.Time) {
	go func() {
		err := r.db.Model(&models.CallHistory{}).
			Where("id = ?", session.CallID).
			Update("end_time", endTime).Error
		if err != nil {
			r.logger.Warn("call history update failed", "call_id", session.CallID, "error", err)
		}
	}()
}
