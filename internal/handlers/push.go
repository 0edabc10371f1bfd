package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/config"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PushSubscribeKeys struct {
	P256DH string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type PushSubscribeRequest struct {
	Endpoint string            `json:"endpoint" binding:"required"`
	Keys     PushSubscribeKeys `json:"keys" binding:"required"`
}

func (h *Handlers) GetVAPIDPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publicKey": h.config.VAPIDKeys.PublicKey})
}

// SubscribePush stores the browser's push subscription, replacing any
// previous ones for the user.
func (h *Handlers) SubscribePush(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var req PushSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.db.Where("user_id = ?", userID).Delete(&models.PushSubscription{})

	subscription := models.PushSubscription{
		UserID:   userID.(string),
		Endpoint: req.Endpoint,
		P256DH:   req.Keys.P256DH,
		Auth:     req.Keys.Auth,
	}
	if err := h.db.Create(&subscription).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, subscription)
}

func (h *Handlers) UnsubscribePush(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var subscription models.PushSubscription
	if err := h.db.Where("user_id = ? AND endpoint = ?", userID, req.Endpoint).First(&subscription).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if err := h.db.Delete(&subscription).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed"})
}

// Pusher sends web push notifications. It implements the relay's Notifier
// port for the incoming-call wake-up.
type Pusher struct {
	db     *gorm.DB
	vapid  *config.VAPIDKeys
	logger *slog.Logger
}

func NewPusher(db *gorm.DB, vapid *config.VAPIDKeys, logger *slog.Logger) *Pusher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pusher{db: db, vapid: vapid, logger: logger}
}

func (p *Pusher) IncomingCall(targetUserID, callerID, callerName string) {
	caller := callerName
	if caller == "" {
		caller = callerID
	}
	go p.send(targetUserID, "Incoming call", fmt.Sprintf("%s is calling you", caller), map[string]any{
		"caller_id": callerID,
	})
}

func (p *Pusher) send(userID, title, body string, data map[string]any) {
	var subscriptions []models.PushSubscription
	if err := p.db.Where("user_id = ?", userID).Find(&subscriptions).Error; err != nil {
		p.logger.Warn("push subscription lookup failed", "user_id", userID, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"title":   title,
		"body":    body,
		"data":    data,
		"urgency": "high",
	})
	if err != nil {
		return
	}

	for _, sub := range subscriptions {
		resp, err := webpush.SendNotification(payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256DH,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      p.vapid.Subject,
			VAPIDPublicKey:  p.vapid.PublicKey,
			VAPIDPrivateKey: p.vapid.PrivateKey,
			TTL:             30,
		})
		if err != nil {
			p.logger.Warn("push send failed", "user_id", userID, "error", err)
			continue
		}

		// Gone subscriptions are dropped so we stop retrying them.
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			p.db.Delete(&sub)
		}
		resp.Body.Close()
	}
}
