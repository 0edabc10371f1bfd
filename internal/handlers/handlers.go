package handlers

import (
	"time"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/config"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/signal"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/turn"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

type Handlers struct {
	config     *config.Config
	db         *gorm.DB
	turnServer *turn.Server
	relay      *signal.Relay
	hub        *Hub
	wsUpgrader websocket.Upgrader
	nowFn      func() time.Time
}

func New(cfg *config.Config, db *gorm.DB, turnServer *turn.Server, relay *signal.Relay, hub *Hub, upgrader websocket.Upgrader) *Handlers {
	return &Handlers{
		config:     cfg,
		db:         db,
		turnServer: turnServer,
		relay:      relay,
		hub:        hub,
		wsUpgrader: upgrader,
		nowFn:      time.Now,
	}
}
