package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/config"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/database"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/signal"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var testBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestHandlers(t *testing.T) (*Handlers, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatalf("initialize database: %v", err)
	}

	cfg := &config.Config{
		JWTSecret: "test-secret",
		TURNPort:  3478,
		VAPIDKeys: &config.VAPIDKeys{
			PublicKey:  "test-public",
			PrivateKey: "test-private",
			Subject:    "mailto:test@example.com",
		},
	}

	relay := signal.NewRelay(
		signal.NewRegistry(),
		signal.NewSessionStore(),
		NewHistoryRecorder(db, slog.Default()),
		nil,
		slog.Default(),
	)

	h := New(cfg, db, nil, relay, NewHub(), websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	})
	h.nowFn = func() time.Time { return testBase }

	router := gin.New()
	api := router.Group("/api")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/vapid-public-key", h.GetVAPIDPublicKey)
	api.GET("/ws", h.HandleWebSocket)

	auth := api.Group("")
	auth.Use(h.AuthMiddleware())
	auth.GET("/auth/me", h.GetMe)
	auth.POST("/call/start", h.StartCall)
	auth.POST("/call/end", h.EndCall)
	auth.GET("/call/history", h.GetCallHistory)
	auth.POST("/push/subscribe", h.SubscribePush)
	auth.DELETE("/push/subscribe", h.UnsubscribePush)

	return h, router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return body
}
