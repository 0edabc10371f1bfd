package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/config"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/database"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/handlers"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/signal"
	"github.com/bablukpik/webrtc-saas-basic-backend/internal/turn"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const AppVersion = "1.0.0"

func main() {
	httpOnly := flag.Bool("http-only", false, "Run in backend-only mode (disable SSL/LE, use HTTP)")
	selfSigned := flag.Bool("self-signed", false, "Enable HTTPS using a generated self-signed certificate")
	flag.Parse()

	cfg := config.Load(httpOnly)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info(fmt.Sprintf("Signaling server v%s", AppVersion))

	if *httpOnly && cfg.FrontendURI == "" {
		logger.Error("FRONTEND_URI is required when --http-only is specified")
		return
	}

	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return
	}

	turnServer, err := turn.Initialize(cfg.TURNPort, cfg.TURNRealm, logger)
	if err != nil {
		logger.Error("failed to initialize TURN server", "error", err)
		return
	}
	defer turnServer.Close()

	logger.Info(fmt.Sprintf("TURN server started at port %d", cfg.TURNPort))

	relay := signal.NewRelay(
		signal.NewRegistry(),
		signal.NewSessionStore(),
		handlers.NewHistoryRecorder(db, logger),
		handlers.NewPusher(db, cfg.VAPIDKeys, logger),
		logger,
	)

	h := handlers.New(
		cfg,
		db,
		turnServer,
		relay,
		handlers.NewHub(),
		websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	)

	router := setupRouter(h, cfg, logger)

	startServer(router, cfg, *selfSigned, logger)
}

func setupRouter(h *handlers.Handlers, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(slogGinLogger(logger), gin.Recovery())

	// CORS middleware (for web app)
	router.Use(func(c *gin.Context) {
		origin := "*"
		if cfg.HTTPOnly && cfg.FrontendURI != "" {
			origin = cfg.FrontendURI
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.GET("/turn-config", h.GetTURNConfig)
		api.GET("/vapid-public-key", h.GetVAPIDPublicKey)
		api.GET("/ws", h.HandleWebSocket)
	}

	// Routes requiring a valid token
	auth := api.Group("")
	auth.Use(h.AuthMiddleware())
	{
		auth.GET("/auth/me", h.GetMe)
		auth.POST("/call/start", h.StartCall)
		auth.POST("/call/end", h.EndCall)
		auth.GET("/call/history", h.GetCallHistory)
		auth.POST("/push/subscribe", h.SubscribePush)
		auth.DELETE("/push/subscribe", h.UnsubscribePush)
	}

	return router
}
