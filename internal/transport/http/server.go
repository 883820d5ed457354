package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomcast/roomcast-server/internal/config"
	"github.com/roomcast/roomcast-server/internal/core"
)

// NewServer builds the HTTP server exposing the relay:
//
//	GET /            built-in browser client
//	GET /health      liveness probe
//	GET /api/rooms   live rooms with member counts
//	GET /chat/:room  WebSocket relay endpoint
func NewServer(table *core.Table, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(LoggerMiddleware(logger), gin.Recovery())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "not found"})
	})

	api := NewAPIHandlers(table, logger)
	router.GET("/", api.Index)
	router.GET("/health", api.Health)
	router.GET("/api/rooms", api.Rooms)

	ws := NewWSHandler(table, cfg.Session, logger)
	router.GET("/chat/:room", ws.Serve)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
