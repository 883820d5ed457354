package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/roomcast/roomcast-server/internal/core"
)

// APIHandlers provides HTTP handlers for the REST endpoints.
type APIHandlers struct {
	table *core.Table
	log   *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(table *core.Table, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		table: table,
		log:   logger,
	}
}

// RoomResponse represents a live room in API responses.
type RoomResponse struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// RoomsResponse wraps the room listing.
type RoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Rooms lists rooms that currently have members, sorted by name.
// GET /api/rooms
func (h *APIHandlers) Rooms(c *gin.Context) {
	rooms := lo.Map(h.table.Snapshot(), func(info core.RoomInfo, _ int) RoomResponse {
		return RoomResponse{Name: info.Name, Members: info.Members}
	})
	c.JSON(http.StatusOK, RoomsResponse{Rooms: rooms})
}

// Index serves the built-in browser client.
// GET /
func (h *APIHandlers) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}
