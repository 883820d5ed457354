package http

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomcast/roomcast-server/internal/config"
	"github.com/roomcast/roomcast-server/internal/core"
)

// writeTimeout bounds a single frame write so a wedged peer cannot hold a
// session's write pump forever.
const writeTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and bridges them to core sessions.
type WSHandler struct {
	table *core.Table
	opts  core.Options
	limit int64
	log   *zerolog.Logger
}

// NewWSHandler builds the WebSocket handler backing /chat/:room.
func NewWSHandler(table *core.Table, cfg config.SessionConfig, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		table: table,
		opts: core.Options{
			QueueSize:         cfg.QueueSize,
			FatalSubmitErrors: cfg.FatalSubmitErrors,
		},
		limit: cfg.MaxMessageBytes,
		log:   logger,
	}
}

// Serve handles GET /chat/:room. It upgrades the connection and blocks for
// the lifetime of the session.
func (h *WSHandler) Serve(c *gin.Context) {
	room := c.Param("room")

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.limit > 0 {
		conn.SetReadLimit(h.limit)
	}

	session := core.NewSession(h.table, newWSConn(conn, c.Request.RemoteAddr), room, h.opts, h.log)

	if err := session.Run(c.Request.Context()); err != nil && !isExpectedClose(err) {
		h.log.Warn().Err(err).Str("room", room).Msg("ws connection closed with error")
	}
}

// isExpectedClose reports whether err is a routine way for a session to end
// rather than something worth a warning.
func isExpectedClose(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

// wsConn adapts a websocket connection to core.Conn. Payload bytes pass
// through untouched in both directions.
type wsConn struct {
	conn   *websocket.Conn
	remote string
}

func newWSConn(conn *websocket.Conn, remote string) *wsConn {
	return &wsConn{conn: conn, remote: remote}
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}

func (c *wsConn) RemoteAddr() string { return c.remote }
