package realtime

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/listsync/internal/domain/errs"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Command is an inbound client message.
type Command struct {
	Type    string          `json:"type"`
	ScopeID json.RawMessage `json:"scopeId,omitempty"`
	ListID  json.RawMessage `json:"listId,omitempty"`
}

type controlReply struct {
	ScopeID int64  `json:"scopeId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WSHandler upgrades HTTP requests to websocket connections registered with
// the broadcaster's registry.
type WSHandler struct {
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

// NewWSHandler builds the upgrade handler. An empty allowedOrigins list
// accepts only same-host origins; "*" accepts any origin.
func NewWSHandler(b *Broadcaster, allowedOrigins []string, logger zerolog.Logger) *WSHandler {
	h := &WSHandler{
		broadcaster: b,
		logger:      logger.With().Str("component", "ws").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla default: same host only
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	registry := h.broadcaster.Registry()
	conn := registry.Connect()
	logger := h.logger.With().Str("conn_id", conn.ID()).Logger()
	logger.Info().Str("remote_addr", r.RemoteAddr).Msg("client connected")

	go h.writePump(ws, conn, logger)
	h.readPump(ws, conn, logger)

	registry.Disconnect(conn.ID())
	logger.Info().Msg("client disconnected")
}

// readPump processes inbound commands until the socket errors or closes.
func (h *WSHandler) readPump(ws *websocket.Conn, conn *Conn, logger zerolog.Logger) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
		h.handleCommand(conn.ID(), bytes.TrimSpace(msg), logger)
	}
}

func (h *WSHandler) handleCommand(connID string, msg []byte, logger zerolog.Logger) {
	var cmd Command
	if err := json.Unmarshal(msg, &cmd); err != nil {
		h.reply(connID, "error", controlReply{Error: "malformed command"})
		return
	}

	raw := cmd.ScopeID
	if len(raw) == 0 {
		raw = cmd.ListID
	}
	scopeID, ok := parseScopeID(raw)

	var (
		err   error
		event string
	)
	switch cmd.Type {
	case "join", "join_list":
		event = "joined"
		if !ok {
			err = errs.Validation("scopeId", "scopeId must be a positive integer")
			break
		}
		err = h.broadcaster.Join(connID, scopeID)
	case "leave", "leave_list":
		event = "left"
		if !ok {
			err = errs.Validation("scopeId", "scopeId must be a positive integer")
			break
		}
		err = h.broadcaster.Leave(connID, scopeID)
	default:
		h.reply(connID, "error", controlReply{Error: "unknown command type"})
		return
	}

	if err != nil {
		logger.Debug().Err(err).Str("type", cmd.Type).Msg("command rejected")
		h.reply(connID, "error", controlReply{ScopeID: scopeID, Error: err.Error()})
		return
	}
	h.reply(connID, event, controlReply{ScopeID: scopeID})
}

func (h *WSHandler) reply(connID, event string, body controlReply) {
	data, _ := json.Marshal(body)
	_ = h.broadcaster.Registry().SendDirect(connID, Envelope{
		Channel: ControlChannel,
		Event:   event,
		Data:    data,
		SentAt:  time.Now().UTC(),
	})
}

// parseScopeID accepts either a JSON number or a numeric string.
func parseScopeID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	s := string(raw)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// writePump drains the connection's queue onto the socket and keeps it alive
// with pings. It exits when the queue is closed by Disconnect.
func (h *WSHandler) writePump(ws *websocket.Conn, conn *Conn, logger zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg, ok := <-conn.Send():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
