// Package realtime upgrades staff connections to websockets and attaches
// them to the notification hub.
package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
	"github.com/Additional-Code/servio/internal/entity"
	"github.com/Additional-Code/servio/internal/notify"
	"github.com/Additional-Code/servio/internal/transport/http/middleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Hub is the part of the notification hub the websocket endpoint drives.
type Hub interface {
	Subscribe(userID int64, role entity.Role, sub notify.Subscriber)
	Unsubscribe(userID int64, sub notify.Subscriber)
	Pong(userID int64)
	SendStats(userID int64)
	SendError(userID int64, message string)
	Broadcast(from, message string)
}

// clientMessage is what a connected client may send.
type clientMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Handler serves the websocket endpoint.
type Handler struct {
	hub      Hub
	authn    *middleware.Authenticator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler constructs a realtime Handler.
func NewHandler(hub *notify.Hub, authn *middleware.Authenticator, cfg config.Config, logger *zap.Logger) *Handler {
	origins := make(map[string]bool, len(cfg.CORS.AllowedOrigins))
	for _, o := range cfg.CORS.AllowedOrigins {
		origins[strings.TrimRight(o, "/")] = true
	}
	return &Handler{
		hub:    hub,
		authn:  authn,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// Register mounts the websocket route. Authentication happens after the
// upgrade so failures can be reported with a policy-violation close.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/ws", h.serve)
}

func (h *Handler) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}

	_, user, err := h.authn.Resolve(c)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		return nil
	}

	sub := newSubscriber()
	h.hub.Subscribe(user.ID, user.Role, sub)
	h.logger.Info("realtime client connected",
		zap.Int64("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	go h.writePump(conn, sub)
	h.readPump(conn, sub, user)
	return nil
}

// readPump runs on the request goroutine until the client goes away.
func (h *Handler) readPump(conn *websocket.Conn, sub *wsSubscriber, user *entity.User) {
	defer func() {
		h.hub.Unsubscribe(user.ID, sub)
		sub.Close()
		_ = conn.Close()
		h.logger.Info("realtime client disconnected", zap.Int64("user_id", user.ID))
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("realtime read failed", zap.Int64("user_id", user.ID), zap.Error(err))
			}
			return
		}
		if sub.Closed() {
			return
		}
		h.dispatch(user, raw)
	}
}

// dispatch answers one client message.
func (h *Handler) dispatch(user *entity.User, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.hub.SendError(user.ID, "invalid message")
		return
	}
	switch msg.Type {
	case "ping":
		h.hub.Pong(user.ID)
	case "get_stats":
		h.hub.SendStats(user.ID)
	case "broadcast":
		if user.Role != entity.RoleAdmin {
			h.hub.SendError(user.ID, "only admins can broadcast")
			return
		}
		text := strings.TrimSpace(msg.Message)
		if text == "" {
			h.hub.SendError(user.ID, "broadcast message is empty")
			return
		}
		from := user.FullName
		if from == "" {
			from = user.Username
		}
		h.hub.Broadcast(from, text)
	default:
		h.hub.SendError(user.ID, "unknown message type")
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *wsSubscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				sub.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.Close()
				return
			}
		case <-sub.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
