package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"points_bot/internal/model"
	"points_bot/pkg/auth"
	"points_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame pushed to mini-app clients.
type Message struct {
	Type    string        `json:"type"`
	Payload model.Outcome `json:"payload,omitempty"`
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Hub pushes notices to the mini-app sessions of a user. A user without an
// open session is skipped silently; a connection that fails to write is
// dropped.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[int64]map[*conn]struct{})}
}

func (h *Hub) Notify(_ context.Context, chatID int64, notice model.Outcome) error {
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.conns[chatID]))
	for c := range h.conns[chatID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	data, err := json.Marshal(Message{Type: notice.Kind(), Payload: notice})
	if err != nil {
		return err
	}

	for _, c := range targets {
		if err := c.write(data); err != nil {
			logger.Logger().Info("dropping websocket connection",
				zap.Int64("telegram_id", chatID),
				zap.Error(err))
			h.remove(chatID, c)
		}
	}
	return nil
}

// Sessions returns the number of open connections of telegramID.
func (h *Hub) Sessions(telegramID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[telegramID])
}

func (h *Hub) add(telegramID int64, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[telegramID] == nil {
		h.conns[telegramID] = make(map[*conn]struct{})
	}
	h.conns[telegramID][c] = struct{}{}
}

func (h *Hub) remove(telegramID int64, c *conn) {
	h.mu.Lock()
	set, ok := h.conns[telegramID]
	if ok {
		if _, ok = set[c]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.conns, telegramID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		c.ws.Close()
	}
}

func NewNoticeRoutes(handler *gin.RouterGroup, hub *Hub, a *auth.TelegramAuth) {
	handler.GET("/ws", a.TelegramAuthMiddleware(), hub.handleWebSocket)
}

func (h *Hub) handleWebSocket(c *gin.Context) {
	log := logger.Logger()

	user, ok := auth.UserFromContext(c)
	if !ok {
		log.Error("telegram user data not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	session := &conn{ws: ws}
	h.add(user.ID, session)

	go h.readLoop(user.ID, session)
}

// readLoop discards inbound frames; it only exists to notice the peer going
// away.
func (h *Hub) readLoop(telegramID int64, c *conn) {
	defer h.remove(telegramID, c)

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Logger().Info("websocket unexpected close", zap.Error(err))
			}
			return
		}
	}
}
