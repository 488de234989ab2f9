package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ryanhackme1207/Everspace/internal/chat"
	"github.com/ryanhackme1207/Everspace/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn adapts a websocket to chat.Conn: buffered outbound queue drained by
// writePump, TrySend drops on backpressure instead of blocking the session.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWsConn(conn *websocket.Conn, queue int) *wsConn {
	return &wsConn{conn: conn, send: make(chan []byte, queue)}
}

func (c *wsConn) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

// writeNow bypasses the queue for frames that must reach the wire before the
// socket closes. Only safe while nothing is queued for writePump.
func (c *wsConn) writeNow(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// ChatWSController upgrades /ws/chat/:room and runs one session per socket.
type ChatWSController struct {
	Deps      chat.Deps
	ReadLimit int64
	SendQueue int
}

func (ctl *ChatWSController) HandleChat(ctx context.Context, c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	roomName := c.Param("room")

	// A password supplied earlier in this logical session (via the join
	// endpoint) unlocks the private room for this connection too.
	sess := sessions.Default(c)
	unlocked, _ := sess.Get(unlockKey(roomName)).(bool)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := newWsConn(ws, ctl.SendQueue)
	session := chat.NewSession(ctl.Deps, conn, user, roomName, unlocked)

	connCtx, cancel := context.WithCancel(ctx)

	go ctl.writePump(connCtx, conn)

	if err := session.Connect(connCtx); err != nil {
		ctl.rejectConnect(conn, err)
		cancel()
		return
	}

	go func() {
		defer cancel()
		ctl.readPump(connCtx, session, conn)
		session.Disconnect()
	}()
}

// rejectConnect sends the terminal notice for a failed attempt, then closes.
// Nothing has been queued for writePump on this path, so the direct write
// cannot race it.
func (ctl *ChatWSController) rejectConnect(conn *wsConn, err error) {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		_ = conn.writeNow(map[string]any{"type": "error", "error": "room_not_found"})
	case errors.Is(err, chat.ErrBanned):
		_ = conn.writeNow(map[string]any{"type": "user_banned", "message": "You are banned from this room."})
	case errors.Is(err, chat.ErrUnauthenticated):
	default:
		log.Error().Err(err).Str("module", "adapters.ws").Msg("connect failed")
		_ = conn.writeNow(map[string]any{"type": "error", "error": "connect_failed"})
	}
	conn.Close()
}

func (ctl *ChatWSController) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *ChatWSController) readPump(ctx context.Context, session *chat.Session, c *wsConn) {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			session.HandleFrame(data)
		}
	}
}

func currentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok
}

func unlockKey(room string) string {
	return "room_unlocked_" + room
}
