package api

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/services"
	"chat-sync/session"
	"context"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// maxClientFrame bounds what a subscriber may send; the channel is server to client.
const maxClientFrame = 4 << 10

// SessionOpener binds a connection to a new session of a user.
type SessionOpener interface {
	Open(user domain.UserID, conn contract.Connection) *session.Session
}

type SubscribeHandler struct {
	log      *slog.Logger
	users    services.IUserService
	sessions SessionOpener
}

func NewSubscribeHandler(log *slog.Logger, users services.IUserService, sessions SessionOpener) *SubscribeHandler {
	return &SubscribeHandler{log: log, users: users, sessions: sessions}
}

// Subscribe handles GET /client/subscribe: it upgrades to a WebSocket and
// serves one session until either side goes away.
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if _, err := h.users.GetProfile(r.Context(), user); err != nil {
		fail(w, h.log, err)
		return
	}

	websocket.Handler(func(ws *websocket.Conn) {
		defer func() {
			_ = ws.Close()
		}()
		ws.MaxPayloadBytes = maxClientFrame
		conn := newConnection(ws)
		go conn.drain()

		h.sessions.Open(user, conn).Serve(ws.Request().Context())
	}).ServeHTTP(w, r)
}

// connection adapts a WebSocket to contract.Connection.
// Only the transport worker sends, so writes need no lock.
type connection struct {
	ws   *websocket.Conn
	done chan struct{}
	once sync.Once
}

func newConnection(ws *websocket.Conn) *connection {
	return &connection{ws: ws, done: make(chan struct{})}
}

// Send writes one text frame, bounded by the deadline of ctx.
func (c *connection) Send(ctx context.Context, payload []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.ws.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	if err := websocket.Message.Send(c.ws, string(payload)); err != nil {
		c.close()
		return err
	}
	return nil
}

func (c *connection) Done() <-chan struct{} {
	return c.done
}

// drain discards client frames until the peer goes away.
func (c *connection) drain() {
	defer c.close()
	for {
		var frame string
		if err := websocket.Message.Receive(c.ws, &frame); err != nil {
			return
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() { close(c.done) })
}
