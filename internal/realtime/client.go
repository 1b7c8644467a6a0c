package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/middleware"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/internal/team"
	"github.com/teamfaces/teamfaces/pkg/response"
)

const (
	EventRoster = "roster"
	EventError  = "error"

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RosterPayload is the data of a roster event: the team header and the full member set.
type RosterPayload struct {
	Team    *models.Team    `json:"team"`
	Members []models.Member `json:"members"`
}

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// RosterSource is what a board feed reads from. *team.Repository satisfies it.
type RosterSource interface {
	GetTeam(ctx context.Context) (*models.Team, error)
	SubscribeMembers(ctx context.Context) (*team.Subscription, error)
}

// Client is a single projection board connection.
type Client struct {
	ID     string
	UserID uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	cancel context.CancelFunc
	once   sync.Once
	logger *zap.Logger
}

// ServeRoster upgrades to a WebSocket and streams roster snapshots until either side hangs up.
// Mount it behind OptionalJWT and the route guard.
func ServeRoster(hub *Hub, source RosterSource, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := middleware.IdentityFrom(c)
		if ident == nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		t, err := source.GetTeam(ctx)
		if err != nil {
			cancel()
			team.WriteError(c, err, "failed to load team")
			return
		}
		sub, err := source.SubscribeMembers(ctx)
		if err != nil {
			cancel()
			logger.Error("roster subscribe failed", zap.Error(err))
			response.Internal(c, "failed to subscribe to roster")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			sub.Close()
			cancel()
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			UserID: ident.ID,
			hub:    hub,
			conn:   conn,
			send:   make(chan WSMessage, 16),
			cancel: cancel,
			logger: logger,
		}
		hub.Register(client)
		go client.pumpSnapshots(ctx, source, t, sub)
		go client.writePump(ctx)
		client.readPump()
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// pumpSnapshots forwards every snapshot as a roster event and owns the subscription.
func (c *Client) pumpSnapshots(ctx context.Context, source RosterSource, t *models.Team, sub *team.Subscription) {
	defer sub.Close()
	for snap := range sub.C() {
		if snap.Err != nil {
			c.logger.Warn("roster feed failed", zap.String("client_id", c.ID), zap.Error(snap.Err))
			c.enqueue(ctx, EventError, ErrorPayload{Message: snap.Err.Error()})
			return
		}
		if latest, err := source.GetTeam(ctx); err == nil {
			t = latest
		}
		members := snap.Members
		if members == nil {
			members = []models.Member{}
		}
		if !c.enqueue(ctx, EventRoster, RosterPayload{Team: t, Members: members}) {
			return
		}
	}
}

func (c *Client) enqueue(ctx context.Context, event string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})
	for {
		// Boards only listen; inbound frames just keep the connection alive.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			if msg.Event == EventError {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "roster feed ended"))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
