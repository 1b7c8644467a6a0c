package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teamfaces/teamfaces/internal/models"
)

// ErrFeedClosed is delivered when the server ends the roster feed without an error event.
var ErrFeedClosed = errors.New("roster feed closed")

// Roster is one live snapshot: the team header and every member. Err is set on the final
// value of a failed feed.
type Roster struct {
	Team    *models.Team
	Members []models.Member
	Err     error
}

type wsMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Watch is a live roster feed over a websocket. C is closed after the feed ends.
// C is unbuffered: a snapshot is handed over only while the consumer is receiving.
type Watch struct {
	conn  *websocket.Conn
	c     chan Roster
	done  chan struct{}
	ended chan struct{}
	once  sync.Once
}

// WatchMembers opens the live roster feed.
func (c *Client) WatchMembers(ctx context.Context) (*Watch, error) {
	u, err := url.Parse(c.baseURL + "/ws/roster")
	if err != nil {
		return nil, fmt.Errorf("client.WatchMembers: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.Token())
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, fmt.Errorf("client.WatchMembers: %w", &HTTPError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)})
		}
		return nil, fmt.Errorf("client.WatchMembers: %w", err)
	}

	w := &Watch{conn: conn, c: make(chan Roster), done: make(chan struct{}), ended: make(chan struct{})}
	go w.read()
	go func() {
		select {
		case <-ctx.Done():
			w.Close()
		case <-w.done:
		case <-w.ended:
		}
	}()
	return w, nil
}

// C returns the snapshot channel.
func (w *Watch) C() <-chan Roster { return w.c }

// Close ends the feed and waits for the reader to stop. No snapshots are delivered
// after Close returns, and C is closed by then.
func (w *Watch) Close() {
	w.once.Do(func() {
		close(w.done)
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = w.conn.Close()
	})
	<-w.ended
}

func (w *Watch) read() {
	defer close(w.ended)
	defer close(w.c)
	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.deliver(Roster{Err: ErrFeedClosed})
			} else {
				w.deliver(Roster{Err: fmt.Errorf("roster feed: %w", err)})
			}
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Event {
		case "roster":
			var r struct {
				Team    *models.Team    `json:"team"`
				Members []models.Member `json:"members"`
			}
			if err := json.Unmarshal(msg.Data, &r); err != nil {
				continue
			}
			if !w.deliver(Roster{Team: r.Team, Members: r.Members}) {
				return
			}
		case "error":
			var e struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(msg.Data, &e)
			w.deliver(Roster{Err: errors.New(strings.TrimSpace("roster feed: " + e.Message))})
			return
		}
	}
}

// deliver hands r to the consumer unless the watch was closed.
func (w *Watch) deliver(r Roster) bool {
	select {
	case <-w.done:
		return false
	default:
	}
	select {
	case w.c <- r:
		return true
	case <-w.done:
		return false
	}
}
