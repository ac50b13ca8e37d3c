package dataservice

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// ChangeEvent is one row-change notification from the push feed.
type ChangeEvent struct {
	Type  EventType       `json:"event"`
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

type ChannelStatus string

const (
	StatusSubscribed ChannelStatus = "subscribed"
	StatusClosed     ChannelStatus = "closed"
	StatusError      ChannelStatus = "error"
)

// Channel is one live change subscription. Confirmation on Status is
// advisory: a channel may silently die, so consumers keep a polling fallback
// regardless.
type Channel interface {
	Events() <-chan ChangeEvent
	Status() <-chan ChannelStatus
	Close() error
}

// Realtime opens change subscriptions for a table filtered by an equality
// predicate on one column. Implementations are chosen once at startup.
type Realtime interface {
	Subscribe(ctx context.Context, table, column, value string) (Channel, error)
}

type wsRealtime struct {
	url   string
	token string
}

// NewRealtime returns the websocket-backed Realtime for the client's backend.
func NewRealtime(c *Client) Realtime {
	u := c.realtimeURL
	if u == "" {
		u = strings.Replace(c.baseURL, "http", "ws", 1) + "/realtime/v1"
	}
	return &wsRealtime{url: u, token: c.token}
}

type subscribeFrame struct {
	Type   string `json:"type"`
	Table  string `json:"table"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

type feedFrame struct {
	Type  string          `json:"type"`
	Event EventType       `json:"event,omitempty"`
	Table string          `json:"table,omitempty"`
	Row   json.RawMessage `json:"row,omitempty"`
}

func (r *wsRealtime) Subscribe(ctx context.Context, table, column, value string) (Channel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	header := http.Header{"Authorization": []string{"Bearer " + r.token}}
	conn, _, err := dialer.DialContext(ctx, r.url, header)
	if err != nil {
		return nil, err
	}
	ch := &wsChannel{
		conn:   conn,
		events: make(chan ChangeEvent, 32),
		status: make(chan ChannelStatus, 4),
	}
	if err := conn.WriteJSON(subscribeFrame{Type: "subscribe", Table: table, Column: column, Value: value}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	go ch.readLoop()
	return ch, nil
}

type wsChannel struct {
	conn      *websocket.Conn
	events    chan ChangeEvent
	status    chan ChannelStatus
	closeOnce sync.Once
	closedMu  sync.Mutex
	closed    bool
}

func (c *wsChannel) Events() <-chan ChangeEvent   { return c.events }
func (c *wsChannel) Status() <-chan ChannelStatus { return c.status }

func (c *wsChannel) readLoop() {
	defer close(c.events)
	for {
		var frame feedFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.closedMu.Lock()
			deliberate := c.closed
			c.closedMu.Unlock()
			if deliberate {
				c.pushStatus(StatusClosed)
			} else {
				c.pushStatus(StatusError)
			}
			return
		}
		switch frame.Type {
		case "subscribed":
			c.pushStatus(StatusSubscribed)
		case "event":
			select {
			case c.events <- ChangeEvent{Type: frame.Event, Table: frame.Table, Row: frame.Row}:
			default:
				// Slow consumer; the poller covers the gap.
			}
		}
	}
}

func (c *wsChannel) pushStatus(s ChannelStatus) {
	select {
	case c.status <- s:
	default:
	}
}

func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline)
		err = c.conn.Close()
	})
	return err
}

// AwaitSubscribed waits briefly for the channel to confirm subscription.
// A false return means the caller must rely on its polling fallback.
func AwaitSubscribed(ch Channel, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case s, ok := <-ch.Status():
			if !ok {
				return false
			}
			switch s {
			case StatusSubscribed:
				return true
			case StatusClosed, StatusError:
				return false
			}
		case <-timer.C:
			return false
		}
	}
}
