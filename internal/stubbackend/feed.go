package stubbackend

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"align-five/internal/dataservice"
)

// feedHub fans row-change events out to websocket subscribers. Each
// connection carries exactly one (table, column, value) subscription,
// mirroring the hosted service's channel-per-filter model.
type feedHub struct {
	mu       sync.Mutex
	subs     map[*feedSub]struct{}
	upgrader websocket.Upgrader
}

type feedSub struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	table   string
	column  string
	value   string
}

func newFeedHub() *feedHub {
	return &feedHub{
		subs:     map[*feedSub]struct{}{},
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

type wireFrame struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Table string `json:"table,omitempty"`
	Row   any    `json:"row,omitempty"`
}

type wireSubscribe struct {
	Type   string `json:"type"`
	Table  string `json:"table"`
	Column string `json:"column"`
	Value  string `json:"value"`
}

func (h *feedHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var sub wireSubscribe
	if err := conn.ReadJSON(&sub); err != nil || sub.Type != "subscribe" {
		return
	}
	fs := &feedSub{conn: conn, table: sub.Table, column: sub.Column, value: sub.Value}

	h.mu.Lock()
	h.subs[fs] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.subs, fs)
		h.mu.Unlock()
	}()

	fs.writeMu.Lock()
	ackErr := conn.WriteJSON(wireFrame{Type: "subscribed"})
	fs.writeMu.Unlock()
	if ackErr != nil {
		return
	}

	// Drain until the peer goes away; events flow from Broadcast.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast delivers a row change to every subscriber whose filter matches.
// A failed write just drops that subscriber's delivery; its connection will
// die on its own read loop.
func (h *feedHub) Broadcast(event dataservice.EventType, table string, row any) {
	m := toMap(row)
	h.mu.Lock()
	subs := make([]*feedSub, 0, len(h.subs))
	for fs := range h.subs {
		if fs.table != table {
			continue
		}
		if fs.column != "" && fieldString(m, fs.column) != fs.value {
			continue
		}
		subs = append(subs, fs)
	}
	h.mu.Unlock()

	frame := wireFrame{Type: "event", Event: string(event), Table: table, Row: m}
	for _, fs := range subs {
		fs.writeMu.Lock()
		if err := fs.conn.WriteJSON(frame); err != nil {
			log.Debug().Err(err).Str("table", table).Msg("feed write failed")
		}
		fs.writeMu.Unlock()
	}
}

// CloseAll drops every live subscriber, used by tests to simulate silent
// channel death.
func (h *feedHub) CloseAll() {
	h.mu.Lock()
	subs := make([]*feedSub, 0, len(h.subs))
	for fs := range h.subs {
		subs = append(subs, fs)
	}
	h.subs = map[*feedSub]struct{}{}
	h.mu.Unlock()
	for _, fs := range subs {
		_ = fs.conn.Close()
	}
}
