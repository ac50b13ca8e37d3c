package stubbackend

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"align-five/internal/dataservice"
)

// Store is the in-memory data plane behind the stub backend. It mirrors the
// hosted service's collections and pushes row changes into the feed hub.
type Store struct {
	mu          sync.Mutex
	invitations map[string]*dataservice.Invitation
	series      map[string]*dataservice.Series
	parties     map[string]*dataservice.Party
	games       map[string]*dataservice.Game
	movesByGame map[string][]dataservice.Move
	profiles    map[string]*dataservice.Profile

	feed *feedHub
}

func newStore(feed *feedHub) *Store {
	return &Store{
		invitations: map[string]*dataservice.Invitation{},
		series:      map[string]*dataservice.Series{},
		parties:     map[string]*dataservice.Party{},
		games:       map[string]*dataservice.Game{},
		movesByGame: map[string][]dataservice.Move{},
		profiles:    map[string]*dataservice.Profile{},
		feed:        feed,
	}
}

func (s *Store) seedProfile(id, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id] = &dataservice.Profile{ID: id, DisplayName: displayName}
}

// rowsLocked returns copies of every row in a table, marshaled generically so
// the filter layer can treat all tables alike.
func (s *Store) rowsLocked(table string) []any {
	var out []any
	switch table {
	case "invitations":
		for _, r := range s.invitations {
			out = append(out, *r)
		}
	case "series":
		for _, r := range s.series {
			out = append(out, *r)
		}
	case "parties":
		for _, r := range s.parties {
			out = append(out, *r)
		}
	case "games":
		for _, r := range s.games {
			out = append(out, *r)
		}
	case "moves":
		for _, moves := range s.movesByGame {
			for _, mv := range moves {
				out = append(out, mv)
			}
		}
	case "profiles":
		for _, r := range s.profiles {
			out = append(out, *r)
		}
	}
	return out
}

// Select runs a filtered, ordered, limited read. Pending invitations past
// their expiry are swept to expired first (server-observed staleness).
func (s *Store) Select(table string, query url.Values) []map[string]any {
	if table == "invitations" {
		s.sweepExpiredInvitations()
	}
	s.mu.Lock()
	rows := s.rowsLocked(table)
	s.mu.Unlock()
	return applyQuery(rows, query)
}

func (s *Store) sweepExpiredInvitations() {
	now := time.Now()
	var expired []dataservice.Invitation
	s.mu.Lock()
	for _, inv := range s.invitations {
		if inv.Status == dataservice.InvitationPending && !inv.ExpiresAt.IsZero() && inv.ExpiresAt.Before(now) {
			inv.Status = dataservice.InvitationExpired
			expired = append(expired, *inv)
		}
	}
	s.mu.Unlock()
	for _, inv := range expired {
		s.feed.Broadcast(dataservice.EventUpdate, "invitations", inv)
	}
}

// Insert decodes the row into the table's type, fills id/created_at when
// absent and broadcasts the insertion.
func (s *Store) Insert(table string, body []byte) (any, error) {
	now := time.Now().UTC()
	switch table {
	case "invitations":
		var inv dataservice.Invitation
		if err := json.Unmarshal(body, &inv); err != nil {
			return nil, err
		}
		if inv.ID == "" {
			inv.ID = dataservice.NewID()
		}
		if inv.CreatedAt.IsZero() {
			inv.CreatedAt = now
		}
		s.mu.Lock()
		s.invitations[inv.ID] = &inv
		row := inv
		s.mu.Unlock()
		s.feed.Broadcast(dataservice.EventInsert, table, row)
		return row, nil
	case "profiles":
		var p dataservice.Profile
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.profiles[p.ID] = &p
		row := p
		s.mu.Unlock()
		s.feed.Broadcast(dataservice.EventInsert, table, row)
		return row, nil
	}
	return nil, fmt.Errorf("insert into %s not supported", table)
}

// Update merges a JSON patch into every matching row and broadcasts each
// update. Returns the patched rows.
func (s *Store) Update(table string, query url.Values, patch []byte) ([]map[string]any, error) {
	var patchMap map[string]any
	if err := json.Unmarshal(patch, &patchMap); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var updated []any
	switch table {
	case "invitations":
		for id, inv := range s.invitations {
			m := toMap(*inv)
			if !matches(m, query) {
				continue
			}
			merged := mergePatch(m, patchMap)
			var next dataservice.Invitation
			if err := remarshal(merged, &next); err != nil {
				continue
			}
			s.invitations[id] = &next
			updated = append(updated, next)
		}
	case "games":
		for id, g := range s.games {
			m := toMap(*g)
			if !matches(m, query) {
				continue
			}
			merged := mergePatch(m, patchMap)
			var next dataservice.Game
			if err := remarshal(merged, &next); err != nil {
				continue
			}
			next.UpdatedAt = time.Now().UTC()
			s.games[id] = &next
			updated = append(updated, next)
		}
	default:
		s.mu.Unlock()
		return nil, fmt.Errorf("update of %s not supported", table)
	}
	s.mu.Unlock()

	out := make([]map[string]any, 0, len(updated))
	for _, row := range updated {
		s.feed.Broadcast(dataservice.EventUpdate, table, row)
		out = append(out, toMap(row))
	}
	return out, nil
}

func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func remarshal(m map[string]any, dest any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func mergePatch(row, patch map[string]any) map[string]any {
	out := make(map[string]any, len(row)+len(patch))
	for k, v := range row {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// matches applies eq./in.(...) predicates, the query dialect the client
// emits.
func matches(row map[string]any, query url.Values) bool {
	for col, preds := range query {
		if col == "order" || col == "limit" {
			continue
		}
		for _, pred := range preds {
			switch {
			case strings.HasPrefix(pred, "eq."):
				if fieldString(row, col) != strings.TrimPrefix(pred, "eq.") {
					return false
				}
			case strings.HasPrefix(pred, "in.(") && strings.HasSuffix(pred, ")"):
				list := strings.Split(pred[4:len(pred)-1], ",")
				found := false
				for _, want := range list {
					if fieldString(row, col) == want {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
		}
	}
	return true
}

func fieldString(row map[string]any, col string) string {
	v, ok := row[col]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

func applyQuery(rows []any, query url.Values) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		m := toMap(r)
		if matches(m, query) {
			out = append(out, m)
		}
	}
	if order := query.Get("order"); order != "" {
		col, desc := order, false
		if strings.HasSuffix(order, ".desc") {
			col, desc = strings.TrimSuffix(order, ".desc"), true
		} else {
			col = strings.TrimSuffix(order, ".asc")
		}
		sort.SliceStable(out, func(i, j int) bool {
			less := lessValue(out[i][col], out[j][col])
			if desc {
				return !less && !equalValue(out[i][col], out[j][col])
			}
			return less
		})
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n >= 0 && n < len(out) {
			out = out[:n]
		}
	}
	return out
}

func lessValue(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func equalValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
