package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"align-five/internal/config"
)

var ErrNotFound = errors.New("not found")

// Client speaks the backend's row/RPC/auth surface over HTTP. It is safe for
// concurrent use.
type Client struct {
	baseURL     string
	realtimeURL string
	token       string
	inner       *http.Client

	mu     sync.Mutex
	userID string
}

func New(cfg config.ClientConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BackendURL, "/"),
		realtimeURL: cfg.RealtimeURL,
		token:       cfg.AuthToken,
		inner:       &http.Client{Timeout: timeout},
	}
}

// From starts a row query against a named collection.
func (c *Client) From(table string) *Query {
	return &Query{c: c, table: table}
}

type Query struct {
	c       *Client
	table   string
	filters url.Values
	order   string
	limit   int
}

func (q *Query) Eq(column, value string) *Query {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, "eq."+value)
	return q
}

func (q *Query) In(column string, values ...string) *Query {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, "in.("+strings.Join(values, ",")+")")
	return q
}

func (q *Query) Order(column string, desc bool) *Query {
	q.order = column + ".asc"
	if desc {
		q.order = column + ".desc"
	}
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) values() url.Values {
	v := url.Values{}
	for k, vals := range q.filters {
		for _, val := range vals {
			v.Add(k, val)
		}
	}
	if q.order != "" {
		v.Set("order", q.order)
	}
	if q.limit > 0 {
		v.Set("limit", strconv.Itoa(q.limit))
	}
	return v
}

// Get fetches all matching rows into dest (a pointer to a slice).
func (q *Query) Get(ctx context.Context, dest any) error {
	status, body, err := q.c.send(ctx, http.MethodGet, "/rest/v1/"+q.table, q.values(), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("query %s: status %d", q.table, status)
	}
	return json.Unmarshal(body, dest)
}

// MaybeSingle fetches at most one matching row. The second return reports
// whether a row was found.
func (q *Query) MaybeSingle(ctx context.Context, dest any) (bool, error) {
	q.limit = 1
	var rows []json.RawMessage
	if err := q.Get(ctx, &rows); err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(rows[0], dest)
}

// Update patches all matching rows and returns how many were affected.
func (q *Query) Update(ctx context.Context, patch any) (int, error) {
	status, body, err := q.c.send(ctx, http.MethodPatch, "/rest/v1/"+q.table, q.values(), patch)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("update %s: status %d", q.table, status)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Insert creates a row. When dest is non-nil the created representation is
// decoded into it.
func (c *Client) Insert(ctx context.Context, table string, row, dest any) error {
	status, body, err := c.send(ctx, http.MethodPost, "/rest/v1/"+table, nil, row)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return fmt.Errorf("insert %s: status %d", table, status)
	}
	if dest == nil {
		return nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err == nil && len(rows) > 0 {
		return json.Unmarshal(rows[0], dest)
	}
	return json.Unmarshal(body, dest)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.inner.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return resp.StatusCode, nil, readErr
	}
	return resp.StatusCode, raw, nil
}
