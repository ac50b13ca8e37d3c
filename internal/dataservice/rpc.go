package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse marks an RPC payload that could not be normalized into
// the procedure's expected shape. It is a server contract violation, not a
// retryable condition.
var ErrMalformedResponse = errors.New("malformed rpc response")

// RPCResult is the normalized form of a procedure payload. The backend may
// answer with a single object or an array-of-one, and field names are not
// stable across versions, so lookups probe a list of candidate keys.
type RPCResult struct {
	fields map[string]json.RawMessage
}

// CallRPC invokes a named remote procedure and normalizes its payload.
func (c *Client) CallRPC(ctx context.Context, name string, args any) (RPCResult, error) {
	status, body, err := c.send(ctx, http.MethodPost, "/rest/v1/rpc/"+name, nil, args)
	if err != nil {
		return RPCResult{}, err
	}
	if status != http.StatusOK {
		return RPCResult{}, fmt.Errorf("rpc %s: status %d", name, status)
	}
	res, err := normalizeRPC(body)
	if err != nil {
		return RPCResult{}, fmt.Errorf("rpc %s: %w", name, err)
	}
	return res, nil
}

func normalizeRPC(raw []byte) (RPCResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return RPCResult{}, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return RPCResult{}, ErrMalformedResponse
		}
		if len(items) == 0 {
			return RPCResult{}, nil
		}
		trimmed = bytes.TrimSpace(items[0])
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return RPCResult{}, ErrMalformedResponse
	}
	return RPCResult{fields: fields}, nil
}

// String returns the first candidate key holding a non-empty string.
func (r RPCResult) String(keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := r.fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s, true
		}
	}
	return "", false
}

func (r RPCResult) Bool(keys ...string) (bool, bool) {
	for _, k := range keys {
		raw, ok := r.fields[k]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b, true
		}
	}
	return false, false
}

func (r RPCResult) Int(keys ...string) (int, bool) {
	for _, k := range keys {
		raw, ok := r.fields[k]
		if !ok {
			continue
		}
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Ints returns an integer array field, used for board snapshots.
func (r RPCResult) Ints(keys ...string) ([]int, bool) {
	for _, k := range keys {
		raw, ok := r.fields[k]
		if !ok {
			continue
		}
		var ns []int
		if err := json.Unmarshal(raw, &ns); err == nil && ns != nil {
			return ns, true
		}
	}
	return nil, false
}

func (r RPCResult) Empty() bool { return len(r.fields) == 0 }
