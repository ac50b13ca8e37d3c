package dataservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// CurrentUserID resolves the authenticated user's id. The session endpoint is
// not guaranteed to be ready right after startup, so the lookup retries with
// exponential backoff before giving up. The resolved id is cached.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.userID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second

	var id string
	err := backoff.Retry(func() error {
		status, body, err := c.send(ctx, http.MethodGet, "/auth/v1/user", nil, nil)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return backoff.Permanent(fmt.Errorf("auth: status %d", status))
		}
		if status != http.StatusOK {
			return fmt.Errorf("auth: status %d", status)
		}
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return err
		}
		if payload.ID == "" {
			return fmt.Errorf("auth: session not ready")
		}
		id = payload.ID
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
	return id, nil
}
