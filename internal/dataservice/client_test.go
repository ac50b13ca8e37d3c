package dataservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"align-five/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.ClientConfig{BackendURL: srv.URL, AuthToken: "user-a"})
}

func TestQueryBuildsRowFilters(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	var rows []Invitation
	err := c.From("invitations").
		Eq("invitee_id", "user-b").
		In("status", "pending", "accepted").
		Order("created_at", true).
		Limit(5).
		Get(context.Background(), &rows)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPath != "/rest/v1/invitations" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer user-a" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	q, err := url.ParseQuery(gotQuery)
	if err != nil {
		t.Fatalf("parse query %q: %v", gotQuery, err)
	}
	if q.Get("invitee_id") != "eq.user-b" {
		t.Fatalf("invitee filter = %q", q.Get("invitee_id"))
	}
	if q.Get("status") != "in.(pending,accepted)" {
		t.Fatalf("status filter = %q", q.Get("status"))
	}
	if q.Get("order") != "created_at.desc" {
		t.Fatalf("order = %q", q.Get("order"))
	}
	if q.Get("limit") != "5" {
		t.Fatalf("limit = %q", q.Get("limit"))
	}
}

func TestMaybeSingle(t *testing.T) {
	payload := `[{"id":"inv-1","status":"pending"}]`
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %q, want 1", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(payload))
	})

	var inv Invitation
	found, err := c.From("invitations").Eq("id", "inv-1").MaybeSingle(context.Background(), &inv)
	if err != nil || !found {
		t.Fatalf("MaybeSingle: found=%v err=%v", found, err)
	}
	if inv.ID != "inv-1" || inv.Status != InvitationPending {
		t.Fatalf("row = %+v", inv)
	}

	payload = `[]`
	found, err = c.From("invitations").Eq("id", "inv-2").MaybeSingle(context.Background(), &inv)
	if err != nil || found {
		t.Fatalf("empty MaybeSingle: found=%v err=%v", found, err)
	}
}

func TestUpdateReturnsAffectedCount(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		var patch map[string]string
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Errorf("decode patch: %v", err)
		}
		if patch["status"] != "cancelled" {
			t.Errorf("patch = %v", patch)
		}
		w.Write([]byte(`[{"id":"inv-1"}]`))
	})

	n, err := c.From("invitations").
		Eq("id", "inv-1").
		Eq("status", "pending").
		Update(context.Background(), map[string]string{"status": "cancelled"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 1 {
		t.Fatalf("affected = %d, want 1", n)
	}
}

func TestUpdateZeroRowsMeansGuardLost(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	n, err := c.From("invitations").Eq("status", "pending").Update(context.Background(), map[string]string{"status": "expired"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 0 {
		t.Fatalf("affected = %d, want 0", n)
	}
}

func TestInsertDecodesRepresentation(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("prefer header = %q", r.Header.Get("Prefer"))
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"inv-9","status":"pending"}]`))
	})

	var created Invitation
	if err := c.Insert(context.Background(), "invitations", Invitation{InviteeID: "user-b"}, &created); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if created.ID != "inv-9" {
		t.Fatalf("created = %+v", created)
	}
}

func TestQueryErrorStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	var rows []Invitation
	if err := c.From("invitations").Get(context.Background(), &rows); err == nil {
		t.Fatal("want error on 500")
	}
}
