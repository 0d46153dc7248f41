package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"smartsprint/internal/domain"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	expired := 0
	c := New(srv.URL + "/")
	c.Tokens = staticToken("tok-1")
	c.OnUnauthorized = func() { expired++ }
	return c, &expired
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestBearerAndRequestIDOnEveryCall(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization header %q", got)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Errorf("missing request id")
		}
		if r.URL.Path != "/api/tickets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, []domain.Ticket{{ID: 1, Title: "A", Status: domain.StatusBacklog}})
	})
	tickets, err := c.Tickets(context.Background())
	if err != nil {
		t.Fatalf("tickets: %v", err)
	}
	if len(tickets) != 1 || tickets[0].Title != "A" {
		t.Fatalf("unexpected tickets %+v", tickets)
	}
}

func TestUnauthorizedTriggersHookFromAnyEndpoint(t *testing.T) {
	c, expired := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Token has expired", "status_code": 401})
	})
	ctx := context.Background()
	calls := []func() error{
		func() error { _, err := c.Developers(ctx); return err },
		func() error { return c.AssignTicket(ctx, 3, 4) },
		func() error { _, err := c.ProgressReport(ctx); return err },
		func() error { _, _, err := c.Dashboard(ctx); return err },
	}
	for i, call := range calls {
		err := call()
		var ae *domain.AuthError
		if !errors.As(err, &ae) {
			t.Fatalf("call %d: expected auth error, got %v", i, err)
		}
		if ae.Message != "Token has expired" {
			t.Fatalf("call %d: message %q", i, ae.Message)
		}
	}
	if *expired != len(calls) {
		t.Fatalf("expected %d expiries, got %d", len(calls), *expired)
	}
}

func TestLoginFailureDoesNotExpire(t *testing.T) {
	c, expired := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a token")
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid username or password", "status_code": 401})
	})
	_, err := c.Login(context.Background(), "admin", "nope")
	if !domain.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if *expired != 0 {
		t.Fatalf("login failure must not expire the session")
	}
}

func TestProbeUsesExplicitToken(t *testing.T) {
	c, expired := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stored" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, []domain.Ticket{})
	})
	if err := c.Probe(context.Background(), "stored"); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if err := c.Probe(context.Background(), "other"); !domain.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if *expired != 0 {
		t.Fatalf("probe must not run the expiry hook")
	}
}

func TestErrorClassification(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tickets/9/assign":
			writeJSON(w, http.StatusConflict, map[string]any{"error": "Assignment failed", "status_code": 409})
		case "/api/developers/2/performance":
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found", "status_code": 404})
		case "/api/system/status":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"total_tickets": "many"`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	err := c.AssignTicket(ctx, 9, 1)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict || apiErr.Message != "Assignment failed" {
		t.Fatalf("expected conflict api error, got %v", err)
	}

	perf, err := c.DeveloperPerformance(ctx, 2)
	if err != nil || perf != nil {
		t.Fatalf("missing performance should be nil, got %v %v", perf, err)
	}

	if _, err := c.SystemStatus(ctx); !domain.IsSchema(err) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(url)
	_, err := c.Tickets(context.Background())
	if !domain.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestDashboardKeepsRawPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"priority_distribution": []any{}})
	})
	payload, raw, err := c.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if payload.Summary != nil {
		t.Fatalf("summary should be absent")
	}
	if len(raw) == 0 {
		t.Fatalf("raw payload missing")
	}
}
