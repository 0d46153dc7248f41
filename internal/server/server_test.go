package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsprint/internal/api"
	"smartsprint/internal/cache"
	"smartsprint/internal/domain"
	"smartsprint/internal/session"
	"smartsprint/internal/view"
	"smartsprint/internal/workflow"
)

type testServer struct {
	URL    string
	Store  *Store
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, jiraURL string) (*testServer, func()) {
	t.Helper()
	store := SeedStore()
	store.SnapshotPath = filepath.Join(t.TempDir(), "state.json")
	handler, err := New(Config{Store: store, JiraWebhookURL: jiraURL})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Store:  store,
		client: &http.Client{Timeout: 5 * time.Second},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func login(t *testing.T, srv *testServer) map[string]string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/login", map[string]any{
		"username": "admin",
		"password": "admin",
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var out domain.LoginResponse
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotEmpty(t, out.Token)
	assert.Equal(t, "admin", out.Role)
	return map[string]string{"Authorization": "Bearer " + out.Token}
}

func decodeError(t *testing.T, data []byte) ApiError {
	t.Helper()
	var e ApiError
	require.NoError(t, json.Unmarshal(data, &e), string(data))
	return e
}

func TestLoginAndTokenRequired(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/tickets", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Token is missing", decodeError(t, data).Message)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tickets", nil, map[string]string{"Authorization": "Bearer nope"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Token is invalid", decodeError(t, data).Message)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/login", map[string]any{"username": "admin"}, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Username and password are required", decodeError(t, data).Message)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/login", map[string]any{"username": "admin", "password": "wrong"}, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	e := decodeError(t, data)
	assert.Equal(t, "Invalid username or password", e.Message)
	assert.Equal(t, http.StatusUnauthorized, e.StatusCode)

	auth := login(t, srv)
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/tickets", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var tickets []domain.Ticket
	require.NoError(t, json.Unmarshal(data, &tickets))
	assert.Len(t, tickets, 3)

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestExpiredTokenRejected(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	token, err := signToken(DefaultJWTSecret, "admin", "admin", time.Now().Add(-48*time.Hour))
	require.NoError(t, err)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/developers", nil, map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Token is invalid", decodeError(t, data).Message)
}

func TestCreateTicketReturnsCreated(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	auth := login(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/tickets", map[string]any{
		"title":           "Rate limiter",
		"description":     "Add a rate limiter to the api gateway",
		"priority":        "critical",
		"estimated_hours": 20,
	}, auth)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var created domain.Ticket
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, int64(4), created.ID)
	assert.Equal(t, domain.StatusBacklog, created.Status)
	assert.Equal(t, 4, created.Complexity)

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/tickets", map[string]any{
		"title":           "Bad",
		"description":     "bad priority",
		"priority":        "urgent",
		"estimated_hours": 2,
	}, auth)
	require.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	assert.Contains(t, decodeError(t, data).Message, "Priority must be one of")
}

func TestAssignAutoPicksAndRejectsReassign(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	auth := login(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/tickets/1/recommendations", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var recs []domain.Recommendation
	require.NoError(t, json.Unmarshal(data, &recs))
	require.NotEmpty(t, recs)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/tickets/1/assign", map[string]any{}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	ticket, err := srv.Store.Ticket(1)
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, recs[0].DeveloperID, *ticket.AssignedTo)
	assert.Equal(t, domain.StatusInProgress, ticket.Status)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/tickets/1/assign", map[string]any{"developer_id": 2}, auth)
	assert.Equal(t, http.StatusConflict, res.StatusCode, string(data))

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/tickets/99/assign", map[string]any{"developer_id": 2}, auth)
	assert.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
}

func TestAssignOverCapacity(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	auth := login(t, srv)

	// developer 3 has 10 spare hours, ticket 2 needs 12
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/tickets/2/assign", map[string]any{"developer_id": 3}, auth)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "Assignment failed. Developer may not have enough availability.", decodeError(t, data).Message)
}

func TestCompleteRequiresAssignment(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	auth := login(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/tickets/2/complete", map[string]any{
		"completion_time": 5,
		"revisions":       0,
		"sentiment_score": 0.5,
	}, auth)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "Completion failed. Check if ticket exists and is assigned.", decodeError(t, data).Message)
}

func TestPerformanceWithoutHistoryIsNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	auth := login(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/developers/1/performance", nil, auth)
	assert.Equal(t, http.StatusNotFound, res.StatusCode, string(data))
}

func TestProcessDocument(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	auth := login(t, srv)
	client := srv.Client()
	dir := t.TempDir()

	doc := filepath.Join(dir, "tasks.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Release notes\nTask: Write changelog (3h)\n- Tag release\n"), 0o644))
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/process-document", map[string]any{"path": doc}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var out domain.DocumentResult
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, domain.DocumentProcessedMessage, out.Message)
	assert.Equal(t, 2, out.TicketsCreated)
	assert.Equal(t, "Write changelog", out.Tickets[0].Title)
	assert.Equal(t, 3.0, out.Tickets[0].EstimatedHours)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/process-document", map[string]any{"path": ""}, auth)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "No document path provided", decodeError(t, data).Message)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/process-document", map[string]any{"path": filepath.Join(dir, "x.pdf")}, auth)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Unsupported file format. Only .docx and .txt files are supported.", decodeError(t, data).Message)

	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/process-document", map[string]any{"path": filepath.Join(dir, "missing.txt")}, auth)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("nothing to see here\n"), 0o644))
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/process-document", map[string]any{"path": empty}, auth)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestProcessSprintDocument(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	auth := login(t, srv)

	doc := filepath.Join(t.TempDir(), "sprint.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Sprint goal: Ship checkout\n- As a buyer I want to pay by card (3 points)\nAs a buyer I want a receipt (1 point)\n"), 0o644))
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/process-sprint-document", map[string]any{"path": doc}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var out domain.SprintDocumentResult
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Ship checkout", out.SprintGoal)
	require.Len(t, out.UserStories, 2)
	assert.Equal(t, 3, out.UserStories[0].StoryPoints)
	assert.Equal(t, 12.0, out.Tickets[0].EstimatedHours)
}

func TestExportJiraForwardsIssue(t *testing.T) {
	var (
		mu      sync.Mutex
		got     jiraIssue
		actor   string
		calls   int
		failing bool
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		actor = r.Header.Get("X-SmartSprint-Actor")
		_ = json.NewDecoder(r.Body).Decode(&got)
		if failing {
			http.Error(w, "down", http.StatusBadGateway)
		}
	}))
	defer hook.Close()

	srv, cleanup := newTestServer(t, hook.URL)
	defer cleanup()
	auth := login(t, srv)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/tickets/1/export-jira", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	mu.Lock()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "SPRINT-1", got.Key)
	assert.Equal(t, "Login API", got.Summary)
	assert.Equal(t, "admin", actor)
	failing = true
	mu.Unlock()

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/tickets/2/export-jira", nil, auth)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "Export failed", decodeError(t, data).Message)
}

func TestSystemEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	auth := login(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/system/status", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var st domain.SystemStatus
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, 3, st.TotalTickets)
	assert.Equal(t, 3, st.BacklogTickets)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/system/save", nil, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	_, err := os.Stat(srv.Store.SnapshotPath)
	assert.NoError(t, err)

	for _, ep := range []struct{ method, path string }{
		{http.MethodPost, "/api/system/optimize-workload"},
		{http.MethodGet, "/api/system/balance-workload"},
		{http.MethodGet, "/api/system/progress-report"},
		{http.MethodPost, "/api/system/adjust-priorities"},
		{http.MethodGet, "/api/dashboard"},
	} {
		res, data := doJSON(t, client, ep.method, srv.URL+ep.path, nil, auth)
		assert.Equal(t, http.StatusOK, res.StatusCode, "%s %s: %s", ep.method, ep.path, string(data))
	}
}

func TestClientWorkflowAgainstDevServer(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	ctx := context.Background()

	client := api.New(srv.URL)
	mgr := session.New(session.NewMemoryStore(), client)
	client.Tokens = mgr
	client.OnUnauthorized = mgr.Expire
	require.NoError(t, mgr.Login(ctx, "admin", "admin"))

	v := view.New(ctx)
	defer v.Close()
	ctl := workflow.New(client, cache.New(client), v)
	ctl.Identity = mgr
	require.NoError(t, ctl.Start(ctx))
	require.Len(t, ctl.AssignableTickets(), 3)

	require.NoError(t, ctl.SelectTicket(1))
	recs, err := ctl.FetchRecommendations(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	tl, ok := ctl.Timeline()
	require.True(t, ok)
	assert.Equal(t, 8, tl.EstimatedHours)

	require.NoError(t, ctl.Assign(ctx, recs[0].DeveloperID))
	assigned, ok := ctl.Cache.Ticket(1)
	require.True(t, ok)
	assert.Equal(t, domain.StatusInProgress, assigned.Status)

	require.NoError(t, ctl.SelectForCompletion(1))
	ctl.UpdateCompletionForm(domain.CompletionForm{CompletionTime: 7, Revisions: 1, SentimentScore: 0.9})
	require.NoError(t, ctl.SubmitCompletion(ctx))
	done, _ := ctl.Cache.Ticket(1)
	assert.Equal(t, domain.StatusCompleted, done.Status)

	perf, err := client.DeveloperPerformance(ctx, recs[0].DeveloperID)
	require.NoError(t, err)
	require.NotNil(t, perf)

	dash, err := ctl.Dashboard(ctx)
	require.NoError(t, err)
	require.Nil(t, dash.Diagnostic)
	require.NotNil(t, dash.Summary)
	assert.Equal(t, 1, dash.Summary.CompletedTickets)

	// a rejected token expires the session
	client.Tokens = staticToken("garbage")
	_, err = client.Tickets(ctx)
	assert.True(t, domain.IsAuth(err))
	assert.False(t, mgr.Authenticated())
	assert.Equal(t, session.ExpiredNotice, mgr.Notice())
}

type staticToken string

func (s staticToken) Token() string { return string(s) }
