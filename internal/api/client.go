package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartsprint/internal/domain"
)

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	Token() string
}

// Client is the Smart Sprint backend REST client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Tokens     TokenSource
	// OnUnauthorized runs whenever an authenticated call gets a 401.
	OnUnauthorized func()
	Logger         *slog.Logger
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type errorBody struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

type successBody struct {
	Success bool `json:"success"`
}

// Login exchanges credentials for a token. A failed login never triggers
// OnUnauthorized.
func (c *Client) Login(ctx context.Context, username, password string) (domain.LoginResponse, error) {
	body := map[string]any{
		"username": username,
		"password": password,
	}
	var resp domain.LoginResponse
	err := c.send(ctx, request{method: http.MethodPost, path: "api/login", body: body, out: &resp, resource: "login", anonymous: true})
	if err != nil {
		return resp, err
	}
	if resp.Token == "" {
		return resp, &domain.SchemaError{Resource: "login", Field: "token"}
	}
	return resp, nil
}

// Probe checks that token is still accepted. It uses the ticket listing and
// leaves OnUnauthorized alone; the caller decides what a rejection means.
func (c *Client) Probe(ctx context.Context, token string) error {
	var resp []domain.Ticket
	return c.send(ctx, request{method: http.MethodGet, path: "api/tickets", out: &resp, resource: "tickets", token: &token})
}

func (c *Client) Tickets(ctx context.Context) ([]domain.Ticket, error) {
	var resp []domain.Ticket
	err := c.do(ctx, http.MethodGet, "api/tickets", nil, &resp, "tickets")
	return resp, err
}

func (c *Client) Ticket(ctx context.Context, id int64) (domain.Ticket, error) {
	var resp domain.Ticket
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("api/tickets/%d", id), nil, &resp, "ticket")
	return resp, err
}

func (c *Client) CreateTicket(ctx context.Context, draft domain.TicketDraft) (domain.Ticket, error) {
	var resp domain.Ticket
	err := c.do(ctx, http.MethodPost, "api/tickets", draft, &resp, "ticket")
	return resp, err
}

func (c *Client) AssignTicket(ctx context.Context, ticketID, developerID int64) error {
	body := map[string]any{"developer_id": developerID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("api/tickets/%d/assign", ticketID), body, &successBody{}, "assignment")
}

func (c *Client) CompleteTicket(ctx context.Context, ticketID int64, form domain.CompletionForm) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("api/tickets/%d/complete", ticketID), form, &successBody{}, "completion")
}

func (c *Client) Recommendations(ctx context.Context, ticketID int64) ([]domain.Recommendation, error) {
	var resp []domain.Recommendation
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("api/tickets/%d/recommendations", ticketID), nil, &resp, "recommendations")
	return resp, err
}

func (c *Client) ExportJira(ctx context.Context, ticketID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("api/tickets/%d/export-jira", ticketID), map[string]any{}, &successBody{}, "export")
}

func (c *Client) Developers(ctx context.Context) ([]domain.Developer, error) {
	var resp []domain.Developer
	err := c.do(ctx, http.MethodGet, "api/developers", nil, &resp, "developers")
	return resp, err
}

// DeveloperPerformance returns nil when the backend has no data for the developer.
func (c *Client) DeveloperPerformance(ctx context.Context, developerID int64) (*domain.DeveloperPerformance, error) {
	var resp domain.DeveloperPerformance
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("api/developers/%d/performance", developerID), nil, &resp, "performance")
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SystemStatus(ctx context.Context) (domain.SystemStatus, error) {
	var resp domain.SystemStatus
	err := c.do(ctx, http.MethodGet, "api/system/status", nil, &resp, "system status")
	return resp, err
}

// Dashboard returns the decoded payload together with the raw document so a
// malformed payload can still be shown for diagnosis.
func (c *Client) Dashboard(ctx context.Context) (domain.DashboardPayload, json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "api/dashboard", nil, &raw, "dashboard"); err != nil {
		return domain.DashboardPayload{}, nil, err
	}
	var payload domain.DashboardPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.DashboardPayload{}, raw, &domain.SchemaError{Resource: "dashboard", Err: err}
	}
	return payload, raw, nil
}

func (c *Client) SaveSystem(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "api/system/save", map[string]any{}, &successBody{}, "save")
}

func (c *Client) OptimizeWorkload(ctx context.Context) (domain.OptimizeResult, error) {
	var resp domain.OptimizeResult
	err := c.do(ctx, http.MethodPost, "api/system/optimize-workload", map[string]any{}, &resp, "optimize")
	return resp, err
}

func (c *Client) BalanceWorkload(ctx context.Context) (domain.BalanceReport, error) {
	var resp domain.BalanceReport
	err := c.do(ctx, http.MethodGet, "api/system/balance-workload", nil, &resp, "balance")
	return resp, err
}

func (c *Client) ProgressReport(ctx context.Context) (domain.ProgressReport, error) {
	var resp domain.ProgressReport
	err := c.do(ctx, http.MethodGet, "api/system/progress-report", nil, &resp, "progress report")
	return resp, err
}

func (c *Client) AdjustPriorities(ctx context.Context) (domain.AdjustResult, error) {
	var resp domain.AdjustResult
	err := c.do(ctx, http.MethodPost, "api/system/adjust-priorities", map[string]any{}, &resp, "priorities")
	return resp, err
}

func (c *Client) ProcessDocument(ctx context.Context, path string) (domain.DocumentResult, error) {
	var resp domain.DocumentResult
	err := c.do(ctx, http.MethodPost, "api/process-document", map[string]any{"path": path}, &resp, "document")
	return resp, err
}

func (c *Client) ProcessSprintDocument(ctx context.Context, path string) (domain.SprintDocumentResult, error) {
	var resp domain.SprintDocumentResult
	err := c.do(ctx, http.MethodPost, "api/process-sprint-document", map[string]any{"path": path}, &resp, "sprint document")
	return resp, err
}

type request struct {
	method    string
	path      string
	body      any
	out       any
	resource  string
	anonymous bool
	// token overrides the TokenSource for this call and disables OnUnauthorized.
	token *string
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, resource string) error {
	return c.send(ctx, request{method: method, path: endpoint, body: body, out: out, resource: resource})
}

func (c *Client) send(ctx context.Context, r request) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(r.path, "/")
	var buf bytes.Buffer
	if r.body != nil {
		if err := json.NewEncoder(&buf).Encode(r.body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, r.method, url, &buf)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	token := ""
	switch {
	case r.token != nil:
		token = *r.token
	case !r.anonymous && c.Tokens != nil:
		token = c.Tokens.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger().Debug("request failed", "method", r.method, "path", r.path, "request_id", requestID, "error", err)
		return &domain.NetworkError{Op: r.method + " /" + strings.TrimLeft(r.path, "/"), Err: err}
	}
	defer resp.Body.Close()
	c.logger().Debug("request", "method", r.method, "path", r.path, "status", resp.StatusCode, "request_id", requestID, "elapsed", time.Since(start))

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		msg := errorMessage(b)
		if resp.StatusCode == http.StatusUnauthorized {
			if !r.anonymous && r.token == nil && c.OnUnauthorized != nil {
				c.OnUnauthorized()
			}
			return &domain.AuthError{Message: msg}
		}
		return &domain.APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if r.out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.SchemaError{Resource: r.resource, Field: "body"}
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) {
			return &domain.NetworkError{Op: r.method + " /" + strings.TrimLeft(r.path, "/"), Err: err}
		}
		return &domain.SchemaError{Resource: r.resource, Err: err}
	}
	return nil
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return eb.Error
	}
	return strings.TrimSpace(string(body))
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
