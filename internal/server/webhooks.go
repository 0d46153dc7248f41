package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"smartsprint/internal/domain"
)

const defaultWebhookTimeout = 5 * time.Second

// jiraForwarder posts exported tickets to an external webhook. A nil
// forwarder or an empty URL makes Forward a no-op.
type jiraForwarder struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func newJiraForwarder(url string, logger *slog.Logger) *jiraForwarder {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	return &jiraForwarder{
		url:    url,
		client: &http.Client{Timeout: defaultWebhookTimeout},
		logger: logger,
	}
}

type jiraIssue struct {
	Key            string          `json:"key"`
	TicketID       int64           `json:"ticket_id"`
	Summary        string          `json:"summary"`
	Description    string          `json:"description"`
	Priority       domain.Priority `json:"priority"`
	Status         domain.Status   `json:"status"`
	EstimatedHours float64         `json:"estimated_hours"`
	AssigneeID     *int64          `json:"assignee_id,omitempty"`
}

func (f *jiraForwarder) Forward(ctx context.Context, t domain.Ticket) error {
	if f == nil {
		return nil
	}
	issue := jiraIssue{
		TicketID:       t.ID,
		Summary:        t.Title,
		Description:    t.Description,
		Priority:       t.Priority,
		Status:         t.Status,
		EstimatedHours: t.EstimatedHours,
		AssigneeID:     t.AssignedTo,
	}
	if t.JiraID != nil {
		issue.Key = *t.JiraID
	}
	data, err := json.Marshal(issue)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SmartSprint-Event", "ticket.exported")
	req.Header.Set("X-SmartSprint-Ticket", fmt.Sprintf("%d", t.ID))
	if p, ok := principalFromContext(ctx); ok {
		req.Header.Set("X-SmartSprint-Actor", p.Username)
	}
	res, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("jira forward failed", "url", f.url, "ticket", t.ID, "error", err)
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		err := fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		f.logger.Warn("jira forward rejected", "url", f.url, "ticket", t.ID, "error", err)
		return err
	}
	return nil
}
