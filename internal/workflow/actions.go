package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"smartsprint/internal/dashboard"
	"smartsprint/internal/domain"
	"smartsprint/internal/events"
	"smartsprint/internal/render"
	"smartsprint/internal/view"
)

// CreateTicket submits the ticket draft, then resets it and returns to the dashboard.
func (c *Controller) CreateTicket(ctx context.Context) (domain.Ticket, error) {
	draft := c.View.TicketDraft()
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	if err := domain.ValidateForm(draft); err != nil {
		return domain.Ticket{}, c.fail("create ticket", err)
	}
	v, err := c.once("create:"+draft.Title, func() (any, error) {
		return c.API.CreateTicket(ctx, draft)
	})
	if err != nil {
		return domain.Ticket{}, c.fail("create ticket", err)
	}
	created := v.(domain.Ticket)
	c.View.ResetTicketDraft()
	c.record(ctx, events.TypeTicketCreated, "ticket", strconv.FormatInt(created.ID, 10), events.EventPayload{"title": created.Title})
	if err := c.Cache.ReloadTickets(ctx); err != nil {
		return created, c.fail("reload after create", err)
	}
	if err := c.View.Navigate(view.Dashboard); err != nil {
		return created, err
	}
	c.succeed("Ticket created successfully!")
	return created, nil
}

// ExportToJira pushes a ticket to the external tracker.
func (c *Controller) ExportToJira(ctx context.Context, ticketID int64) error {
	if _, ok := c.Cache.Ticket(ticketID); !ok {
		return c.fail("export", fmt.Errorf("ticket %d: %w", ticketID, domain.ErrNotFound))
	}
	_, err := c.once("export:"+strconv.FormatInt(ticketID, 10), func() (any, error) {
		return nil, c.API.ExportJira(ctx, ticketID)
	})
	if err != nil {
		return c.fail("export", err)
	}
	c.record(ctx, events.TypeTicketExported, "ticket", strconv.FormatInt(ticketID, 10), nil)
	if err := c.Cache.ReloadTickets(ctx); err != nil {
		return c.fail("reload after export", err)
	}
	c.succeed("Ticket exported to Jira successfully!")
	return nil
}

// SaveData asks the backend to persist its state.
func (c *Controller) SaveData(ctx context.Context) error {
	_, err := c.once("save", func() (any, error) {
		return nil, c.API.SaveSystem(ctx)
	})
	if err != nil {
		return c.fail("save", err)
	}
	c.record(ctx, events.TypeSystemSaved, "system", "", nil)
	c.succeed("Data saved successfully!")
	return nil
}

// OptimizeWorkload runs the backend rebalancer and reloads everything.
func (c *Controller) OptimizeWorkload(ctx context.Context) (domain.OptimizeResult, error) {
	v, err := c.once("optimize", func() (any, error) {
		return c.API.OptimizeWorkload(ctx)
	})
	if err != nil {
		return domain.OptimizeResult{}, c.fail("optimize workload", err)
	}
	res := v.(domain.OptimizeResult)
	c.record(ctx, events.TypeWorkloadOpt, "system", "", events.EventPayload{"assignments": len(res.Assignments)})
	if err := c.Cache.Reload(ctx); err != nil {
		return res, c.fail("reload after optimize", err)
	}
	c.succeed(fmt.Sprintf("Workload optimized! %d assignments made.", len(res.Assignments)))
	return res, nil
}

// BalanceWorkload fetches rebalancing suggestions. Nothing is changed.
func (c *Controller) BalanceWorkload(ctx context.Context) (domain.BalanceReport, error) {
	v, err := c.once("balance", func() (any, error) {
		return c.API.BalanceWorkload(ctx)
	})
	if err != nil {
		return domain.BalanceReport{}, c.fail("balance workload", err)
	}
	return v.(domain.BalanceReport), nil
}

// AdjustPriorities applies the backend's dynamic priority changes and reloads everything.
func (c *Controller) AdjustPriorities(ctx context.Context) (domain.AdjustResult, error) {
	v, err := c.once("adjust", func() (any, error) {
		return c.API.AdjustPriorities(ctx)
	})
	if err != nil {
		return domain.AdjustResult{}, c.fail("adjust priorities", err)
	}
	res := v.(domain.AdjustResult)
	c.record(ctx, events.TypePrioritiesAdj, "system", "", events.EventPayload{"adjustments": len(res.Adjustments)})
	if err := c.Cache.Reload(ctx); err != nil {
		return res, c.fail("reload after adjust", err)
	}
	c.succeed(fmt.Sprintf("Priorities adjusted! %d tickets updated.", len(res.Adjustments)))
	return res, nil
}

// ProgressReport fetches the report document.
func (c *Controller) ProgressReport(ctx context.Context) (domain.ProgressReport, error) {
	v, err := c.once("report", func() (any, error) {
		return c.API.ProgressReport(ctx)
	})
	if err != nil {
		return domain.ProgressReport{}, c.fail("progress report", err)
	}
	return v.(domain.ProgressReport), nil
}

// ReportFileName is the dated file a progress report is saved under.
func (c *Controller) ReportFileName() string {
	return fmt.Sprintf("progress_report_%s.txt", c.now().Format("2006-01-02"))
}

// SaveProgressReport fetches the report and writes its text rendering into dir.
func (c *Controller) SaveProgressReport(ctx context.Context, dir string) (string, domain.ProgressReport, error) {
	report, err := c.ProgressReport(ctx)
	if err != nil {
		return "", report, err
	}
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, c.ReportFileName())
	if err := os.WriteFile(path, []byte(render.ProgressReportText(report)), 0o644); err != nil {
		return "", report, c.fail("save report", err)
	}
	if c.Reports != nil {
		if _, err := c.Reports.InsertReport(ctx, report.GeneratedAt, path); err != nil {
			c.logger().Error("archive report", "path", path, "error", err)
		}
	}
	c.record(ctx, events.TypeReportSaved, "report", "", events.EventPayload{"path": path})
	c.succeed("Progress report saved to " + path)
	return path, report, nil
}

// LoadPerformance fetches metrics for the selected developer. A missing
// record is shown as "no data", not as an error.
func (c *Controller) LoadPerformance(ctx context.Context) (*domain.DeveloperPerformance, error) {
	sel := c.View.Selection()
	if sel.DeveloperID == nil {
		return nil, c.fail("performance", fmt.Errorf("%w: no developer selected", domain.ErrInvalidState))
	}
	devID := *sel.DeveloperID
	scope := c.View.Scope()
	v, err := c.once("performance:"+strconv.FormatInt(devID, 10), func() (any, error) {
		callCtx, cancel := bind(ctx, scope)
		defer cancel()
		return c.API.DeveloperPerformance(callCtx, devID)
	})
	if err != nil {
		return nil, c.fail("performance", err)
	}
	perf := v.(*domain.DeveloperPerformance)
	applied := c.View.Update(scope, func(s *view.Selection) {
		if s.DeveloperID == nil || *s.DeveloperID != devID {
			return
		}
		s.Performance = perf
		s.PerformanceLoaded = true
	})
	if !applied {
		return perf, ErrStale
	}
	return perf, nil
}

// SelectDeveloper picks a developer for the performance view.
func (c *Controller) SelectDeveloper(developerID int64) error {
	if _, ok := c.Cache.Developer(developerID); !ok {
		return c.fail("select developer", fmt.Errorf("developer %d: %w", developerID, domain.ErrNotFound))
	}
	c.View.OpenDeveloper(developerID)
	return nil
}

func (c *Controller) checkDocumentPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return &domain.ValidationError{Reason: "Please enter a document path"}
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range c.Extensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return &domain.ValidationError{Field: "path", Reason: "must be one of: " + strings.Join(c.Extensions, ", ")}
}

// ProcessDocument ingests the document at the view's document path.
func (c *Controller) ProcessDocument(ctx context.Context) (domain.DocumentResult, error) {
	return c.processDocument(ctx, c.View.DocumentPath())
}

// ProcessDocumentAt records path as the document path and ingests that path.
// Concurrent callers never read each other's path back from the view.
func (c *Controller) ProcessDocumentAt(ctx context.Context, path string) (domain.DocumentResult, error) {
	c.View.SetDocumentPath(path)
	return c.processDocument(ctx, path)
}

func (c *Controller) processDocument(ctx context.Context, path string) (domain.DocumentResult, error) {
	path = strings.TrimSpace(path)
	if err := c.checkDocumentPath(path); err != nil {
		return domain.DocumentResult{}, c.fail("process document", err)
	}
	v, err := c.once("document:"+path, func() (any, error) {
		return c.API.ProcessDocument(ctx, path)
	})
	if err != nil {
		return domain.DocumentResult{}, c.fail("process document", err)
	}
	res := v.(domain.DocumentResult)
	if res.Message != domain.DocumentProcessedMessage {
		return res, c.fail("process document", &domain.APIError{StatusCode: 200, Message: unexpectedMessage(res.Message)})
	}
	c.record(ctx, events.TypeDocumentIngest, "document", path, events.EventPayload{
		"tasks_extracted": res.TasksExtracted,
		"tickets_created": res.TicketsCreated,
	})
	if err := c.Cache.Reload(ctx); err != nil {
		return res, c.fail("reload after document", err)
	}
	c.View.SetDocumentPath("")
	c.succeed(fmt.Sprintf("Document processed successfully! %d tasks extracted, %d tickets created.", res.TasksExtracted, res.TicketsCreated))
	return res, nil
}

// ProcessSprintDocument ingests the sprint planning document at the view's sprint path.
func (c *Controller) ProcessSprintDocument(ctx context.Context) (domain.SprintDocumentResult, error) {
	return c.processSprintDocument(ctx, c.View.SprintDocumentPath())
}

// ProcessSprintDocumentAt records path as the sprint document path and ingests that path.
func (c *Controller) ProcessSprintDocumentAt(ctx context.Context, path string) (domain.SprintDocumentResult, error) {
	c.View.SetSprintDocumentPath(path)
	return c.processSprintDocument(ctx, path)
}

func (c *Controller) processSprintDocument(ctx context.Context, path string) (domain.SprintDocumentResult, error) {
	path = strings.TrimSpace(path)
	if err := c.checkDocumentPath(path); err != nil {
		return domain.SprintDocumentResult{}, c.fail("process sprint document", err)
	}
	v, err := c.once("sprint:"+path, func() (any, error) {
		return c.API.ProcessSprintDocument(ctx, path)
	})
	if err != nil {
		return domain.SprintDocumentResult{}, c.fail("process sprint document", err)
	}
	res := v.(domain.SprintDocumentResult)
	if res.Message != domain.SprintDocumentProcessedMessage {
		return res, c.fail("process sprint document", &domain.APIError{StatusCode: 200, Message: unexpectedMessage(res.Message)})
	}
	c.record(ctx, events.TypeSprintIngest, "document", path, events.EventPayload{
		"sprint_goal":     res.SprintGoal,
		"user_stories":    len(res.UserStories),
		"tickets_created": res.TicketsCreated,
	})
	if err := c.Cache.Reload(ctx); err != nil {
		return res, c.fail("reload after sprint document", err)
	}
	c.View.SetSprintDocumentPath("")
	c.succeed(fmt.Sprintf("Sprint document processed successfully! Goal: %s. %d user stories, %d tickets created.", res.SprintGoal, len(res.UserStories), res.TicketsCreated))
	return res, nil
}

func unexpectedMessage(msg string) string {
	if msg == "" {
		return "Document processing returned no confirmation"
	}
	return msg
}

// Dashboard fetches the payload once and builds the renderable view. A payload
// without a summary produces a diagnostic view rather than an error.
func (c *Controller) Dashboard(ctx context.Context) (dashboard.View, error) {
	scope := c.View.Scope()
	callCtx, cancel := bind(ctx, scope)
	defer cancel()
	payload, raw, err := c.API.Dashboard(callCtx)
	if err != nil && !domain.IsSchema(err) {
		return dashboard.View{}, c.fail("dashboard", err)
	}
	if !scope.Active() {
		return dashboard.View{}, ErrStale
	}
	if err != nil {
		return dashboard.Diagnose(raw, err), nil
	}
	return dashboard.Build(payload, raw), nil
}
