package workflow

import (
	"context"
	"fmt"
	"strconv"

	"smartsprint/internal/domain"
	"smartsprint/internal/events"
	"smartsprint/internal/view"
)

// CompletableTickets lists the tickets the completion view offers.
func (c *Controller) CompletableTickets() []domain.Ticket {
	return c.Cache.TicketsByStatus(domain.StatusInProgress)
}

// SelectForCompletion picks an in-progress ticket. The completion draft is kept.
func (c *Controller) SelectForCompletion(ticketID int64) error {
	t, ok := c.Cache.Ticket(ticketID)
	if !ok {
		return c.fail("select ticket", fmt.Errorf("ticket %d: %w", ticketID, domain.ErrNotFound))
	}
	if t.Status != domain.StatusInProgress {
		return c.fail("select ticket", &domain.ValidationError{Field: "ticket", Reason: fmt.Sprintf("must be in progress, is %s", t.Status.Label())})
	}
	c.View.Mutate(func(s *view.Selection) {
		id := ticketID
		s.TicketID = &id
	})
	return nil
}

// UpdateCompletionForm replaces the draft submitted by SubmitCompletion.
func (c *Controller) UpdateCompletionForm(form domain.CompletionForm) {
	c.View.SetCompletionDraft(form)
}

// SubmitCompletion validates the draft and completes the selected ticket.
// Validation failures never reach the backend.
func (c *Controller) SubmitCompletion(ctx context.Context) error {
	t, ok := c.View.SelectedTicket(c.Cache)
	if !ok {
		return c.fail("complete", fmt.Errorf("%w: no ticket selected", domain.ErrInvalidState))
	}
	if !t.Status.CanAdvanceTo(domain.StatusCompleted) {
		return c.fail("complete", &domain.ValidationError{Field: "ticket", Reason: fmt.Sprintf("must be in progress, is %s", t.Status.Label())})
	}
	form := c.View.CompletionDraft()
	if err := domain.ValidateForm(form); err != nil {
		return c.fail("complete", err)
	}
	_, err := c.once("complete:"+strconv.FormatInt(t.ID, 10), func() (any, error) {
		return nil, c.API.CompleteTicket(ctx, t.ID, form)
	})
	if err != nil {
		return c.fail("complete", err)
	}
	c.View.Mutate(func(s *view.Selection) { s.TicketID = nil })
	c.record(ctx, events.TypeTicketCompleted, "ticket", strconv.FormatInt(t.ID, 10), events.EventPayload{
		"completion_time": form.CompletionTime,
		"revisions":       form.Revisions,
		"sentiment_score": form.SentimentScore,
	})
	if err := c.Cache.ReloadTickets(ctx); err != nil {
		return c.fail("reload after complete", err)
	}
	c.succeed("Ticket completed successfully!")
	return nil
}
