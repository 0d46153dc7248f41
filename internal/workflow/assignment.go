package workflow

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"smartsprint/internal/domain"
	"smartsprint/internal/events"
	"smartsprint/internal/view"
)

type AssignmentState int

const (
	NoTicketSelected AssignmentState = iota
	TicketSelected
	RecommendationsLoaded
)

func (s AssignmentState) String() string {
	switch s {
	case NoTicketSelected:
		return "no_ticket_selected"
	case TicketSelected:
		return "ticket_selected"
	case RecommendationsLoaded:
		return "recommendations_loaded"
	default:
		return "unknown"
	}
}

// AssignmentState derives the assignment step from the view selection.
func (c *Controller) AssignmentState() AssignmentState {
	sel := c.View.Selection()
	switch {
	case sel.TicketID == nil:
		return NoTicketSelected
	case sel.RecommendationsLoaded:
		return RecommendationsLoaded
	default:
		return TicketSelected
	}
}

// EstimateTimeline derives the local timeline shown next to recommendations.
func EstimateTimeline(t domain.Ticket) domain.TimelineEstimate {
	return domain.TimelineEstimate{
		EstimatedHours: int(math.Ceil(t.EstimatedHours)),
		Complexity:     t.Complexity,
		MeanDuration:   int(math.Ceil(t.EstimatedHours * 1.2)),
		RiskLevel:      domain.RiskMedium,
	}
}

// AssignableTickets lists the tickets the assignment view offers.
func (c *Controller) AssignableTickets() []domain.Ticket {
	return c.Cache.TicketsByStatus(domain.StatusBacklog)
}

// SelectTicket picks a backlog ticket to assign.
func (c *Controller) SelectTicket(ticketID int64) error {
	if st := c.AssignmentState(); st != NoTicketSelected {
		return c.fail("select ticket", fmt.Errorf("%w: ticket already selected (%s)", domain.ErrInvalidState, st))
	}
	t, ok := c.Cache.Ticket(ticketID)
	if !ok {
		return c.fail("select ticket", fmt.Errorf("ticket %d: %w", ticketID, domain.ErrNotFound))
	}
	if t.Status != domain.StatusBacklog {
		return c.fail("select ticket", &domain.ValidationError{Field: "ticket", Reason: fmt.Sprintf("must be in backlog, is %s", t.Status.Label())})
	}
	c.View.Mutate(func(s *view.Selection) {
		s.ClearAssignment()
		id := ticketID
		s.TicketID = &id
	})
	return nil
}

// FetchRecommendations loads ranked developers for the selected ticket. It
// issues no request when recommendations are already present.
func (c *Controller) FetchRecommendations(ctx context.Context) ([]domain.Recommendation, error) {
	sel := c.View.Selection()
	if sel.TicketID == nil {
		return nil, c.fail("fetch recommendations", fmt.Errorf("%w: no ticket selected", domain.ErrInvalidState))
	}
	if len(sel.Recommendations) > 0 {
		return sel.Recommendations, nil
	}
	ticketID := *sel.TicketID
	scope := c.View.Scope()
	v, err := c.once("recommendations:"+strconv.FormatInt(ticketID, 10), func() (any, error) {
		callCtx, cancel := bind(ctx, scope)
		defer cancel()
		return c.API.Recommendations(callCtx, ticketID)
	})
	if err != nil {
		return nil, c.fail("fetch recommendations", err)
	}
	recs := v.([]domain.Recommendation)

	var timeline *domain.TimelineEstimate
	if len(recs) > 0 {
		if t, ok := c.Cache.Ticket(ticketID); ok {
			tl := EstimateTimeline(t)
			timeline = &tl
		}
	}
	applied := c.View.Update(scope, func(s *view.Selection) {
		if s.TicketID == nil || *s.TicketID != ticketID {
			return
		}
		s.Recommendations = recs
		s.RecommendationsLoaded = true
		s.Timeline = timeline
	})
	if !applied {
		c.logger().Debug("recommendations discarded", "ticket_id", ticketID)
		return recs, ErrStale
	}
	if len(recs) == 0 {
		c.succeed("No developer recommendations available for this ticket.")
	}
	return recs, nil
}

// Timeline returns the derived estimate for the current selection, if any.
func (c *Controller) Timeline() (domain.TimelineEstimate, bool) {
	sel := c.View.Selection()
	if sel.Timeline == nil {
		return domain.TimelineEstimate{}, false
	}
	return *sel.Timeline, true
}

// Assign assigns the selected ticket and resets the workflow.
func (c *Controller) Assign(ctx context.Context, developerID int64) error {
	sel := c.View.Selection()
	if sel.TicketID == nil || !sel.RecommendationsLoaded {
		return c.fail("assign", fmt.Errorf("%w: recommendations not loaded", domain.ErrInvalidState))
	}
	t, ok := c.View.SelectedTicket(c.Cache)
	if !ok {
		return c.fail("assign", fmt.Errorf("ticket %d: %w", *sel.TicketID, domain.ErrNotFound))
	}
	if t.Status != domain.StatusBacklog {
		return c.fail("assign", &domain.ValidationError{Field: "ticket", Reason: fmt.Sprintf("must be in backlog, is %s", t.Status.Label())})
	}
	if !c.assignable(sel, developerID) {
		return c.fail("assign", &domain.ValidationError{Field: "developer_id", Reason: fmt.Sprintf("%d is not a known developer", developerID)})
	}
	ticketID := *sel.TicketID
	_, err := c.once("assign:"+strconv.FormatInt(ticketID, 10), func() (any, error) {
		return nil, c.API.AssignTicket(ctx, ticketID, developerID)
	})
	if err != nil {
		return c.fail("assign", err)
	}
	c.View.Mutate(func(s *view.Selection) { s.ClearAssignment() })
	c.record(ctx, events.TypeTicketAssigned, "ticket", strconv.FormatInt(ticketID, 10), events.EventPayload{"developer_id": developerID})
	if err := c.Cache.ReloadTickets(ctx); err != nil {
		return c.fail("reload after assign", err)
	}
	c.succeed("Ticket assigned successfully!")
	return nil
}

func (c *Controller) assignable(sel view.Selection, developerID int64) bool {
	for _, r := range sel.Recommendations {
		if r.DeveloperID == developerID {
			return true
		}
	}
	_, ok := c.Cache.Developer(developerID)
	return ok
}

// CancelAssignment returns to NoTicketSelected from any step.
func (c *Controller) CancelAssignment() {
	c.View.Mutate(func(s *view.Selection) { s.ClearAssignment() })
}
