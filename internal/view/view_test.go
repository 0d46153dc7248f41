package view_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsprint/internal/domain"
	"smartsprint/internal/view"
)

type lookup map[int64]domain.Ticket

func (l lookup) Ticket(id int64) (domain.Ticket, bool) {
	t, ok := l[id]
	return t, ok
}

func loaded(m *view.Machine) {
	m.Mutate(func(s *view.Selection) {
		s.Recommendations = []domain.Recommendation{{DeveloperID: 1}}
		s.RecommendationsLoaded = true
		s.Timeline = &domain.TimelineEstimate{EstimatedHours: 3}
		s.Performance = &domain.DeveloperPerformance{Accuracy: 0.9}
		s.PerformanceLoaded = true
	})
}

func TestInitialViewIsDashboard(t *testing.T) {
	m := view.New(context.Background())
	assert.Equal(t, view.Dashboard, m.Active())
	assert.Len(t, view.All, 12)
	assert.Equal(t, domain.NewTicketDraft(), m.TicketDraft())
	assert.Equal(t, domain.NewCompletionForm(), m.CompletionDraft())
}

func TestNavigateClearsPerView(t *testing.T) {
	m := view.New(context.Background())
	require.NoError(t, m.OpenTicket(view.ViewTicket, 7))
	m.OpenDeveloper(3)
	loaded(m)

	require.NoError(t, m.Navigate(view.Complete))
	sel := m.Selection()
	assert.Nil(t, sel.TicketID)
	assert.NotEmpty(t, sel.Recommendations, "complete only clears the ticket")
	assert.NotNil(t, sel.DeveloperID)

	require.NoError(t, m.OpenTicket(view.ViewTicket, 7))
	loaded(m)
	require.NoError(t, m.Navigate(view.Assign))
	sel = m.Selection()
	assert.Nil(t, sel.TicketID)
	assert.Empty(t, sel.Recommendations)
	assert.False(t, sel.RecommendationsLoaded)
	assert.Nil(t, sel.Timeline)
	assert.NotNil(t, sel.Performance, "assign leaves performance alone")

	require.NoError(t, m.Navigate(view.Performance))
	sel = m.Selection()
	assert.Nil(t, sel.DeveloperID)
	assert.Nil(t, sel.Performance)
	assert.Equal(t, view.Performance, m.Active())
}

func TestNavigateOtherViewsKeepSelection(t *testing.T) {
	m := view.New(context.Background())
	require.NoError(t, m.OpenTicket(view.Assign, 4))
	loaded(m)
	for _, v := range []view.View{view.Tickets, view.Dashboard, view.Developers, view.Status, view.Document, view.Sprint, view.Save, view.Create} {
		require.NoError(t, m.Navigate(v))
		assert.Equal(t, v, m.Active())
	}
	sel := m.Selection()
	require.NotNil(t, sel.TicketID)
	assert.Equal(t, int64(4), *sel.TicketID)
	assert.NotEmpty(t, sel.Recommendations)
	assert.Error(t, m.Navigate(view.View("reports")))
}

func TestOpenTicketCarriesSelection(t *testing.T) {
	m := view.New(context.Background())
	require.NoError(t, m.OpenTicket(view.ViewTicket, 9))
	loaded(m)
	require.NoError(t, m.OpenTicket(view.Assign, 9))
	sel := m.Selection()
	assert.Equal(t, view.Assign, m.Active())
	assert.Equal(t, int64(9), *sel.TicketID)
	assert.NotEmpty(t, sel.Recommendations, "same ticket keeps its recommendations")

	require.NoError(t, m.OpenTicket(view.Assign, 10))
	sel = m.Selection()
	assert.Empty(t, sel.Recommendations, "recommendations belong to the previous ticket")
	assert.Error(t, m.OpenTicket(view.Dashboard, 10))
}

func TestSelectedTicketIsReResolved(t *testing.T) {
	m := view.New(context.Background())
	require.NoError(t, m.OpenTicket(view.ViewTicket, 1))
	cache := lookup{1: {ID: 1, Title: "A", Status: domain.StatusBacklog}}
	tk, ok := m.SelectedTicket(cache)
	require.True(t, ok)
	assert.Equal(t, domain.StatusBacklog, tk.Status)

	cache[1] = domain.Ticket{ID: 1, Title: "A", Status: domain.StatusInProgress}
	tk, _ = m.SelectedTicket(cache)
	assert.Equal(t, domain.StatusInProgress, tk.Status)

	delete(cache, 1)
	_, ok = m.SelectedTicket(cache)
	assert.False(t, ok)
}

func TestScopeIsCancelledOnViewChange(t *testing.T) {
	m := view.New(context.Background())
	require.NoError(t, m.Navigate(view.Assign))
	scope := m.Scope()
	assert.True(t, scope.Active())
	assert.Equal(t, view.Assign, scope.View())

	require.NoError(t, m.Navigate(view.Tickets))
	assert.False(t, scope.Active())
	assert.ErrorIs(t, scope.Context().Err(), context.Canceled)

	applied := m.Update(scope, func(s *view.Selection) {
		s.Recommendations = []domain.Recommendation{{DeveloperID: 2}}
	})
	assert.False(t, applied)
	assert.Empty(t, m.Selection().Recommendations)

	fresh := m.Scope()
	assert.True(t, m.Update(fresh, func(s *view.Selection) { s.RecommendationsLoaded = true }))
	assert.True(t, m.Selection().RecommendationsLoaded)
}

func TestReenteringSameViewStartsNewScope(t *testing.T) {
	m := view.New(context.Background())
	scope := m.Scope()
	require.NoError(t, m.Navigate(view.Dashboard))
	assert.False(t, scope.Active())
}

func TestOnChangeListeners(t *testing.T) {
	m := view.New(context.Background())
	var seen []view.View
	m.OnChange(func(v view.View) { seen = append(seen, v) })
	require.NoError(t, m.Navigate(view.Tickets))
	m.OpenDeveloper(2)
	assert.Equal(t, []view.View{view.Tickets, view.Performance}, seen)
}

func TestDraftsPersist(t *testing.T) {
	m := view.New(context.Background())
	form := domain.CompletionForm{CompletionTime: 4, Revisions: 2, SentimentScore: 0.5}
	m.SetCompletionDraft(form)
	require.NoError(t, m.OpenTicket(view.Complete, 1))
	require.NoError(t, m.Navigate(view.Complete))
	require.NoError(t, m.OpenTicket(view.Complete, 2))
	assert.Equal(t, form, m.CompletionDraft())

	m.SetTicketDraft(domain.TicketDraft{Title: "x"})
	m.ResetTicketDraft()
	assert.Equal(t, domain.NewTicketDraft(), m.TicketDraft())
}
