package tui

import (
	"context"
	"net/http/httptest"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsprint/internal/api"
	"smartsprint/internal/cache"
	"smartsprint/internal/domain"
	"smartsprint/internal/server"
	"smartsprint/internal/session"
	"smartsprint/internal/view"
	"smartsprint/internal/workflow"
)

type harness struct {
	client  *api.Client
	session *session.Manager
	ctl     *workflow.Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	handler, err := server.New(server.Config{Store: server.SeedStore()})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client := api.New(srv.URL)
	mgr := session.New(session.NewMemoryStore(), client)
	client.Tokens = mgr
	client.OnUnauthorized = mgr.Expire

	v := view.New(ctx)
	t.Cleanup(v.Close)
	ctl := workflow.New(client, cache.New(client), v)
	ctl.Identity = mgr
	return &harness{client: client, session: mgr, ctl: ctl}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	tabKey   = tea.KeyMsg{Type: tea.KeyTab}
)

// settle runs cmd and every follow-up command, feeding back only the
// model's own result messages. Blink and tick messages are dropped.
func settle(t *testing.T, m tea.Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 200, "commands did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case loginMsg, startedMsg, dashboardMsg, doneMsg:
			var next tea.Cmd
			m, next = m.Update(msg)
			queue = append(queue, next)
		}
	}
	return m.(Model)
}

// press sends k and settles the resulting commands.
func press(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(k)
	return settle(t, next, cmd)
}

// typeText types into the focused field. The returned cursor blink commands
// are not run.
func typeText(m Model, s string) Model {
	next, _ := m.Update(keyRunes(s))
	return next.(Model)
}

func login(t *testing.T, h *harness) Model {
	t.Helper()
	m := NewModel(context.Background(), h.ctl, h.session)
	require.Equal(t, formLogin, m.form)
	m = typeText(m, "admin")
	next, _ := m.Update(tabKey)
	m = typeText(next.(Model), "admin")
	return press(t, m, enterKey)
}

func TestLoginLoadsDashboard(t *testing.T) {
	h := newHarness(t)
	m := login(t, h)

	assert.Equal(t, formNone, m.form)
	assert.True(t, h.session.Authenticated())
	assert.Equal(t, view.Dashboard, m.active)
	require.NotNil(t, m.dash)
	assert.False(t, m.busy)

	out := m.View()
	assert.Contains(t, out, "Priority Distribution")
	assert.Contains(t, out, "admin")
}

func TestWrongPasswordStaysOnLogin(t *testing.T) {
	h := newHarness(t)
	m := NewModel(context.Background(), h.ctl, h.session)
	m = typeText(m, "admin")
	next, _ := m.Update(tabKey)
	m = typeText(next.(Model), "nope")
	m = press(t, m, enterKey)

	assert.Equal(t, formLogin, m.form)
	assert.False(t, h.session.Authenticated())
	assert.Contains(t, m.View(), "Invalid username or password")

	// esc cannot leave the login form
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, formLogin, m.form)
}

func TestAssignFromKeyboard(t *testing.T) {
	h := newHarness(t)
	m := login(t, h)

	m = press(t, m, keyRunes("5"))
	require.Equal(t, view.Assign, m.active)
	assert.Contains(t, m.View(), "Login API")

	m = press(t, m, enterKey)
	sel := h.ctl.View.Selection()
	require.NotNil(t, sel.TicketID)
	assert.Equal(t, int64(1), *sel.TicketID)
	require.True(t, sel.RecommendationsLoaded)
	require.NotEmpty(t, sel.Recommendations)
	top := sel.Recommendations[0]
	assert.Contains(t, m.View(), top.DeveloperName)

	m = press(t, m, enterKey)
	ticket, ok := h.ctl.Cache.Ticket(1)
	require.True(t, ok)
	assert.Equal(t, domain.StatusInProgress, ticket.Status)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, top.DeveloperID, *ticket.AssignedTo)
	assert.Nil(t, h.ctl.View.Selection().TicketID)
	assert.Contains(t, m.View(), "Ticket assigned successfully!")
}

func TestCancelAssignmentWithEsc(t *testing.T) {
	h := newHarness(t)
	m := login(t, h)
	m = press(t, m, keyRunes("5"))
	m = press(t, m, enterKey)
	require.NotNil(t, h.ctl.View.Selection().TicketID)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, view.Assign, m.active)
	assert.Nil(t, h.ctl.View.Selection().TicketID)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, view.Dashboard, m.active)
}

func TestCreateTicketForm(t *testing.T) {
	h := newHarness(t)
	m := login(t, h)

	m = press(t, m, keyRunes("4"))
	require.Equal(t, formCreate, m.form)
	assert.Equal(t, "medium", m.fields[2].input.Value())
	assert.Equal(t, "8", m.fields[3].input.Value())

	m = typeText(m, "Write docs")
	next, _ := m.Update(tabKey)
	m = typeText(next.(Model), "Document the public api")
	m = press(t, m, enterKey)
	m = press(t, m, enterKey)
	require.Equal(t, 3, m.focus)
	m = press(t, m, enterKey)

	assert.Equal(t, view.Dashboard, m.active)
	assert.Equal(t, formNone, m.form)
	require.Len(t, h.ctl.Cache.Tickets(), 4)
	assert.Equal(t, "", h.ctl.View.TicketDraft().Title)

	var found bool
	for _, tk := range h.ctl.Cache.Tickets() {
		if tk.Title == "Write docs" {
			found = true
			assert.Equal(t, domain.PriorityMedium, tk.Priority)
		}
	}
	assert.True(t, found)
}

func TestCreateTicketRejectsBadHours(t *testing.T) {
	h := newHarness(t)
	m := login(t, h)
	m = press(t, m, keyRunes("4"))
	m = typeText(m, "Write docs")
	m.fields[3].input.SetValue("lots")
	m.focusField(3)
	m = press(t, m, enterKey)

	assert.Equal(t, formCreate, m.form)
	assert.Len(t, h.ctl.Cache.Tickets(), 3)
	assert.Contains(t, m.View(), "estimated_hours must be a number")
}

func TestQuit(t *testing.T) {
	h := newHarness(t)
	m := login(t, h)
	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestExpiredSessionReturnsToLogin(t *testing.T) {
	h := newHarness(t)
	m := login(t, h)
	m = press(t, m, keyRunes("2"))
	require.Equal(t, view.Tickets, m.active)

	h.client.Tokens = staticToken("garbage")
	m = press(t, m, keyRunes("r"))

	assert.False(t, h.session.Authenticated())
	assert.Equal(t, formLogin, m.form)
	assert.Contains(t, m.View(), session.ExpiredNotice)
}

type staticToken string

func (s staticToken) Token() string { return string(s) }
