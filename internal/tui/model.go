package tui

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"smartsprint/internal/dashboard"
	"smartsprint/internal/domain"
	"smartsprint/internal/render"
	"smartsprint/internal/view"
	"smartsprint/internal/workflow"
)

// Session is the part of the session manager the UI drives.
type Session interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context)
	Authenticated() bool
	User() (domain.User, bool)
	Notice() string
}

// startedMsg is sent when the initial cache load finishes.
type startedMsg struct{ err error }

type loginMsg struct{ err error }

type dashboardMsg struct {
	view dashboard.View
	err  error
}

// doneMsg is sent when a workflow call finishes. output, when set, replaces
// the result pane of the active view.
type doneMsg struct {
	output string
	err    error
}

type formKind int

const (
	formNone formKind = iota
	formLogin
	formCreate
	formComplete
	formDocument
	formSprint
)

type field struct {
	label string
	input textinput.Model
}

// Model is the bubbletea model of the sprint UI. The active view and the
// selection live in the controller's view machine; the model only keeps
// presentation state.
type Model struct {
	ctx     context.Context
	ctl     *workflow.Controller
	session Session
	keys    KeyMap
	theme   Theme
	spinner spinner.Model

	reportDir string

	width  int
	height int

	active view.View
	cursor int
	busy   bool
	dash   *dashboard.View
	output string

	form   formKind
	fields []field
	focus  int
}

// NewModel returns the UI for ctl. Without an authenticated session it
// starts on the login form.
func NewModel(ctx context.Context, ctl *workflow.Controller, sess Session) Model {
	m := Model{
		ctx:     ctx,
		ctl:     ctl,
		session: sess,
		keys:    DefaultKeyMap,
		theme:   DefaultTheme,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		active:  ctl.View.Active(),
	}
	if !sess.Authenticated() {
		m.openForm(formLogin)
	}
	return m
}

// SetReportDir sets where progress reports are written.
func (m *Model) SetReportDir(dir string) {
	m.reportDir = dir
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.form == formLogin {
		return textinput.Blink
	}
	return m.startCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loginMsg:
		m.busy = false
		if msg.err != nil {
			m.ctl.View.SetNotice(loginNotice(msg.err))
			return m, nil
		}
		m.closeForm()
		m.ctl.View.SetNotice("")
		return m.busyWith(m.startCmd())

	case startedMsg:
		m.busy = false
		if msg.err != nil {
			return m.afterError(msg.err)
		}
		cmd := m.enter(m.ctl.View.Active())
		return m, cmd

	case dashboardMsg:
		m.busy = false
		if msg.err != nil {
			return m.afterError(msg.err)
		}
		v := msg.view
		m.dash = &v
		return m, nil

	case doneMsg:
		m.busy = false
		if msg.err != nil {
			return m.afterError(msg.err)
		}
		if msg.output != "" {
			m.output = msg.output
		}
		cmd := m.sync()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	if m.form != formNone {
		return m.updateInput(msg)
	}
	return m, nil
}

// loginNotice shows the server's reason for a rejected login instead of the
// expired-session text.
func loginNotice(err error) string {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		if authErr.Message != "" {
			return authErr.Message
		}
		return "Invalid username or password"
	}
	return workflow.NoticeFor(err)
}

func (m *Model) run(cmd tea.Cmd) tea.Cmd {
	m.busy = true
	return tea.Batch(cmd, m.spinner.Tick)
}

// busyWith is run for Update's return path.
func (m Model) busyWith(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	c := m.run(cmd)
	return m, c
}

func action(fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		out, err := fn()
		return doneMsg{output: out, err: err}
	}
}

func capture(fn func(w io.Writer)) string {
	var b strings.Builder
	fn(&b)
	return b.String()
}

func (m Model) startCmd() tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		return startedMsg{err: ctl.Start(ctx)}
	}
}

func (m Model) dashboardCmd() tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return func() tea.Msg {
		v, err := ctl.Dashboard(ctx)
		return dashboardMsg{view: v, err: err}
	}
}

// afterError drops stale results and falls back to the login form once the
// session is gone. Other failures are already on the notice line.
func (m Model) afterError(err error) (tea.Model, tea.Cmd) {
	if errors.Is(err, workflow.ErrStale) || errors.Is(err, context.Canceled) {
		return m, nil
	}
	if !m.session.Authenticated() {
		m.dash = nil
		m.ctl.View.SetNotice(m.session.Notice())
		m.openForm(formLogin)
		return m, textinput.Blink
	}
	return m, nil
}

// enter shows v and starts whatever load the view needs on mount.
func (m *Model) enter(v view.View) tea.Cmd {
	m.stashForm()
	m.closeForm()
	m.active = v
	m.cursor = 0
	m.output = ""
	sel := m.ctl.View.Selection()
	switch v {
	case view.Dashboard:
		m.dash = nil
		return m.run(m.dashboardCmd())
	case view.Create:
		m.openForm(formCreate)
		return textinput.Blink
	case view.Document:
		m.openForm(formDocument)
		return textinput.Blink
	case view.Sprint:
		m.openForm(formSprint)
		return textinput.Blink
	case view.Complete:
		if sel.TicketID != nil {
			m.openForm(formComplete)
			return textinput.Blink
		}
	case view.Assign:
		if sel.TicketID != nil && !sel.RecommendationsLoaded {
			return m.run(m.recommendationsCmd())
		}
	case view.Performance:
		if sel.DeveloperID != nil && !sel.PerformanceLoaded {
			ctl, ctx := m.ctl, m.ctx
			return m.run(action(func() (string, error) {
				_, err := ctl.LoadPerformance(ctx)
				return "", err
			}))
		}
	}
	return nil
}

func (m *Model) navigate(v view.View) tea.Cmd {
	if err := m.ctl.View.Navigate(v); err != nil {
		m.ctl.View.SetNotice(err.Error())
		return nil
	}
	return m.enter(v)
}

func (m *Model) open(v view.View, ticketID int64) tea.Cmd {
	if err := m.ctl.View.OpenTicket(v, ticketID); err != nil {
		m.ctl.View.SetNotice(err.Error())
		return nil
	}
	return m.enter(v)
}

// sync reconciles presentation state after a workflow call changed the
// view machine.
func (m *Model) sync() tea.Cmd {
	if v := m.ctl.View.Active(); v != m.active {
		// the controller consumed the form before moving on
		m.closeForm()
		return m.enter(v)
	}
	sel := m.ctl.View.Selection()
	switch m.form {
	case formComplete:
		if sel.TicketID == nil {
			m.closeForm()
		}
	case formDocument:
		m.fields[0].input.SetValue(m.ctl.View.DocumentPath())
	case formSprint:
		m.fields[0].input.SetValue(m.ctl.View.SprintDocumentPath())
	}
	if n := m.rows(); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	return nil
}

func (m Model) recommendationsCmd() tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return action(func() (string, error) {
		_, err := ctl.FetchRecommendations(ctx)
		return "", err
	})
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Abort) {
		return m, tea.Quit
	}
	if m.form != formNone {
		return m.handleFormKey(msg)
	}
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		cmd := m.back()
		return m, cmd
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.rows()-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		if m.active == view.Dashboard {
			m.dash = nil
			return m.busyWith(m.dashboardCmd())
		}
		ctl, ctx := m.ctl, m.ctx
		return m.busyWith(action(func() (string, error) { return "", ctl.Start(ctx) }))
	case key.Matches(msg, m.keys.Logout):
		m.session.Logout(m.ctx)
		m.dash = nil
		m.openForm(formLogin)
		return m, textinput.Blink
	}
	for _, v := range navViews {
		if key.Matches(msg, m.keys.Views[v]) {
			cmd := m.navigate(v)
			return m, cmd
		}
	}
	return m.handleViewKey(msg)
}

func (m *Model) back() tea.Cmd {
	sel := m.ctl.View.Selection()
	switch m.active {
	case view.Assign:
		if sel.TicketID != nil {
			m.ctl.CancelAssignment()
			m.cursor = 0
			return nil
		}
	case view.ViewTicket:
		return m.navigate(view.Tickets)
	case view.Performance:
		return m.navigate(view.Developers)
	case view.Dashboard:
		return nil
	}
	return m.navigate(view.Dashboard)
}

func (m Model) handleViewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctl, ctx := m.ctl, m.ctx
	switch m.active {
	case view.Tickets:
		if key.Matches(msg, m.keys.Select) {
			if t, ok := m.rowTicket(); ok {
				cmd := m.open(view.ViewTicket, t.ID)
				return m, cmd
			}
		}

	case view.ViewTicket:
		t, ok := ctl.View.SelectedTicket(ctl.Cache)
		if !ok {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Export):
			return m.busyWith(action(func() (string, error) { return "", ctl.ExportToJira(ctx, t.ID) }))
		case key.Matches(msg, m.keys.Assign) && t.Status == domain.StatusBacklog:
			cmd := m.open(view.Assign, t.ID)
			return m, cmd
		case key.Matches(msg, m.keys.Complete) && t.Status == domain.StatusInProgress:
			cmd := m.open(view.Complete, t.ID)
			return m, cmd
		}

	case view.Developers:
		if key.Matches(msg, m.keys.Select) {
			devs := ctl.Cache.Developers()
			if m.cursor < len(devs) {
				if err := ctl.SelectDeveloper(devs[m.cursor].ID); err != nil {
					return m, nil
				}
				cmd := m.enter(view.Performance)
				return m, cmd
			}
		}

	case view.Assign:
		if !key.Matches(msg, m.keys.Select) {
			return m, nil
		}
		sel := ctl.View.Selection()
		if sel.TicketID == nil {
			t, ok := m.rowTicket()
			if !ok || ctl.SelectTicket(t.ID) != nil {
				return m, nil
			}
			m.cursor = 0
			return m.busyWith(m.recommendationsCmd())
		}
		if sel.RecommendationsLoaded && m.cursor < len(sel.Recommendations) {
			devID := sel.Recommendations[m.cursor].DeveloperID
			return m.busyWith(action(func() (string, error) { return "", ctl.Assign(ctx, devID) }))
		}

	case view.Complete:
		if key.Matches(msg, m.keys.Select) {
			t, ok := m.rowTicket()
			if !ok || ctl.SelectForCompletion(t.ID) != nil {
				return m, nil
			}
			m.openForm(formComplete)
			return m, textinput.Blink
		}

	case view.Status:
		switch {
		case key.Matches(msg, m.keys.Optimize):
			return m.busyWith(action(func() (string, error) {
				res, err := ctl.OptimizeWorkload(ctx)
				return capture(func(w io.Writer) { render.Optimize(w, res) }), err
			}))
		case key.Matches(msg, m.keys.Balance):
			return m.busyWith(action(func() (string, error) {
				rep, err := ctl.BalanceWorkload(ctx)
				return capture(func(w io.Writer) { render.Balance(w, rep) }), err
			}))
		case key.Matches(msg, m.keys.Adjust):
			return m.busyWith(action(func() (string, error) {
				res, err := ctl.AdjustPriorities(ctx)
				return capture(func(w io.Writer) { render.Adjustments(w, res) }), err
			}))
		case key.Matches(msg, m.keys.Report):
			dir := m.reportDir
			return m.busyWith(action(func() (string, error) {
				_, rep, err := ctl.SaveProgressReport(ctx, dir)
				if err != nil {
					return "", err
				}
				return render.ProgressReportText(rep), nil
			}))
		}

	case view.Save:
		if key.Matches(msg, m.keys.Select) {
			return m.busyWith(action(func() (string, error) { return "", ctl.SaveData(ctx) }))
		}
	}
	return m, nil
}

// rows is the length of the list the cursor moves over.
func (m Model) rows() int {
	sel := m.ctl.View.Selection()
	switch m.active {
	case view.Tickets:
		return len(m.ctl.Cache.Tickets())
	case view.Developers:
		return len(m.ctl.Cache.Developers())
	case view.Assign:
		if sel.TicketID == nil {
			return len(m.ctl.AssignableTickets())
		}
		return len(sel.Recommendations)
	case view.Complete:
		if sel.TicketID == nil {
			return len(m.ctl.CompletableTickets())
		}
	}
	return 0
}

func (m Model) listTickets() []domain.Ticket {
	switch m.active {
	case view.Assign:
		return m.ctl.AssignableTickets()
	case view.Complete:
		return m.ctl.CompletableTickets()
	default:
		return m.ctl.Cache.Tickets()
	}
}

func (m Model) rowTicket() (domain.Ticket, bool) {
	tickets := m.listTickets()
	if m.cursor < 0 || m.cursor >= len(tickets) {
		return domain.Ticket{}, false
	}
	return tickets[m.cursor], true
}

// --- forms ---

func newField(label, value string) field {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = label
	in.SetValue(value)
	return field{label: label, input: in}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (m *Model) openForm(kind formKind) {
	m.form = kind
	switch kind {
	case formLogin:
		m.fields = []field{newField("Username", ""), newField("Password", "")}
		m.fields[1].input.EchoMode = textinput.EchoPassword
	case formCreate:
		d := m.ctl.View.TicketDraft()
		m.fields = []field{
			newField("Title", d.Title),
			newField("Description", d.Description),
			newField("Priority", string(d.Priority)),
			newField("Estimated hours", formatFloat(d.EstimatedHours)),
		}
	case formComplete:
		f := m.ctl.View.CompletionDraft()
		m.fields = []field{
			newField("Completion time (h)", formatFloat(f.CompletionTime)),
			newField("Revisions", strconv.Itoa(f.Revisions)),
			newField("Sentiment (0-1)", formatFloat(f.SentimentScore)),
		}
	case formDocument:
		m.fields = []field{newField("Document path", m.ctl.View.DocumentPath())}
	case formSprint:
		m.fields = []field{newField("Sprint document path", m.ctl.View.SprintDocumentPath())}
	}
	m.focusField(0)
}

func (m *Model) closeForm() {
	m.form = formNone
	m.fields = nil
	m.focus = 0
}

// stashForm keeps unsent form input in the view machine drafts.
func (m *Model) stashForm() {
	switch m.form {
	case formCreate:
		if d, err := m.ticketDraft(); err == nil {
			m.ctl.View.SetTicketDraft(d)
		}
	case formComplete:
		if f, err := m.completionForm(); err == nil {
			m.ctl.UpdateCompletionForm(f)
		}
	case formDocument:
		m.ctl.View.SetDocumentPath(m.value(0))
	case formSprint:
		m.ctl.View.SetSprintDocumentPath(m.value(0))
	}
}

func (m *Model) focusField(i int) {
	if len(m.fields) == 0 {
		return
	}
	i = (i + len(m.fields)) % len(m.fields)
	for j := range m.fields {
		m.fields[j].input.Blur()
	}
	m.fields[i].input.Focus()
	m.focus = i
}

func (m Model) value(i int) string {
	if i >= len(m.fields) {
		return ""
	}
	return strings.TrimSpace(m.fields[i].input.Value())
}

func (m Model) ticketDraft() (domain.TicketDraft, error) {
	hours, err := strconv.ParseFloat(m.value(3), 64)
	if err != nil {
		return domain.TicketDraft{}, &domain.ValidationError{Field: "estimated_hours", Reason: "must be a number"}
	}
	return domain.TicketDraft{
		Title:          m.value(0),
		Description:    m.value(1),
		Priority:       domain.Priority(strings.ToLower(m.value(2))),
		EstimatedHours: hours,
	}, nil
}

func (m Model) completionForm() (domain.CompletionForm, error) {
	hours, err := strconv.ParseFloat(m.value(0), 64)
	if err != nil {
		return domain.CompletionForm{}, &domain.ValidationError{Field: "completion_time", Reason: "must be a number"}
	}
	revisions, err := strconv.Atoi(m.value(1))
	if err != nil {
		return domain.CompletionForm{}, &domain.ValidationError{Field: "revisions", Reason: "must be a whole number"}
	}
	sentiment, err := strconv.ParseFloat(m.value(2), 64)
	if err != nil {
		return domain.CompletionForm{}, &domain.ValidationError{Field: "sentiment_score", Reason: "must be a number"}
	}
	return domain.CompletionForm{CompletionTime: hours, Revisions: revisions, SentimentScore: sentiment}, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		switch m.form {
		case formLogin:
			return m, nil
		case formComplete:
			m.stashForm()
			m.closeForm()
			m.ctl.View.Mutate(func(s *view.Selection) { s.TicketID = nil })
			return m, nil
		}
		cmd := m.navigate(view.Dashboard)
		return m, cmd
	case key.Matches(msg, m.keys.Next):
		m.focusField(m.focus + 1)
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.focusField(m.focus - 1)
		return m, nil
	case key.Matches(msg, m.keys.Select):
		if m.focus < len(m.fields)-1 {
			m.focusField(m.focus + 1)
			return m, nil
		}
		return m.submit()
	}
	return m.updateInput(msg)
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if len(m.fields) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.fields[m.focus].input, cmd = m.fields[m.focus].input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	ctl, ctx, sess := m.ctl, m.ctx, m.session
	switch m.form {
	case formLogin:
		username, password := m.value(0), m.fields[1].input.Value()
		return m.busyWith(func() tea.Msg {
			return loginMsg{err: sess.Login(ctx, username, password)}
		})

	case formCreate:
		draft, err := m.ticketDraft()
		if err != nil {
			ctl.View.SetNotice(workflow.NoticeFor(err))
			return m, nil
		}
		ctl.View.SetTicketDraft(draft)
		return m.busyWith(action(func() (string, error) {
			_, err := ctl.CreateTicket(ctx)
			return "", err
		}))

	case formComplete:
		form, err := m.completionForm()
		if err != nil {
			ctl.View.SetNotice(workflow.NoticeFor(err))
			return m, nil
		}
		ctl.UpdateCompletionForm(form)
		return m.busyWith(action(func() (string, error) { return "", ctl.SubmitCompletion(ctx) }))

	case formDocument:
		path := m.value(0)
		return m.busyWith(action(func() (string, error) {
			res, err := ctl.ProcessDocumentAt(ctx, path)
			if err != nil {
				return "", err
			}
			return capture(func(w io.Writer) { render.Document(w, res) }), nil
		}))

	case formSprint:
		path := m.value(0)
		return m.busyWith(action(func() (string, error) {
			res, err := ctl.ProcessSprintDocumentAt(ctx, path)
			if err != nil {
				return "", err
			}
			return capture(func(w io.Writer) { render.SprintDocument(w, res) }), nil
		}))
	}
	return m, nil
}
