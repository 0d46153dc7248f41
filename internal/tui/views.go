package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"smartsprint/internal/domain"
	"smartsprint/internal/render"
	"smartsprint/internal/view"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	if m.form == formLogin {
		b.WriteString(m.theme.Title.Render("Login"))
		b.WriteString("\n\n")
		b.WriteString(m.formView())
	} else {
		b.WriteString(m.nav())
		b.WriteString("\n\n")
		b.WriteString(m.theme.Title.Render(m.active.Title()))
		b.WriteString("\n\n")
		b.WriteString(m.body())
	}

	if m.busy {
		b.WriteString("\n" + m.spinner.View() + " working...")
	}
	if notice := m.notice(); notice != "" {
		b.WriteString("\n" + m.theme.Notice.Render(notice))
	}
	b.WriteString("\n\n" + m.theme.Help.Render(m.help()))
	return b.String()
}

func (m Model) header() string {
	title := m.theme.Title.Render("Smart Sprint")
	if u, ok := m.session.User(); ok && m.form != formLogin {
		return title + m.theme.Faint.Render("  "+u.Username+" ("+u.Role+")")
	}
	return title
}

func (m Model) notice() string {
	if n := m.ctl.View.Notice(); n != "" {
		return n
	}
	if m.form == formLogin {
		return m.session.Notice()
	}
	return ""
}

func (m Model) nav() string {
	tabs := make([]string, 0, len(navViews))
	for _, v := range navViews {
		label := m.keys.Views[v].Help().Key + " " + v.Title()
		if v == m.active {
			tabs = append(tabs, m.theme.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, m.theme.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) body() string {
	sel := m.ctl.View.Selection()
	switch m.active {
	case view.Dashboard:
		if m.dash == nil {
			return m.theme.Faint.Render("Loading dashboard...")
		}
		return capture(func(w io.Writer) { render.Dashboard(w, *m.dash) })

	case view.Tickets:
		return m.ticketList(m.ctl.Cache.Tickets(), "No tickets yet.")

	case view.ViewTicket:
		t, ok := m.ctl.View.SelectedTicket(m.ctl.Cache)
		if !ok {
			return m.theme.Faint.Render("Ticket not found.")
		}
		return capture(func(w io.Writer) { render.Ticket(w, t) })

	case view.Developers:
		devs := m.ctl.Cache.Developers()
		if len(devs) == 0 {
			return m.theme.Faint.Render("No developers.")
		}
		var b strings.Builder
		for i, d := range devs {
			line := fmt.Sprintf("%-20s %-30s %s utilized", d.Name, strings.Join(d.Skills, ", "), render.Percent(d.Utilization()))
			b.WriteString(m.row(i, line) + "\n")
		}
		return b.String()

	case view.Performance:
		d, ok := m.ctl.View.SelectedDeveloper(m.ctl.Cache)
		if !ok {
			return m.theme.Faint.Render("No developer selected.")
		}
		if !sel.PerformanceLoaded {
			return m.theme.Faint.Render("Loading performance...")
		}
		return capture(func(w io.Writer) { render.Performance(w, d.Name, sel.Performance) })

	case view.Assign:
		if sel.TicketID == nil {
			return m.ticketList(m.ctl.AssignableTickets(), "No backlog tickets to assign.")
		}
		return m.assignBody(sel)

	case view.Complete:
		if sel.TicketID == nil {
			return m.ticketList(m.ctl.CompletableTickets(), "No tickets in progress.")
		}
		var b strings.Builder
		if t, ok := m.ctl.View.SelectedTicket(m.ctl.Cache); ok {
			b.WriteString(fmt.Sprintf("Completing #%d %s\n\n", t.ID, t.Title))
		}
		b.WriteString(m.formView())
		return b.String()

	case view.Create:
		return m.formView()

	case view.Document, view.Sprint:
		return m.formView() + "\n" + m.output

	case view.Status:
		var b strings.Builder
		if s, ok := m.ctl.Cache.Status(); ok {
			render.Status(&b, s)
		} else {
			b.WriteString(m.theme.Faint.Render("No status loaded.") + "\n")
		}
		if m.output != "" {
			b.WriteString("\n" + m.output)
		}
		return b.String()

	case view.Save:
		return "Press enter to save all system data on the server.\n"
	}
	return ""
}

func (m Model) assignBody(sel view.Selection) string {
	var b strings.Builder
	if t, ok := m.ctl.View.SelectedTicket(m.ctl.Cache); ok {
		b.WriteString(fmt.Sprintf("Assigning #%d %s ", t.ID, t.Title))
		b.WriteString(priorityStyle(t.Priority).Render(string(t.Priority)))
		b.WriteString("\n\n")
	}
	if !sel.RecommendationsLoaded {
		b.WriteString(m.theme.Faint.Render("Loading recommendations..."))
		return b.String()
	}
	if len(sel.Recommendations) == 0 {
		b.WriteString("No developer recommendations available for this ticket.\n")
		return b.String()
	}
	for i, r := range sel.Recommendations {
		line := fmt.Sprintf("%-20s match %.2f  %s", r.DeveloperName, r.MatchScore, strings.Join(r.SkillsMatch, ", "))
		b.WriteString(m.row(i, line) + "\n")
	}
	if tl := sel.Timeline; tl != nil {
		b.WriteString(fmt.Sprintf("\nEstimated %dh, complexity %d, risk %s\n", tl.EstimatedHours, tl.Complexity, tl.RiskLevel))
	}
	return b.String()
}

func (m Model) ticketList(tickets []domain.Ticket, empty string) string {
	if len(tickets) == 0 {
		return m.theme.Faint.Render(empty)
	}
	var b strings.Builder
	for i, t := range tickets {
		line := fmt.Sprintf("#%-4d %-40s %s %s", t.ID, t.Title,
			statusStyle(t.Status).Render(fmt.Sprintf("%-12s", t.Status.Label())),
			priorityStyle(t.Priority).Render(string(t.Priority)))
		b.WriteString(m.row(i, line) + "\n")
	}
	return b.String()
}

func (m Model) row(i int, line string) string {
	if i == m.cursor {
		return m.theme.Selected.Render("> " + line)
	}
	return "  " + line
}

func (m Model) formView() string {
	var b strings.Builder
	for i, f := range m.fields {
		label := m.theme.Label.Render(f.label)
		if i == m.focus {
			label = m.theme.Selected.Render(fmt.Sprintf("%-18s", f.label))
		}
		b.WriteString(label + " " + f.input.View() + "\n")
	}
	return b.String()
}

func (m Model) help() string {
	var bindings []key.Binding
	switch {
	case m.form == formLogin:
		bindings = []key.Binding{m.keys.Next, m.keys.Select}
	case m.form != formNone:
		bindings = []key.Binding{m.keys.Next, m.keys.Prev, m.keys.Select, m.keys.Back}
	default:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Back}
		switch m.active {
		case view.ViewTicket:
			bindings = append(bindings, m.keys.Export, m.keys.Assign, m.keys.Complete)
		case view.Status:
			bindings = append(bindings, m.keys.Optimize, m.keys.Balance, m.keys.Adjust, m.keys.Report)
		}
		bindings = append(bindings, m.keys.Refresh, m.keys.Logout, m.keys.Quit)
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
