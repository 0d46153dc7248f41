// Package render writes domain values as go-pretty tables and plain text.
package render

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"smartsprint/internal/dashboard"
	"smartsprint/internal/domain"
)

// BarWidth is the number of cells a 100% bar occupies.
const BarWidth = 30

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func optionalString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Tickets renders tickets with assignees resolved through developers.
func Tickets(w io.Writer, tickets []domain.Ticket, developers []domain.Developer) {
	names := make(map[int64]string, len(developers))
	for _, d := range developers {
		names[d.ID] = d.Name
	}
	tw := newTable(w, table.Row{"ID", "Title", "Status", "Priority", "Hours", "Complexity", "Assignee", "Jira"})
	for _, t := range tickets {
		assignee := optionalID(t.AssignedTo)
		if t.AssignedTo != nil {
			if name, ok := names[*t.AssignedTo]; ok {
				assignee = name
			}
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status.Label(), t.Priority, t.EstimatedHours, t.Complexity, assignee, optionalString(t.JiraID)})
	}
	tw.Render()
}

// Ticket renders the detail of one ticket.
func Ticket(w io.Writer, t domain.Ticket) {
	tw := newTable(w, table.Row{"Field", "Value"})
	tw.AppendRows([]table.Row{
		{"ID", t.ID},
		{"Title", t.Title},
		{"Description", text.WrapSoft(t.Description, 60)},
		{"Status", t.Status.Label()},
		{"Priority", t.Priority},
		{"Estimated hours", t.EstimatedHours},
		{"Complexity", t.Complexity},
		{"Assigned to", optionalID(t.AssignedTo)},
		{"Jira", optionalString(t.JiraID)},
		{"Created", t.CreatedAt},
		{"Completed", optionalString(t.CompletedAt)},
	})
	if len(t.Tasks) > 0 {
		tw.AppendRow(table.Row{"Tasks", strings.Join(t.Tasks, "\n")})
	}
	if len(t.Dependencies) > 0 {
		deps := make([]string, len(t.Dependencies))
		for i, d := range t.Dependencies {
			deps[i] = strconv.FormatInt(d, 10)
		}
		tw.AppendRow(table.Row{"Dependencies", strings.Join(deps, ", ")})
	}
	tw.Render()
}

func Developers(w io.Writer, developers []domain.Developer) {
	tw := newTable(w, table.Row{"ID", "Name", "Skills", "Availability", "Workload", "Utilization", "Level"})
	for _, d := range developers {
		tw.AppendRow(table.Row{d.ID, d.Name, strings.Join(d.Skills, ", "), d.Availability, d.CurrentWorkload, Percent(d.Utilization()), d.ExperienceLevel})
	}
	tw.Render()
}

// Recommendations renders ranked developers and the derived timeline, if any.
func Recommendations(w io.Writer, recs []domain.Recommendation, timeline *domain.TimelineEstimate) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No developer recommendations available for this ticket.")
		return
	}
	tw := newTable(w, table.Row{"#", "Developer", "Match", "Skills", "Method"})
	for i, r := range recs {
		tw.AppendRow(table.Row{i + 1, fmt.Sprintf("%s (%d)", r.DeveloperName, r.DeveloperID), fmt.Sprintf("%.2f", r.MatchScore), strings.Join(r.SkillsMatch, ", "), r.Method})
	}
	tw.Render()
	if timeline != nil {
		fmt.Fprintf(w, "Timeline: %dh estimated, complexity %d, mean duration %dh, risk %s\n",
			timeline.EstimatedHours, timeline.Complexity, timeline.MeanDuration, timeline.RiskLevel)
	}
}

func Status(w io.Writer, s domain.SystemStatus) {
	tw := newTable(w, table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Total tickets", s.TotalTickets},
		{"Completed", s.CompletedTickets},
		{"In progress", s.InProgressTickets},
		{"Backlog", s.BacklogTickets},
		{"Total workload", s.TotalWorkload},
		{"Total availability", s.TotalAvailability},
		{"Utilization", fmt.Sprintf("%.1f%%", s.UtilizationRate)},
	})
	tw.Render()
}

// Performance renders developer metrics, or the no-data notice when p is nil.
func Performance(w io.Writer, name string, p *domain.DeveloperPerformance) {
	if p == nil {
		fmt.Fprintf(w, "No performance data available for %s.\n", name)
		return
	}
	tw := newTable(w, table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Developer", name},
		{"Average completion time", fmt.Sprintf("%.1fh", p.AverageCompletionTime)},
		{"Accuracy", Percent(p.Accuracy)},
		{"Completed tickets", p.TotalCompletedTickets},
		{"Average sentiment", fmt.Sprintf("%.2f", p.AverageSentiment)},
	})
	tw.Render()
}

func Optimize(w io.Writer, res domain.OptimizeResult) {
	fmt.Fprintf(w, "Workload optimized! %d assignments made.\n", len(res.Assignments))
	if len(res.Assignments) == 0 {
		return
	}
	tw := newTable(w, table.Row{"Ticket", "Developer", "Score"})
	for _, a := range res.Assignments {
		tw.AppendRow(table.Row{a.TicketID, a.DeveloperID, fmt.Sprintf("%.2f", a.Score)})
	}
	tw.Render()
}

func Balance(w io.Writer, rep domain.BalanceReport) {
	fmt.Fprintf(w, "Average utilization: %s\n", Percent(rep.AverageUtilization))
	tw := newTable(w, table.Row{"Developer", "Workload", "Capacity", "Utilization"})
	for _, d := range rep.WorkloadDistribution {
		tw.AppendRow(table.Row{d.DeveloperName, d.CurrentWorkload, d.EffectiveCapacity, Percent(d.Utilization)})
	}
	tw.Render()
	if len(rep.Suggestions) == 0 {
		fmt.Fprintln(w, "Workload is balanced.")
		return
	}
	st := newTable(w, table.Row{"From", "To", "Hours", "Reason"})
	for _, s := range rep.Suggestions {
		st.AppendRow(table.Row{s.FromDeveloper, s.ToDeveloper, s.TransferHours, s.Reason})
	}
	st.Render()
}

func Adjustments(w io.Writer, res domain.AdjustResult) {
	fmt.Fprintf(w, "Priorities adjusted! %d tickets updated.\n", len(res.Adjustments))
	if len(res.Adjustments) == 0 {
		return
	}
	tw := newTable(w, table.Row{"Ticket", "Old", "New", "Reason"})
	for _, a := range res.Adjustments {
		tw.AppendRow(table.Row{a.TicketID, a.OldPriority, a.NewPriority, a.Reason})
	}
	tw.Render()
}

func Document(w io.Writer, res domain.DocumentResult) {
	fmt.Fprintf(w, "%s: %d tasks extracted, %d tickets created.\n", res.Message, res.TasksExtracted, res.TicketsCreated)
	if len(res.Tickets) > 0 {
		Tickets(w, res.Tickets, nil)
	}
}

func SprintDocument(w io.Writer, res domain.SprintDocumentResult) {
	fmt.Fprintf(w, "%s. Goal: %s\n", res.Message, res.SprintGoal)
	if len(res.UserStories) > 0 {
		tw := newTable(w, table.Row{"User story", "Points"})
		for _, s := range res.UserStories {
			tw.AppendRow(table.Row{text.WrapSoft(s.Story, 60), s.StoryPoints})
		}
		tw.Render()
	}
	Document(w, res.DocumentResult)
}

func Events(w io.Writer, evts []domain.Event) {
	tw := newTable(w, table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"})
	for _, e := range evts {
		entity := e.EntityKind
		if e.EntityID != "" {
			entity += ":" + e.EntityID
		}
		tw.AppendRow(table.Row{e.ID, e.TS, e.Type, entity, e.Actor, e.Payload})
	}
	tw.Render()
}

// Percent formats a ratio as a percentage with one decimal.
func Percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// Bar draws width (0..100) as a run of block characters.
func Bar(width float64) string {
	cells := int(math.Round(dashboard.Clamp(width) / 100 * BarWidth))
	return strings.Repeat("█", cells) + strings.Repeat("░", BarWidth-cells)
}

// Dashboard renders the summary and every section that has data.
func Dashboard(w io.Writer, v dashboard.View) {
	if v.Diagnostic != nil {
		fmt.Fprintln(w, v.Diagnostic.Message)
		if len(v.Diagnostic.Keys) > 0 {
			fmt.Fprintf(w, "Received keys: %s\n", strings.Join(v.Diagnostic.Keys, ", "))
		}
		if v.Diagnostic.Raw != "" {
			fmt.Fprintln(w, v.Diagnostic.Raw)
		}
		return
	}
	s := v.Summary
	tw := newTable(w, table.Row{"Total", "Completed", "In progress", "Backlog", "Completion", "Utilization", "Avg completion"})
	tw.AppendRow(table.Row{s.TotalTickets, s.CompletedTickets, s.InProgressTickets, s.BacklogTickets,
		fmt.Sprintf("%.1f%%", s.CompletionRate), fmt.Sprintf("%.1f%%", s.UtilizationRate), fmt.Sprintf("%.1fh", s.AvgCompletionTime)})
	tw.Render()

	for _, name := range v.Sections() {
		fmt.Fprintf(w, "\n%s\n", name)
		switch name {
		case dashboard.SectionPriority:
			bars(w, v.Priority)
		case dashboard.SectionComplexity:
			bars(w, v.Complexity)
		case dashboard.SectionWorkload:
			bars(w, v.Workload)
		case dashboard.SectionDevelopers:
			dt := newTable(w, table.Row{"Developer", "Utilization", "Velocity", "Accuracy", "Sentiment", "Completed"})
			for _, d := range v.Developers {
				dt.AppendRow(table.Row{d.DeveloperName, fmt.Sprintf("%.1f%%", d.Utilization), d.Velocity, fmt.Sprintf("%.1f%%", d.Accuracy), d.Sentiment, d.TicketsCompleted})
			}
			dt.Render()
		case dashboard.SectionVelocity:
			columns(w, v.Velocity, "planned", "actual")
		case dashboard.SectionBurndown:
			columns(w, v.Burndown, "ideal", "remaining")
		case dashboard.SectionTrends:
			tt := newTable(w, table.Row{"Date", "Created", "Completed", "Backlog change"})
			for _, t := range v.Trends {
				tt.AppendRow(table.Row{t.Date, t.Created, t.Completed, t.BacklogChange})
			}
			tt.Render()
		}
	}
}

func bars(w io.Writer, bs []dashboard.Bar) {
	tw := newTable(w, table.Row{"", "", "%"})
	for _, b := range bs {
		label := b.Label
		if b.Count > 0 {
			label = fmt.Sprintf("%s (%d)", b.Label, b.Count)
		}
		tw.AppendRow(table.Row{label, Bar(b.Width), fmt.Sprintf("%.1f", b.Value)})
	}
	tw.Render()
}

func columns(w io.Writer, cs []dashboard.Column, first, second string) {
	tw := newTable(w, table.Row{"", first, "", second, ""})
	for _, c := range cs {
		tw.AppendRow(table.Row{c.Label, Bar(c.FirstHeight), c.First, Bar(c.SecondHeight), c.Second})
	}
	tw.Render()
}

// ProgressReportText is the plain-text document saved for a progress report.
func ProgressReportText(r domain.ProgressReport) string {
	var b strings.Builder
	generated := r.GeneratedAt
	if ts, err := time.Parse(time.RFC3339Nano, r.GeneratedAt); err == nil {
		generated = ts.Local().Format("2006-01-02 15:04:05")
	} else if ts, err := time.Parse("2006-01-02T15:04:05.999999", r.GeneratedAt); err == nil {
		generated = ts.Format("2006-01-02 15:04:05")
	}
	fmt.Fprintf(&b, "Progress Report generated on %s\n\n", generated)
	fmt.Fprintf(&b, "Summary:\n")
	fmt.Fprintf(&b, "- Total Tickets: %d\n", r.Summary.TotalTickets)
	fmt.Fprintf(&b, "- Completed: %d (%.1f%%)\n", r.Summary.CompletedTickets, r.Summary.CompletionRate*100)
	fmt.Fprintf(&b, "- In Progress: %d\n", r.Summary.InProgressTickets)
	fmt.Fprintf(&b, "- Backlog: %d\n\n", r.Summary.BacklogTickets)

	if len(r.Bottlenecks) > 0 {
		b.WriteString("Bottlenecks:\n")
		for _, bn := range r.Bottlenecks {
			if bn.Type == "developer" {
				fmt.Fprintf(&b, "- %s: %.1f%% utilization (%s severity)\n", bn.DeveloperName, bn.Utilization*100, bn.Severity)
			} else {
				fmt.Fprintf(&b, "- Task %q: %d dependencies\n", bn.TicketTitle, bn.Dependencies)
			}
		}
		b.WriteString("\n")
	}
	if len(r.SlowTasks) > 0 {
		b.WriteString("Slow Tasks:\n")
		for _, t := range r.SlowTasks {
			fmt.Fprintf(&b, "- %q: %.1fx over estimate\n", t.TicketTitle, t.OverrunRatio)
		}
		b.WriteString("\n")
	}
	if len(r.Insights) > 0 {
		b.WriteString("Insights:\n")
		for _, in := range r.Insights {
			fmt.Fprintf(&b, "- %s\n", in.Message)
		}
	}
	return b.String()
}
