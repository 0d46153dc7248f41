// Package dashboard turns a backend dashboard payload into renderable series.
// It computes no metrics of its own: it only validates, scales bars into
// [0,100] where a series calls for it, and assigns colors.
package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"smartsprint/internal/domain"
)

// VelocityScale is the velocity, in hours, drawn at full height.
const VelocityScale = 50.0

// BurndownScale is the remaining work, in hours, drawn at full height.
const BurndownScale = 100.0

type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

var (
	Red    = Color{Name: "red", Hex: "#dc3545"}
	Orange = Color{Name: "orange", Hex: "#fd7e14"}
	Yellow = Color{Name: "yellow", Hex: "#ffc107"}
	Green  = Color{Name: "green", Hex: "#28a745"}
	Teal   = Color{Name: "teal", Hex: "#17a2b8"}
	Blue   = Color{Name: "blue", Hex: "#007bff"}
	Gray   = Color{Name: "gray", Hex: "#6c757d"}
)

func PriorityColor(p domain.Priority) Color {
	switch p {
	case domain.PriorityCritical:
		return Red
	case domain.PriorityHigh:
		return Orange
	case domain.PriorityMedium:
		return Yellow
	case domain.PriorityLow:
		return Green
	default:
		return Gray
	}
}

func ComplexityColor(level int) Color {
	switch level {
	case 1:
		return Green
	case 2:
		return Teal
	case 3:
		return Yellow
	case 4:
		return Orange
	case 5:
		return Red
	default:
		return Gray
	}
}

func StatusColor(s domain.Status) Color {
	switch s {
	case domain.StatusBacklog:
		return Yellow
	case domain.StatusInProgress:
		return Blue
	case domain.StatusCompleted:
		return Green
	default:
		return Gray
	}
}

// Clamp bounds a rendered percentage to [0,100].
func Clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// Bar is one horizontal bar. Value is what the payload said; Width is what
// gets drawn.
type Bar struct {
	Label string  `json:"label"`
	Count int     `json:"count,omitempty"`
	Value float64 `json:"value"`
	Width float64 `json:"width"`
	Color Color   `json:"color"`
}

// Column is one point of a two-series vertical chart.
type Column struct {
	Label  string  `json:"label"`
	First  float64 `json:"first"`
	Second float64 `json:"second"`
	// Heights in [0,100].
	FirstHeight  float64 `json:"first_height"`
	SecondHeight float64 `json:"second_height"`
}

// Diagnostic replaces the dashboard when the payload cannot be rendered.
type Diagnostic struct {
	Message string   `json:"message"`
	Keys    []string `json:"keys,omitempty"`
	Raw     string   `json:"raw,omitempty"`
}

// View is the renderable dashboard. A non-nil Diagnostic means nothing else is set.
type View struct {
	Diagnostic *Diagnostic               `json:"diagnostic,omitempty"`
	Summary    *domain.DashboardSummary  `json:"summary,omitempty"`
	Priority   []Bar                     `json:"priority,omitempty"`
	Complexity []Bar                     `json:"complexity,omitempty"`
	Workload   []Bar                     `json:"workload,omitempty"`
	Developers []domain.DeveloperPerfRow `json:"developers,omitempty"`
	Velocity   []Column                  `json:"velocity,omitempty"`
	Burndown   []Column                  `json:"burndown,omitempty"`
	Trends     []domain.TicketTrend      `json:"trends,omitempty"`
}

// Section names, in display order.
const (
	SectionPriority   = "Priority Distribution"
	SectionComplexity = "Complexity Analysis"
	SectionWorkload   = "Workload Distribution"
	SectionDevelopers = "Developer Performance"
	SectionVelocity   = "Velocity Tracking"
	SectionBurndown   = "Burndown Chart"
	SectionTrends     = "Ticket Trends"
)

// Sections lists the sections that have data.
func (v View) Sections() []string {
	if v.Diagnostic != nil {
		return nil
	}
	var out []string
	add := func(name string, n int) {
		if n > 0 {
			out = append(out, name)
		}
	}
	add(SectionPriority, len(v.Priority))
	add(SectionComplexity, len(v.Complexity))
	add(SectionWorkload, len(v.Workload))
	add(SectionDevelopers, len(v.Developers))
	add(SectionVelocity, len(v.Velocity))
	add(SectionBurndown, len(v.Burndown))
	add(SectionTrends, len(v.Trends))
	return out
}

// Build normalizes p. raw is only used for the diagnostic view.
func Build(p domain.DashboardPayload, raw []byte) View {
	if p.Summary == nil {
		return Diagnose(raw, &domain.SchemaError{Resource: "dashboard", Field: "summary"})
	}
	v := View{Summary: p.Summary}
	for _, s := range p.PriorityDistribution {
		v.Priority = append(v.Priority, Bar{
			Label: string(s.Priority),
			Count: s.Count,
			Value: s.Percentage,
			Width: s.Percentage,
			Color: PriorityColor(s.Priority),
		})
	}
	for _, s := range p.ComplexityAnalysis {
		v.Complexity = append(v.Complexity, Bar{
			Label: "Level " + strconv.Itoa(s.Complexity),
			Count: s.Count,
			Value: s.Percentage,
			Width: s.Percentage,
			Color: ComplexityColor(s.Complexity),
		})
	}
	for _, w := range p.WorkloadDistribution {
		v.Workload = append(v.Workload, Bar{
			Label: w.DeveloperName,
			Value: w.Utilization,
			Width: Clamp(w.Utilization),
			Color: Blue,
		})
	}
	if len(p.DeveloperPerformance) > 0 {
		v.Developers = append([]domain.DeveloperPerfRow(nil), p.DeveloperPerformance...)
	}
	for _, wk := range p.VelocityTracking {
		v.Velocity = append(v.Velocity, Column{
			Label:        wk.Week,
			First:        wk.PlannedVelocity,
			Second:       wk.ActualVelocity,
			FirstHeight:  Clamp(wk.PlannedVelocity / VelocityScale * 100),
			SecondHeight: Clamp(wk.ActualVelocity / VelocityScale * 100),
		})
	}
	for _, d := range p.BurndownData {
		v.Burndown = append(v.Burndown, Column{
			Label:        d.Date,
			First:        d.IdealRemaining,
			Second:       d.RemainingWork,
			FirstHeight:  Clamp(d.IdealRemaining / BurndownScale * 100),
			SecondHeight: Clamp(d.RemainingWork / BurndownScale * 100),
		})
	}
	if len(p.TicketTrends) > 0 {
		v.Trends = append([]domain.TicketTrend(nil), p.TicketTrends...)
	}
	return v
}

// Diagnose builds the diagnostic view for an unusable payload.
func Diagnose(raw []byte, cause error) View {
	d := &Diagnostic{Message: "Invalid Dashboard Data"}
	if cause != nil {
		d.Message = fmt.Sprintf("Invalid Dashboard Data: %v", cause)
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err == nil {
		for k := range generic {
			d.Keys = append(d.Keys, k)
		}
		sort.Strings(d.Keys)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err == nil {
		d.Raw = pretty.String()
	} else {
		d.Raw = string(raw)
	}
	return View{Diagnostic: d}
}
