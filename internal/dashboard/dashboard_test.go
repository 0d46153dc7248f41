package dashboard_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsprint/internal/dashboard"
	"smartsprint/internal/domain"
)

func TestMissingSummaryRendersDiagnostic(t *testing.T) {
	raw := []byte(`{"priority_distribution":[{"priority":"high","count":2,"percentage":50}],"ticket_trends":[]}`)
	var p domain.DashboardPayload
	require.NoError(t, json.Unmarshal(raw, &p))

	v := dashboard.Build(p, raw)
	require.NotNil(t, v.Diagnostic)
	assert.Contains(t, v.Diagnostic.Message, "Invalid Dashboard Data")
	assert.Contains(t, v.Diagnostic.Message, "summary")
	assert.Equal(t, []string{"priority_distribution", "ticket_trends"}, v.Diagnostic.Keys)
	assert.Contains(t, v.Diagnostic.Raw, "\"priority\": \"high\"")
	assert.Empty(t, v.Priority, "no series are rendered next to a diagnostic")
	assert.Nil(t, v.Sections())
}

func TestDiagnoseNonJSON(t *testing.T) {
	v := dashboard.Diagnose([]byte("<html>"), nil)
	require.NotNil(t, v.Diagnostic)
	assert.Equal(t, "Invalid Dashboard Data", v.Diagnostic.Message)
	assert.Equal(t, "<html>", v.Diagnostic.Raw)
	assert.Empty(t, v.Diagnostic.Keys)
}

func TestWorkloadClampedPriorityRaw(t *testing.T) {
	p := domain.DashboardPayload{
		Summary: &domain.DashboardSummary{TotalTickets: 4},
		PriorityDistribution: []domain.PriorityShare{
			{Priority: domain.PriorityCritical, Count: 1, Percentage: 125},
			{Priority: "unknown", Count: 1, Percentage: 25},
		},
		ComplexityAnalysis: []domain.ComplexityShare{{Complexity: 2, Count: 3, Percentage: 140}},
		WorkloadDistribution: []domain.WorkloadShare{
			{DeveloperName: "Ada", Utilization: 137},
			{DeveloperName: "Lin", Utilization: 42.5},
			{DeveloperName: "Neg", Utilization: -5},
		},
	}
	v := dashboard.Build(p, nil)
	require.Nil(t, v.Diagnostic)

	assert.Equal(t, 100.0, v.Workload[0].Width)
	assert.Equal(t, 137.0, v.Workload[0].Value)
	assert.Equal(t, 42.5, v.Workload[1].Width)
	assert.Equal(t, 0.0, v.Workload[2].Width)

	assert.Equal(t, 125.0, v.Priority[0].Width, "priority bars use the raw percentage")
	assert.Equal(t, dashboard.Red, v.Priority[0].Color)
	assert.Equal(t, dashboard.Gray, v.Priority[1].Color)
	assert.Equal(t, 140.0, v.Complexity[0].Width)
	assert.Equal(t, dashboard.Teal, v.Complexity[0].Color)
	assert.Equal(t, "Level 2", v.Complexity[0].Label)
}

func TestVelocityAndBurndownHeights(t *testing.T) {
	p := domain.DashboardPayload{
		Summary: &domain.DashboardSummary{},
		VelocityTracking: []domain.VelocityPoint{
			{Week: "W1", PlannedVelocity: 25, ActualVelocity: 80},
		},
		BurndownData: []domain.BurndownPoint{
			{Date: "2024-01-01", IdealRemaining: 40, RemainingWork: 180},
		},
	}
	v := dashboard.Build(p, nil)
	require.Len(t, v.Velocity, 1)
	assert.Equal(t, 50.0, v.Velocity[0].FirstHeight)
	assert.Equal(t, 100.0, v.Velocity[0].SecondHeight)
	assert.Equal(t, 80.0, v.Velocity[0].Second)
	require.Len(t, v.Burndown, 1)
	assert.Equal(t, 40.0, v.Burndown[0].FirstHeight)
	assert.Equal(t, 100.0, v.Burndown[0].SecondHeight)
}

func TestSeriesRenderOnlyWhenPresent(t *testing.T) {
	v := dashboard.Build(domain.DashboardPayload{
		Summary:              &domain.DashboardSummary{},
		TicketTrends:         []domain.TicketTrend{},
		DeveloperPerformance: []domain.DeveloperPerfRow{{DeveloperName: "Ada"}},
	}, nil)
	assert.Equal(t, []string{dashboard.SectionDevelopers}, v.Sections())
}

func TestColorTables(t *testing.T) {
	assert.Equal(t, "#dc3545", dashboard.PriorityColor(domain.PriorityCritical).Hex)
	assert.Equal(t, "#fd7e14", dashboard.PriorityColor(domain.PriorityHigh).Hex)
	assert.Equal(t, "#ffc107", dashboard.PriorityColor(domain.PriorityMedium).Hex)
	assert.Equal(t, "#28a745", dashboard.PriorityColor(domain.PriorityLow).Hex)
	assert.Equal(t, "#6c757d", dashboard.PriorityColor("").Hex)

	want := map[int]string{1: "green", 2: "teal", 3: "yellow", 4: "orange", 5: "red", 0: "gray", 6: "gray"}
	for level, name := range want {
		assert.Equal(t, name, dashboard.ComplexityColor(level).Name, "level %d", level)
	}

	assert.Equal(t, dashboard.Blue, dashboard.StatusColor(domain.StatusInProgress))
	assert.Equal(t, dashboard.Yellow, dashboard.StatusColor(domain.StatusBacklog))
	assert.Equal(t, dashboard.Green, dashboard.StatusColor(domain.StatusCompleted))
}

func TestClamp(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0: 0, 55.5: 55.5, 100: 100, 100.01: 100, 1e9: 100} {
		assert.Equal(t, want, dashboard.Clamp(in))
	}
}
