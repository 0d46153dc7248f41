package domain

// DashboardPayload is the backend-computed analytics document. Summary is a
// pointer so a payload without it can be told apart from a zero summary.
type DashboardPayload struct {
	Summary              *DashboardSummary  `json:"summary,omitempty"`
	TicketTrends         []TicketTrend      `json:"ticket_trends,omitempty"`
	DeveloperPerformance []DeveloperPerfRow `json:"developer_performance,omitempty"`
	PriorityDistribution []PriorityShare    `json:"priority_distribution,omitempty"`
	ComplexityAnalysis   []ComplexityShare  `json:"complexity_analysis,omitempty"`
	WorkloadDistribution []WorkloadShare    `json:"workload_distribution,omitempty"`
	VelocityTracking     []VelocityPoint    `json:"velocity_tracking,omitempty"`
	BurndownData         []BurndownPoint    `json:"burndown_data,omitempty"`
}

type DashboardSummary struct {
	TotalTickets      int     `json:"total_tickets"`
	CompletedTickets  int     `json:"completed_tickets"`
	InProgressTickets int     `json:"in_progress_tickets"`
	BacklogTickets    int     `json:"backlog_tickets"`
	CompletionRate    float64 `json:"completion_rate"`
	UtilizationRate   float64 `json:"utilization_rate"`
	AvgCompletionTime float64 `json:"avg_completion_time"`
}

type TicketTrend struct {
	Date          string `json:"date"`
	Created       int    `json:"created"`
	Completed     int    `json:"completed"`
	BacklogChange int    `json:"backlog_change"`
}

type DeveloperPerfRow struct {
	DeveloperID      int64    `json:"developer_id"`
	DeveloperName    string   `json:"developer_name"`
	Utilization      float64  `json:"utilization"`
	Velocity         float64  `json:"velocity"`
	Accuracy         float64  `json:"accuracy"`
	Sentiment        float64  `json:"sentiment"`
	TicketsCompleted int      `json:"tickets_completed"`
	Availability     float64  `json:"availability"`
	CurrentWorkload  float64  `json:"current_workload"`
	Skills           []string `json:"skills,omitempty"`
}

type PriorityShare struct {
	Priority   Priority `json:"priority"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
}

type ComplexityShare struct {
	Complexity int     `json:"complexity"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type WorkloadShare struct {
	DeveloperID       int64   `json:"developer_id"`
	DeveloperName     string  `json:"developer_name"`
	CurrentWorkload   float64 `json:"current_workload"`
	Availability      float64 `json:"availability"`
	RemainingCapacity float64 `json:"remaining_capacity"`
	Utilization       float64 `json:"utilization"`
}

type VelocityPoint struct {
	Week               string  `json:"week"`
	WeekStart          string  `json:"week_start"`
	PlannedVelocity    float64 `json:"planned_velocity"`
	ActualVelocity     float64 `json:"actual_velocity"`
	Variance           float64 `json:"variance"`
	VariancePercentage float64 `json:"variance_percentage"`
}

type BurndownPoint struct {
	Date           string  `json:"date"`
	RemainingWork  float64 `json:"remaining_work"`
	IdealRemaining float64 `json:"ideal_remaining"`
	CompletedToday float64 `json:"completed_today"`
}
