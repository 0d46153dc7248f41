package domain

type SystemStatus struct {
	TotalTickets      int     `json:"total_tickets"`
	CompletedTickets  int     `json:"completed_tickets"`
	InProgressTickets int     `json:"in_progress_tickets"`
	BacklogTickets    int     `json:"backlog_tickets"`
	TotalWorkload     float64 `json:"total_workload"`
	TotalAvailability float64 `json:"total_availability"`
	UtilizationRate   float64 `json:"utilization_rate"`
}

type DeveloperPerformance struct {
	AverageCompletionTime float64        `json:"average_completion_time"`
	Accuracy              float64        `json:"accuracy"`
	TotalCompletedTickets int            `json:"total_completed_tickets"`
	AverageSentiment      float64        `json:"average_sentiment"`
	Metrics               map[string]any `json:"metrics,omitempty"`
	HistoricalPerformance []any          `json:"historical_performance,omitempty"`
}

type WorkloadAssignment struct {
	TicketID    int64   `json:"ticket_id"`
	DeveloperID int64   `json:"developer_id"`
	Score       float64 `json:"score"`
}

type OptimizeResult struct {
	Assignments []WorkloadAssignment `json:"assignments"`
}

type DeveloperLoad struct {
	DeveloperID       int64   `json:"developer_id"`
	DeveloperName     string  `json:"developer_name"`
	CurrentWorkload   float64 `json:"current_workload"`
	EffectiveCapacity float64 `json:"effective_capacity"`
	Utilization       float64 `json:"utilization"`
}

type BalanceSuggestion struct {
	FromDeveloper string  `json:"from_developer"`
	ToDeveloper   string  `json:"to_developer"`
	TransferHours float64 `json:"transfer_hours"`
	Reason        string  `json:"reason"`
}

type BalanceReport struct {
	AverageUtilization   float64             `json:"average_utilization"`
	WorkloadDistribution []DeveloperLoad     `json:"workload_distribution"`
	Suggestions          []BalanceSuggestion `json:"suggestions"`
}

type ReportSummary struct {
	TotalTickets      int     `json:"total_tickets"`
	CompletedTickets  int     `json:"completed_tickets"`
	InProgressTickets int     `json:"in_progress_tickets"`
	BacklogTickets    int     `json:"backlog_tickets"`
	CompletionRate    float64 `json:"completion_rate"`
}

type Bottleneck struct {
	Type          string  `json:"type" enum:"developer,task"`
	DeveloperName string  `json:"developer_name,omitempty"`
	Utilization   float64 `json:"utilization,omitempty"`
	Severity      string  `json:"severity"`
	TicketTitle   string  `json:"ticket_title,omitempty"`
	Dependencies  int     `json:"dependencies,omitempty"`
}

type SlowTask struct {
	TicketTitle    string  `json:"ticket_title"`
	EstimatedHours float64 `json:"estimated_hours"`
	ActualHours    float64 `json:"actual_hours"`
	OverrunRatio   float64 `json:"overrun_ratio"`
}

type Insight struct {
	Message string `json:"message"`
}

type ProgressReport struct {
	Summary          ReportSummary  `json:"summary"`
	DeveloperMetrics map[string]any `json:"developer_metrics,omitempty"`
	Bottlenecks      []Bottleneck   `json:"bottlenecks"`
	SlowTasks        []SlowTask     `json:"slow_tasks"`
	Insights         []Insight      `json:"insights"`
	GeneratedAt      string         `json:"generated_at"`
}

type PriorityAdjustment struct {
	TicketID    int64    `json:"ticket_id"`
	OldPriority Priority `json:"old_priority"`
	NewPriority Priority `json:"new_priority"`
	Reason      string   `json:"reason"`
}

type AdjustResult struct {
	Adjustments []PriorityAdjustment `json:"adjustments"`
}

const (
	DocumentProcessedMessage       = "Document processed successfully"
	SprintDocumentProcessedMessage = "Sprint document processed successfully"
)

type DocumentResult struct {
	Message        string   `json:"message"`
	TasksExtracted int      `json:"tasks_extracted"`
	TicketsCreated int      `json:"tickets_created"`
	Tickets        []Ticket `json:"tickets"`
}

type UserStory struct {
	Story       string `json:"story"`
	StoryPoints int    `json:"story_points"`
}

type SprintDocumentResult struct {
	DocumentResult
	SprintGoal  string      `json:"sprint_goal"`
	UserStories []UserStory `json:"user_stories"`
}
